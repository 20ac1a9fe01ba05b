package domain

import (
	"encoding/json"
	"fmt"
)

// FailureKind classifies why an invocation did not succeed.
type FailureKind string

const (
	// FailureConfiguration means the endpoint is missing or invalid. No request was sent.
	FailureConfiguration FailureKind = "configuration_error"
	// FailureConnection covers DNS, TLS, refused connections, timeouts and cancellation.
	FailureConnection FailureKind = "connection_error"
	// FailureHTTPStatus means the webhook answered with a non-2xx status.
	FailureHTTPStatus FailureKind = "http_status"
	// FailureInvalidRequest means the request had no action. No request was sent.
	FailureInvalidRequest FailureKind = "invalid_request"
)

// ConfirmationMessage is the body reported for a 2xx response with an empty body.
const ConfirmationMessage = "webhook triggered successfully"

// Result is the outcome of one relay invocation. It is either Success or Failure.
type Result interface {
	OK() bool
	String() string
	isResult()
}

// Success is a 2xx answer from the webhook.
// Body holds the decoded JSON document, the raw text, or ConfirmationMessage.
type Success struct {
	StatusCode int    `json:"status"`
	Body       any    `json:"response"`
	Raw        string `json:"-"`
}

func (Success) isResult() {}

// OK implements Result.
func (Success) OK() bool { return true }

// String renders the body the way a tool caller reads it.
func (s Success) String() string {
	switch b := s.Body.(type) {
	case string:
		return b
	case nil:
		return ConfirmationMessage
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return s.Raw
		}
		return string(data)
	}
}

// MarshalJSON adds the discriminator.
func (s Success) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		OK         bool `json:"ok"`
		StatusCode int  `json:"status"`
		Body       any  `json:"response"`
	}{true, s.StatusCode, s.Body})
}

// Failure describes an invocation that could not be completed.
// StatusCode is only set for FailureHTTPStatus.
type Failure struct {
	Kind       FailureKind `json:"kind"`
	StatusCode int         `json:"status,omitempty"`
	Message    string      `json:"error"`
}

func (Failure) isResult() {}

// OK implements Result.
func (Failure) OK() bool { return false }

func (f Failure) String() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Error lets a Failure travel as an error where an adapter needs one.
func (f Failure) Error() string { return f.String() }

// MarshalJSON adds the discriminator.
func (f Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		OK         bool        `json:"ok"`
		Kind       FailureKind `json:"kind"`
		StatusCode int         `json:"status,omitempty"`
		Message    string      `json:"error"`
	}{false, f.Kind, f.StatusCode, f.Message})
}

// KindOf returns the failure kind of r, or "" for a Success.
func KindOf(r Result) FailureKind {
	if f, ok := r.(Failure); ok {
		return f.Kind
	}
	return ""
}
