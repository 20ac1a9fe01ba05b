package domain

import "time"

// ActionRequest is a single invocation of the relay.
type ActionRequest struct {
	Action string `json:"accion" mapstructure:"accion"`
	Target string `json:"objetivo,omitempty" mapstructure:"objetivo"`
	Value  string `json:"valor,omitempty" mapstructure:"valor"`
}

// NewActionRequest builds a request. Target and value default to empty strings.
func NewActionRequest(action string, opts ...string) ActionRequest {
	req := ActionRequest{Action: action}
	if len(opts) > 0 {
		req.Target = opts[0]
	}
	if len(opts) > 1 {
		req.Value = opts[1]
	}
	return req
}

// Validate reports whether the request carries an action name.
// Everything else, whitespace-only names included, is left to the webhook.
func (r ActionRequest) Validate() error {
	if r.Action == "" {
		return ErrEmptyAction
	}
	return nil
}

// Payload is the JSON document posted to the webhook.
// All five keys are always serialized.
type Payload struct {
	Command   string `json:"comando"`
	Target    string `json:"objetivo"`
	Value     string `json:"valor"`
	Origin    string `json:"origen"`
	Timestamp string `json:"timestamp"`
}

// NewPayload stamps a request with the relay origin and the given instant.
func NewPayload(req ActionRequest, origin string, at time.Time) Payload {
	return Payload{
		Command:   req.Action,
		Target:    req.Target,
		Value:     req.Value,
		Origin:    origin,
		Timestamp: at.Format(time.RFC3339Nano),
	}
}
