package domain

import "errors"

// ErrEmptyAction is returned when a request has no action name.
var ErrEmptyAction = errors.New("action is required")

// ErrMissingEndpoint is returned when no webhook URL is configured.
var ErrMissingEndpoint = errors.New("webhook endpoint is not configured")

// ErrInvalidEndpoint is returned when the webhook URL is not an absolute http(s) URL.
var ErrInvalidEndpoint = errors.New("webhook endpoint is invalid")
