package arca

import (
	"encoding/json"
	"fmt"

	"github.com/example/arca-scheduler/internal/internaltypes"
)

// AuthError means the platform would not give us a usable session.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("arca auth: %s: %v", e.Reason, e.Err)
	}
	return "arca auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is lets callers outside this package test for internaltypes.ErrUnauthorized.
func (e *AuthError) Is(target error) bool { return target == internaltypes.ErrUnauthorized }

// UpstreamError is a non-2xx answer, or a 2xx answer that is not JSON.
type UpstreamError struct {
	Method   string
	Endpoint string
	Status   int
	Message  string
	// Body is the decoded error payload when the platform sent JSON.
	Body json.RawMessage
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("arca %s %s: status %d: %s", e.Method, e.Endpoint, e.Status, e.Message)
}

// TransportError wraps network failures: DNS, refused connections, timeouts.
type TransportError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("arca %s %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
