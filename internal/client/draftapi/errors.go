package draftapi

import (
	"errors"
	"fmt"
)

// TransportError the remote store was unreachable (DNS, refused
// connection, timeout). Retryable: the caller decides when.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("draftapi: %s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteRejectionError the server understood the request and rejected the
// payload (validation, conflict, not found). Never retried automatically;
// the server message is surfaced to the user.
type RemoteRejectionError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteRejectionError) Error() string {
	return fmt.Sprintf("draftapi: %s: server rejected (%d %s): %s", e.Op, e.StatusCode, e.Code, e.Message)
}

// IsTransport reports whether err is a network-class failure the caller
// may retry on a later cycle.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRejection reports whether err is a server-side rejection.
func IsRejection(err error) bool {
	var re *RemoteRejectionError
	return errors.As(err, &re)
}
