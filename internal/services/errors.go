package services

import (
	"errors"
	"fmt"
)

// RemoteServiceError is a transport or HTTP failure from the remote API.
// Status is 0 when no HTTP response was received.
type RemoteServiceError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *RemoteServiceError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: remote service unreachable: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: remote service returned %d: %s", e.Op, e.Status, truncate(e.Body, 300))
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

// MalformedResponseError is a response whose shape the harvester cannot use.
type MalformedResponseError struct {
	Op     string
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Reason)
}

var ErrLockHeld = errors.New("batch lock is held by another writer")

// IsRecoverable reports whether err is local to one unit of work (a playlist or a chunk).
func IsRecoverable(err error) bool {
	var remoteErr *RemoteServiceError
	var malformedErr *MalformedResponseError
	return errors.As(err, &remoteErr) || errors.As(err, &malformedErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
