package client

import (
	"errors"
	"fmt"
)

// Sentinel errors for connection and call failures.
var (
	// ErrConnectionClosed is returned to callers whose pending call was cut
	// off by the connection closing.
	ErrConnectionClosed = errors.New("client: connection closed")

	// ErrNotConnected is returned when a send is attempted while the
	// transport has no live socket.
	ErrNotConnected = errors.New("client: not connected")

	// ErrCallTimeout is returned when a call's context expires before the
	// host replies.
	ErrCallTimeout = errors.New("client: call timed out waiting for reply")
)

// HostError carries a failure reported by the host in a reply payload. The
// message is surfaced verbatim; the whole command or batch failed and
// nothing was applied.
type HostError struct {
	Action  string
	Message string
}

// Error returns the error message.
func (e *HostError) Error() string {
	return fmt.Sprintf("client: host rejected %s: %s", e.Action, e.Message)
}

// CallError wraps a transport-level failure with the action that was in
// flight.
type CallError struct {
	Action string
	Err    error
}

// Error returns the error message.
func (e *CallError) Error() string {
	return fmt.Sprintf("client: %s: %v", e.Action, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *CallError) Unwrap() error {
	return e.Err
}
