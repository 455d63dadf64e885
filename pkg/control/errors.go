package control

import (
	"errors"
	"fmt"
)

// Sentinel errors for tree operations.
var (
	// ErrNotAttached is returned when an operation needs a page but the
	// control has not been added to one yet.
	ErrNotAttached = errors.New("control: control must be added to a page first")

	// ErrIDMismatch is returned when the host reply does not carry exactly
	// one id per newly added control. The page model and the host are out
	// of sync; the call cannot be recovered locally.
	ErrIDMismatch = errors.New("control: reply id count does not match added controls")

	// ErrBadReply is returned when a reply cannot be mapped onto the shape
	// the request calls for.
	ErrBadReply = errors.New("control: reply does not match request shape")
)

// idMismatchError wraps ErrIDMismatch with the observed counts.
func idMismatchError(want, got int) error {
	return fmt.Errorf("%w: want %d, got %d", ErrIDMismatch, want, got)
}
