package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionNotReady is returned when the voice connection did not become
	// ready in time to subscribe to a participant. It is the only retryable open error.
	ErrConnectionNotReady = errors.New("voice connection not ready")

	// ErrPrematureClose marks a stream that ended because the transport was torn down
	// on purpose. Sessions ending this way finalize normally.
	ErrPrematureClose = errors.New("stream closed prematurely")

	// ErrContextDraining is returned when opening a session on a context that has
	// already started finalizing.
	ErrContextDraining = errors.New("recording context is draining")

	// ErrDuplicateParticipant is returned when a participant already has a session.
	ErrDuplicateParticipant = errors.New("participant already has a capture session")
)

// OpenError describes a failed attempt to open a capture session.
type OpenError struct {
	ParticipantID string
	Attempts      int
	Err           error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open capture session for %s after %d attempt(s): %v", e.ParticipantID, e.Attempts, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

var _ error = (*OpenError)(nil)

// isExpectedEnd reports whether err terminates a stream without making the
// session a failure.
func isExpectedEnd(err error) bool {
	return err == nil || errors.Is(err, ErrPrematureClose)
}
