package handler

import "errors"

var (
	// ErrAlreadyRecording is returned when a guild already has a recording in progress.
	ErrAlreadyRecording = errors.New("guild is already being recorded")
	// ErrNotRecording is returned when a guild has no recording to stop.
	ErrNotRecording = errors.New("guild is not being recorded")
	// ErrWizardTimeout is returned when a user does not finish the preference wizard in time.
	ErrWizardTimeout = errors.New("preference wizard timed out")
)

// UserError is an error type that is used to represent
// an error that should be displayed to the user.
type UserError struct {
	Message string
	// Err is the underlying cause, logged but never shown.
	Err error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

var _ error = (*UserError)(nil)
