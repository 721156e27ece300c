package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session ID does not reference a live session.
	ErrSessionNotFound = errors.New("puzzle session not found")
	// ErrEmptyAnswer is returned when a submission carries no answer text.
	ErrEmptyAnswer = errors.New("answer is required")
	// ErrEmptyMessage is returned when a chat relay call carries no message text.
	ErrEmptyMessage = errors.New("message is required")
	// ErrSecretLocked is returned when the secret is requested before the session earned it.
	ErrSecretLocked = errors.New("secret not unlocked for this session")
	// ErrRunFailed indicates the remote assistant run ended in a failure state.
	ErrRunFailed = errors.New("assistant run failed")
	// ErrRunTimeout indicates the remote assistant run did not finish within the poll deadline.
	ErrRunTimeout = errors.New("assistant run timed out")
)
