package chat

import "errors"

var (
	// ErrSessionNotFound is returned when a session is required to exist but does not.
	ErrSessionNotFound = errors.New("session not found")
	// ErrGenerationFailed covers every failure of the text generation backend.
	ErrGenerationFailed = errors.New("generation failed")
)
