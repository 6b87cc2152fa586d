package stt

import (
	"errors"
	"fmt"
)

// ErrEmptyTranscript is returned by a strategy whose result is blank, so the
// next strategy gets a chance.
var ErrEmptyTranscript = errors.New("empty transcript")

// TranscriptionError is returned when every transcription strategy failed.
type TranscriptionError struct {
	Audio string
	Cause error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription of %s failed: %v", e.Audio, e.Cause)
}

// Unwrap returns the underlying error.
func (e *TranscriptionError) Unwrap() error {
	return e.Cause
}
