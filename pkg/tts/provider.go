package tts

import (
	"context"
	"errors"
	"fmt"
)

// Provider turns text into raw speech audio: mono, 16-bit signed
// little-endian PCM at 24000 Hz.
type Provider interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// ErrNoAudio is the cause of a SynthesisError when the response carried no audio payload.
var ErrNoAudio = errors.New("no audio data generated")

// SynthesisError represents a failed speech synthesis.
type SynthesisError struct {
	Voice string
	Err   error
}

func (e *SynthesisError) Error() string {
	if e.Voice == "" {
		return fmt.Sprintf("synthesis failed: %v", e.Err)
	}
	return fmt.Sprintf("synthesis failed (voice %s): %v", e.Voice, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// NewSynthesisError wraps err for voice.
func NewSynthesisError(voice string, err error) *SynthesisError {
	return &SynthesisError{Voice: voice, Err: err}
}

// IsSynthesisError checks if err is or wraps a SynthesisError.
func IsSynthesisError(err error) bool {
	var se *SynthesisError
	return errors.As(err, &se)
}
