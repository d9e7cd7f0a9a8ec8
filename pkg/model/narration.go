package model

import (
	"time"

	"github.com/google/uuid"
)

// LoadingState is the state of the profile panel.
type LoadingState string

const (
	LoadingIdle  LoadingState = "IDLE"
	LoadingData  LoadingState = "LOADING_DATA"
	LoadingAudio LoadingState = "LOADING_AUDIO"
	LoadingError LoadingState = "ERROR"
)

// NarrationRequest is a piece of text to synthesize for a subject.
// The subject is compared against the current selection when the audio
// arrives; a mismatch means the result is stale.
type NarrationRequest struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Text      string    `json:"text"`
	Voice     string    `json:"voice"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNarrationRequest stamps a request with a fresh ID.
func NewNarrationRequest(subject, text, voice string) NarrationRequest {
	return NarrationRequest{
		ID:        uuid.NewString(),
		Subject:   subject,
		Text:      text,
		Voice:     voice,
		CreatedAt: time.Now(),
	}
}

// Narration records a completed synthesis.
type Narration struct {
	RequestID         string        `json:"request_id"`
	Subject           string        `json:"subject"`
	Voice             string        `json:"voice"`
	Duration          time.Duration `json:"duration"`
	GenerationLatency time.Duration `json:"generation_latency"`
	Cached            bool          `json:"cached"`
	CreatedAt         time.Time     `json:"created_at"`
}
