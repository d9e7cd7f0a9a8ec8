package model

import "time"

// EventType classifies entries of the event log.
type EventType string

const (
	EventSelect    EventType = "select"
	EventProfile   EventType = "profile"
	EventNarration EventType = "narration"
	EventStale     EventType = "stale"
	EventFailure   EventType = "failure"
)

// Event is one line of the user-facing event log.
type Event struct {
	Type      EventType `json:"type"`
	Subject   string    `json:"subject"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
