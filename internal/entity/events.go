package entity

import "time"

// EventType is the kind of event emitted by a consultation
type EventType string

const (
	EventTypeMessage    EventType = "message"
	EventTypeTransition EventType = "stage_transition"
	EventTypeNotice     EventType = "notice"
	EventTypeError      EventType = "error"
	EventTypeCompleted  EventType = "completed"
)

// ConsultationEvent is published to the presentation layer. Exactly one of
// the payload fields is set, matching Type.
type ConsultationEvent struct {
	Type           EventType            `json:"type"`
	ConsultationID string               `json:"consultation_id"`
	Timestamp      time.Time            `json:"timestamp"`
	Message        *Message             `json:"message,omitempty"`
	Transition     *TransitionEvent     `json:"transition,omitempty"`
	Notice         *Notice              `json:"notice,omitempty"`
	Error          string               `json:"error,omitempty"`
	Summary        *ConsultationSummary `json:"summary,omitempty"`
}
