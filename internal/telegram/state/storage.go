package state

import (
	"context"
	"errors"
	"time"

	"github.com/futig/sla-consultant/internal/entity"
)

var ErrSessionNotFound = errors.New("telegram session not found")

// ChatSession maps a telegram chat to its consultation and UI state
type ChatSession struct {
	ChatID         int64     `json:"chat_id"`
	UserID         int64     `json:"user_id"`
	ConsultationID string    `json:"consultation_id,omitempty"`
	TemplateID     string    `json:"template_id,omitempty"`
	Form           *Form     `json:"form,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Confirmation for destructive actions
	PendingConfirmation string `json:"pending_confirmation,omitempty"` // "cancel"
}

// Form tracks a structured input that is asked one field at a time
type Form struct {
	StageID string                        `json:"stage_id"`
	Fields  []entity.StructuredInputField `json:"fields"`
	Index   int                           `json:"index"`
	Answers map[string]any                `json:"answers"`

	// Options toggled so far for the current checkbox field
	Selected []string `json:"selected,omitempty"`
}

// Current returns the field being asked
func (f *Form) Current() (entity.StructuredInputField, bool) {
	if f == nil || f.Index >= len(f.Fields) {
		return entity.StructuredInputField{}, false
	}
	return f.Fields[f.Index], true
}

// SelectedValues returns the toggled options as a checkbox answer, or nil
// when nothing is selected
func (f *Form) SelectedValues() any {
	if f == nil || len(f.Selected) == 0 {
		return nil
	}
	values := make([]any, len(f.Selected))
	for i, v := range f.Selected {
		values[i] = v
	}
	return values
}

// Done reports whether every field was answered or skipped
func (f *Form) Done() bool {
	return f == nil || f.Index >= len(f.Fields)
}

// Storage defines the interface for telegram session persistence
type Storage interface {
	// Get retrieves the session of a chat
	Get(ctx context.Context, chatID int64) (*ChatSession, error)

	// Set saves the session
	Set(ctx context.Context, session *ChatSession) error

	// Delete removes the session of a chat
	Delete(ctx context.Context, chatID int64) error

	// GetByConsultationID retrieves the session bound to a consultation
	GetByConsultationID(ctx context.Context, consultationID string) (*ChatSession, error)
}
