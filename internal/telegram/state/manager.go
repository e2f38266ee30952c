package state

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/futig/sla-consultant/internal/entity"
)

// Manager manages telegram chat sessions
type Manager struct {
	storage Storage
	now     func() time.Time
}

// NewManager creates a new state manager
func NewManager(storage Storage) *Manager {
	return &Manager{
		storage: storage,
		now:     time.Now,
	}
}

// GetSession retrieves a chat session, ErrSessionNotFound when there is none
func (m *Manager) GetSession(ctx context.Context, chatID int64) (*ChatSession, error) {
	session, err := m.storage.Get(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get telegram session from storage: %w", err)
	}
	return session, nil
}

// GetActive returns the session only when it is bound to a consultation
func (m *Manager) GetActive(ctx context.Context, chatID int64) (*ChatSession, error) {
	session, err := m.GetSession(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if session.ConsultationID == "" {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// SetSession saves a chat session
func (m *Manager) SetSession(ctx context.Context, session *ChatSession) error {
	session.UpdatedAt = m.now()

	if err := m.storage.Set(ctx, session); err != nil {
		return fmt.Errorf("save telegram session to storage: %w", err)
	}
	return nil
}

// DeleteSession removes a chat session
func (m *Manager) DeleteSession(ctx context.Context, chatID int64) error {
	if err := m.storage.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("delete telegram session from storage: %w", err)
	}
	return nil
}

// Bind attaches a fresh consultation to the chat, dropping any previous UI state
func (m *Manager) Bind(ctx context.Context, chatID, userID int64, consultationID, templateID string) (*ChatSession, error) {
	session := &ChatSession{
		ChatID:         chatID,
		UserID:         userID,
		ConsultationID: consultationID,
		TemplateID:     templateID,
		CreatedAt:      m.now(),
	}
	if err := m.SetSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetByConsultationID finds the chat a consultation belongs to
func (m *Manager) GetByConsultationID(ctx context.Context, consultationID string) (*ChatSession, error) {
	session, err := m.storage.GetByConsultationID(ctx, consultationID)
	if err != nil {
		return nil, fmt.Errorf("get telegram session by consultation: %w", err)
	}
	return session, nil
}

// BeginForm starts asking the given structured input field by field.
// A form for the same stage and fields that is already in progress is kept.
func (m *Manager) BeginForm(ctx context.Context, session *ChatSession, stageID string, input entity.StructuredInput) (bool, error) {
	if session.Form != nil && session.Form.StageID == stageID && sameFields(session.Form.Fields, input.Fields) {
		return false, nil
	}

	session.Form = &Form{
		StageID: stageID,
		Fields:  slices.Clone(input.Fields),
		Answers: map[string]any{},
	}
	return true, m.SetSession(ctx, session)
}

// Answer records the value of the current field and moves to the next one
func (m *Manager) Answer(ctx context.Context, session *ChatSession, value any) error {
	field, ok := session.Form.Current()
	if !ok {
		return errors.New("no form field is awaiting an answer")
	}

	if value != nil {
		session.Form.Answers[field.ID] = value
	}
	session.Form.Index++
	session.Form.Selected = nil
	return m.SetSession(ctx, session)
}

// Toggle flips a checkbox option of the current field
func (m *Manager) Toggle(ctx context.Context, session *ChatSession, option string) error {
	if _, ok := session.Form.Current(); !ok {
		return errors.New("no form field is awaiting an answer")
	}

	if i := slices.Index(session.Form.Selected, option); i >= 0 {
		session.Form.Selected = slices.Delete(session.Form.Selected, i, i+1)
	} else {
		session.Form.Selected = append(session.Form.Selected, option)
	}
	return m.SetSession(ctx, session)
}

// ClearForm forgets the form once it was submitted or abandoned
func (m *Manager) ClearForm(ctx context.Context, session *ChatSession) error {
	session.Form = nil
	return m.SetSession(ctx, session)
}

func sameFields(a, b []entity.StructuredInputField) bool {
	return slices.EqualFunc(a, b, func(x, y entity.StructuredInputField) bool {
		return x.ID == y.ID && x.Type == y.Type
	})
}
