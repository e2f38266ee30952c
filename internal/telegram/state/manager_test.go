package state

import (
	"context"
	"testing"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStorage map[int64]*ChatSession

func (m mapStorage) Get(ctx context.Context, chatID int64) (*ChatSession, error) {
	s, ok := m[chatID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m mapStorage) Set(ctx context.Context, session *ChatSession) error {
	m[session.ChatID] = session
	return nil
}

func (m mapStorage) Delete(ctx context.Context, chatID int64) error {
	delete(m, chatID)
	return nil
}

func (m mapStorage) GetByConsultationID(ctx context.Context, consultationID string) (*ChatSession, error) {
	for _, s := range m {
		if s.ConsultationID == consultationID {
			return s, nil
		}
	}
	return nil, ErrSessionNotFound
}

func slaForm() entity.StructuredInput {
	return entity.StructuredInput{Fields: []entity.StructuredInputField{
		{ID: "availability", Type: entity.FieldTypeSelect, Required: true},
		{ID: "channels", Type: entity.FieldTypeCheckbox},
	}}
}

func TestManager_BindAndActive(t *testing.T) {
	ctx := context.Background()
	m := NewManager(mapStorage{})

	_, err := m.GetActive(ctx, 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	bound, err := m.Bind(ctx, 1, 7, "c1", "sla")
	require.NoError(t, err)
	assert.Equal(t, "sla", bound.TemplateID)

	s, err := m.GetActive(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "c1", s.ConsultationID)
	assert.False(t, s.UpdatedAt.IsZero())

	byConsultation, err := m.GetByConsultationID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), byConsultation.ChatID)
}

func TestManager_FormFlow(t *testing.T) {
	ctx := context.Background()
	m := NewManager(mapStorage{})
	s, err := m.Bind(ctx, 1, 7, "c1", "sla")
	require.NoError(t, err)

	started, err := m.BeginForm(ctx, s, "targets", slaForm())
	require.NoError(t, err)
	assert.True(t, started)

	started, err = m.BeginForm(ctx, s, "targets", slaForm())
	require.NoError(t, err)
	assert.False(t, started, "same form keeps its progress")

	require.NoError(t, m.Answer(ctx, s, "99.9"))
	field, ok := s.Form.Current()
	require.True(t, ok)
	assert.Equal(t, "channels", field.ID)

	require.NoError(t, m.Toggle(ctx, s, "email"))
	require.NoError(t, m.Toggle(ctx, s, "phone"))
	require.NoError(t, m.Toggle(ctx, s, "email"))
	assert.Equal(t, []string{"phone"}, s.Form.Selected)

	require.NoError(t, m.Answer(ctx, s, s.Form.SelectedValues()))
	assert.True(t, s.Form.Done())
	assert.Equal(t, map[string]any{"availability": "99.9", "channels": []any{"phone"}}, s.Form.Answers)

	assert.Error(t, m.Answer(ctx, s, "extra"))

	require.NoError(t, m.ClearForm(ctx, s))
	assert.Nil(t, s.Form)
}

func TestManager_AnswerSkipsOptionalField(t *testing.T) {
	ctx := context.Background()
	m := NewManager(mapStorage{})
	s := &ChatSession{ChatID: 1, ConsultationID: "c1"}
	_, err := m.BeginForm(ctx, s, "targets", slaForm())
	require.NoError(t, err)

	require.NoError(t, m.Answer(ctx, s, nil))
	assert.Empty(t, s.Form.Answers)
	assert.Equal(t, 1, s.Form.Index)
}

func TestForm_SelectedValues(t *testing.T) {
	var empty *Form
	assert.Nil(t, empty.SelectedValues())
	assert.Nil(t, (&Form{}).SelectedValues())

	f := &Form{Selected: []string{"email", "sms"}}
	values := f.SelectedValues()
	assert.Equal(t, []any{"email", "sms"}, values)

	f.Selected[0] = "fax"
	assert.Equal(t, []any{"email", "sms"}, values)
}
