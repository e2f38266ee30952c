package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/futig/sla-consultant/internal/entity"
	mockConsultation "github.com/futig/sla-consultant/internal/integration/consultation"
	"github.com/futig/sla-consultant/internal/integration/template"
	"github.com/futig/sla-consultant/internal/pkg/validator"
	"github.com/futig/sla-consultant/internal/repository"
	"github.com/futig/sla-consultant/internal/usecase/consultation"
	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type answer struct {
	text   string
	choice int
}

// scriptedPrompter replays answers and reports EOF once they run out
type scriptedPrompter struct {
	answers []answer
	labels  []string
}

func (p *scriptedPrompter) next(label string) (answer, error) {
	p.labels = append(p.labels, label)
	if len(p.answers) == 0 {
		return answer{}, promptui.ErrEOF
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func (p *scriptedPrompter) Text(label string, required bool) (string, error) {
	a, err := p.next(label)
	return a.text, err
}

func (p *scriptedPrompter) Choose(label string, items []string) (int, error) {
	a, err := p.next(label)
	return a.choice, err
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testTemplate() *entity.Template {
	return &entity.Template{
		ID:   "sla",
		Name: "SLA",
		Stages: []entity.Stage{
			{ID: "scope", Name: "Scope", ExpectedOutputs: []entity.ExpectedOutput{{Name: "service_name", Required: true}}},
			{
				ID:   "targets",
				Name: "Targets",
				UIComponents: &entity.UIComponents{StructuredInput: &entity.StructuredInputDescriptor{
					Prompt: "Pick the service tier",
					Fields: []entity.StructuredInputField{
						{
							ID: "tier", Label: "Tier", Type: entity.FieldTypeSelect, Required: true,
							Options: []entity.FieldOption{{Value: "gold", Label: "Gold"}, {Value: "silver", Label: "Silver"}},
						},
						{
							ID: "channels", Label: "Channels", Type: entity.FieldTypeCheckbox,
							Options: []entity.FieldOption{{Value: "email", Label: "Email"}, {Value: "phone", Label: "Phone"}},
						},
						{ID: "notes", Label: "Notes", Type: entity.FieldTypeText},
					},
				}},
			},
		},
	}
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()

	logger := zap.NewNop()
	store := template.NewFileStore(logger)
	store.Add(testTemplate())

	uc := consultation.NewUsecase(
		store,
		mockConsultation.NewMockConnector(store, logger),
		repository.NewCacheRegistry[*consultation.Orchestrator](time.Hour, time.Hour),
		validator.New(),
		nil,
		nil,
		consultation.OrchestratorConfig{RequestTimeout: 5 * time.Second, PollInterval: time.Hour},
		logger,
	)
	t.Cleanup(uc.Shutdown)

	return &Backend{Consultations: uc, Templates: store, Logger: logger, Close: func() {}}
}

func TestSession_RunToCompletion(t *testing.T) {
	backend := newTestBackend(t)
	out := &syncBuffer{}
	prompter := &scriptedPrompter{answers: []answer{
		{text: "payments"},
		{text: ":progress"},
		{text: "team a"},
		{choice: 1},
		{choice: 0},
		{choice: 2},
		{text: "24/7"},
	}}

	err := NewSession(backend.Consultations, prompter, out).Run(context.Background(), "sla")
	require.NoError(t, err)

	assert.Empty(t, prompter.answers)
	assert.Equal(t, []string{"you", "you", "you", "Tier *", "Channels", "Channels", "Notes"}, prompter.labels)

	output := out.String()
	assert.Contains(t, output, `assistant> Welcome to the "SLA" consultation`)
	assert.Contains(t, output, "Stage 1/2 Scope")
	assert.Contains(t, output, "Stage 2/2 Targets")
	assert.Contains(t, output, "Pick the service tier")
	assert.Contains(t, output, "All stages are complete.")
	assert.Contains(t, output, "Summary of SLA")
}

func TestSession_Commands(t *testing.T) {
	backend := newTestBackend(t)
	out := &syncBuffer{}
	prompter := &scriptedPrompter{answers: []answer{
		{text: ":summary"},
		{text: ":force"},
		{text: ":quit"},
	}}

	err := NewSession(backend.Consultations, prompter, out).Run(context.Background(), "sla")
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "The consultation is not completed yet.")
	assert.Contains(t, output, "Successfully advanced to the next stage")
	assert.Contains(t, output, "Stage 2/2 Targets")
	assert.Equal(t, []string{"you", "you", "you"}, prompter.labels)
}

func TestSession_EOFQuits(t *testing.T) {
	backend := newTestBackend(t)

	err := NewSession(backend.Consultations, &scriptedPrompter{}, &syncBuffer{}).Run(context.Background(), "sla")
	assert.NoError(t, err)
}

func TestSession_UnknownTemplate(t *testing.T) {
	backend := newTestBackend(t)

	err := NewSession(backend.Consultations, &scriptedPrompter{}, &syncBuffer{}).Run(context.Background(), "missing")
	assert.ErrorIs(t, err, entity.ErrTemplateNotFound)
}

func TestSession_CheckboxRequiresSelection(t *testing.T) {
	out := &syncBuffer{}
	prompter := &scriptedPrompter{answers: []answer{{choice: 2}, {choice: 1}, {choice: 2}}}
	s := NewSession(nil, prompter, out)

	value, err := s.askField(entity.StructuredInputField{
		ID: "channels", Label: "Channels", Type: entity.FieldTypeCheckbox, Required: true,
		Options: []entity.FieldOption{{Value: "email", Label: "Email"}, {Value: "phone", Label: "Phone"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"phone"}, value)
	assert.Contains(t, out.String(), "Select at least one option.")
}
