package consultation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticTemplates map[string]*entity.Template

func (s staticTemplates) GetTemplate(ctx context.Context, id string) (*entity.Template, error) {
	tpl, ok := s[id]
	if !ok {
		return nil, entity.ErrTemplateNotFound
	}
	return tpl, nil
}

func mockTemplate() *entity.Template {
	return &entity.Template{
		ID:   "sla",
		Name: "SLA",
		Stages: []entity.Stage{
			{ID: "scope", Name: "Scope", ExpectedOutputs: []entity.ExpectedOutput{{Name: "service_name", Required: true}}},
			{ID: "targets", Name: "Targets", UIComponents: &entity.UIComponents{
				StructuredInput: &entity.StructuredInputDescriptor{
					Fields: []entity.StructuredInputField{{ID: "uptime", Label: "Uptime", Type: entity.FieldTypeText}},
				},
			}},
		},
	}
}

func progressOf(t *testing.T, resp *entity.ConsultationResponse) map[string]any {
	t.Helper()
	var p map[string]any
	require.NoError(t, json.Unmarshal(resp.TemplateProgress, &p))
	return p
}

func TestMockConnector_WalksTemplate(t *testing.T) {
	ctx := context.Background()
	m := NewMockConnector(staticTemplates{"sla": mockTemplate()}, zap.NewNop())

	start, err := m.StartConsultation(ctx, "sla")
	require.NoError(t, err)
	require.NotNil(t, start.SessionID)
	sid := *start.SessionID
	assert.Equal(t, "scope", progressOf(t, start)["stage_id"])

	resp, err := m.SendMessage(ctx, sid, &entity.ChatRequest{Content: "payments"})
	require.NoError(t, err)
	assert.Equal(t, "scope", progressOf(t, resp)["stage_id"])

	status, err := m.CheckStageCompletion(ctx, sid)
	require.NoError(t, err)
	assert.True(t, status.IsComplete)
	assert.Equal(t, "payments", status.ExtractedData["service_name"])

	resp, err = m.SendMessage(ctx, sid, &entity.ChatRequest{Content: "team a"})
	require.NoError(t, err)
	p := progressOf(t, resp)
	assert.Equal(t, "targets", p["stage_id"])
	assert.NotNil(t, p["ui_components"])

	resp, err = m.SendMessage(ctx, sid, &entity.ChatRequest{Content: `{"uptime":"99.9"}`, IsStructured: true})
	require.NoError(t, err)
	p = progressOf(t, resp)
	assert.EqualValues(t, 100, p["progress_percentage"])
	assert.EqualValues(t, 3, p["current_stage"])
}

func TestMockConnector_ForceNextStage(t *testing.T) {
	ctx := context.Background()
	m := NewMockConnector(staticTemplates{"sla": mockTemplate()}, zap.NewNop())

	start, err := m.StartConsultation(ctx, "sla")
	require.NoError(t, err)

	resp, err := m.ForceNextStage(ctx, *start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "targets", resp.CurrentStage)
	assert.Equal(t, 2, resp.CurrentStageIndex)
	assert.Equal(t, []string{"scope"}, resp.CompletedStages)

	_, err = m.ForceNextStage(ctx, *start.SessionID)
	assert.Error(t, err)
}

func TestMockConnector_UnknownSession(t *testing.T) {
	m := NewMockConnector(staticTemplates{}, zap.NewNop())

	_, err := m.SendMessage(context.Background(), "404", &entity.ChatRequest{Content: "x"})
	assert.ErrorIs(t, err, entity.ErrNoSession)

	_, err = m.StartConsultation(context.Background(), "missing")
	assert.ErrorIs(t, err, entity.ErrTemplateNotFound)
}
