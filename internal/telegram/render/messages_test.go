package render

import (
	"context"
	"fmt"
	"testing"

	"github.com/futig/sla-consultant/internal/entity"
	pkghttp "github.com/futig/sla-consultant/pkg/http"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func TestRenderEvent(t *testing.T) {
	tests := []struct {
		name  string
		event entity.ConsultationEvent
		want  string
		ok    bool
	}{
		{
			name:  "assistant message",
			event: entity.ConsultationEvent{Type: entity.EventTypeMessage, Message: &entity.Message{Role: entity.RoleAssistant, Content: "Which service?"}},
			want:  "Which service?",
			ok:    true,
		},
		{
			name:  "user message is not echoed",
			event: entity.ConsultationEvent{Type: entity.EventTypeMessage, Message: &entity.Message{Role: entity.RoleUser, Content: "payments"}},
		},
		{
			name:  "system message",
			event: entity.ConsultationEvent{Type: entity.EventTypeMessage, Message: &entity.Message{Role: entity.RoleSystem, Content: "Request timed out"}},
			want:  "⚠️ Request timed out",
			ok:    true,
		},
		{
			name:  "transition",
			event: entity.ConsultationEvent{Type: entity.EventTypeTransition, Transition: &entity.TransitionEvent{ToStageNumber: 2, ToStageName: "Performance targets"}},
			want:  "➡️ Stage 2: Performance targets",
			ok:    true,
		},
		{
			name:  "notice",
			event: entity.ConsultationEvent{Type: entity.EventTypeNotice, Notice: &entity.Notice{Level: entity.NoticeLevelSuccess, Text: "Stage ready"}},
			want:  "✅ Stage ready",
			ok:    true,
		},
		{
			name:  "error is shown through the system message",
			event: entity.ConsultationEvent{Type: entity.EventTypeError, Error: "boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RenderEvent(tt.event)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderProgress(t *testing.T) {
	text := RenderProgress(entity.ConsultationView{
		TemplateName: "Basic SLA",
		Progress: entity.CanonicalProgress{
			CurrentStageNumber: 2,
			TotalStages:        3,
			StageName:          "Performance targets",
			ProgressPercentage: 33,
		},
		Guidance: []entity.GuidanceItem{
			{Name: "availability", Required: true, Provided: true},
			{Name: "response_time", Description: "P1 response", Required: true},
		},
		StageCompletion: &entity.StageCompletionStatus{IsComplete: true},
	})

	assert.Contains(t, text, "Stage 2 of 3: Performance targets")
	assert.Contains(t, text, "[▓▓▓░░░░░░░] 33%")
	assert.Contains(t, text, "✅ availability (required)")
	assert.Contains(t, text, "▫️ response_time - P1 response (required)")
	assert.Contains(t, text, "/force")
}

func TestRenderSummary(t *testing.T) {
	text := RenderSummary(entity.ConsultationSummary{
		TemplateName: "Basic SLA",
		Outputs: []entity.StructuredOutput{{
			StageNumber: 2,
			StageName:   "Performance targets",
			Data:        map[string]any{"response_time": "1h", "availability": "99.9", "channels": []any{"email", "phone"}},
		}},
	})

	assert.Equal(t, "📄 Summary: Basic SLA\n\n2. Performance targets\n"+
		"  • availability: 99.9\n"+
		"  • channels: email, phone\n"+
		"  • response_time: 1h", text)

	assert.Contains(t, RenderSummary(entity.ConsultationSummary{TemplateName: "x"}), "No structured answers")
}

func TestRenderField(t *testing.T) {
	text := RenderField(entity.StructuredInputField{
		Label:       "P1 response time",
		Type:        entity.FieldTypeText,
		Required:    true,
		Placeholder: "1 hour",
	}, 2, 3)
	assert.Equal(t, "✏️ 2/3 P1 response time *\nFor example: 1 hour", text)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: ErrGeneric},
		{err: fmt.Errorf("wrap: %w", entity.ErrRequestInFlight), want: ErrBusy},
		{err: entity.ErrConsultationNotFound, want: ErrNoConsultation},
		{err: entity.ErrConsultationCompleted, want: ErrAlreadyCompleted},
		{err: gobreaker.ErrOpenState, want: ErrServiceUnavailable},
		{err: context.DeadlineExceeded, want: ErrTimeout},
		{err: &pkghttp.HTTPError{StatusCode: 429}, want: ErrRateLimited},
		{err: &pkghttp.HTTPError{StatusCode: 500}, want: ErrServiceUnavailable},
		{err: &pkghttp.NetworkError{Err: fmt.Errorf("dial tcp: refused")}, want: ErrNetworkIssue},
		{err: fmt.Errorf("%w: Availability is required", entity.ErrInvalidStructuredInput), want: "❌ invalid structured input: Availability is required"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyError(tt.err))
	}
}
