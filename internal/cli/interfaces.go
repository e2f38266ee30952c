package cli

import (
	"context"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/futig/sla-consultant/internal/usecase/consultation"
)

type ConsultationUsecase interface {
	Start(ctx context.Context, templateID string, sinks ...consultation.EventSink) (*consultation.Orchestrator, error)
	View(id string) (entity.ConsultationView, error)
	SendFreeText(ctx context.Context, id, content string) (entity.ConsultationView, error)
	SubmitStructured(ctx context.Context, id string, data map[string]any) (entity.ConsultationView, error)
	ForceNextStage(ctx context.Context, id string) (entity.ConsultationView, error)
	Summary(id string) (entity.ConsultationSummary, error)
	Close(id string) error
}

type TemplateSource interface {
	GetTemplate(ctx context.Context, templateID string) (*entity.Template, error)
}

// Prompter asks the user for input
type Prompter interface {
	// Text reads a line. Required prompts do not accept blank input.
	Text(label string, required bool) (string, error)
	// Choose returns the index of the picked item
	Choose(label string, items []string) (int, error)
}
