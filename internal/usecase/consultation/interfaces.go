package consultation

import (
	"context"

	"github.com/futig/sla-consultant/internal/entity"
)

type ConsultationConnector interface {
	StartConsultation(ctx context.Context, templateID string) (*entity.ConsultationResponse, error)
	SendMessage(ctx context.Context, sessionID entity.SessionID, req *entity.ChatRequest) (*entity.ConsultationResponse, error)
	CheckStageCompletion(ctx context.Context, sessionID entity.SessionID) (*entity.StageCompletionStatus, error)
	ForceNextStage(ctx context.Context, sessionID entity.SessionID) (*entity.ForceNextStageResponse, error)
	ExtractTemplate(ctx context.Context, sessionID entity.SessionID) (*entity.ExtractedTemplate, error)
}

type TemplateStore interface {
	GetTemplate(ctx context.Context, templateID string) (*entity.Template, error)
	CreateTemplate(ctx context.Context, template *entity.Template) (*entity.Template, error)
}

type StructuredInputValidator interface {
	ValidateStructuredInput(fields []entity.StructuredInputField, data map[string]any) error
}

// EventSink receives consultation events. Implementations must not block for long
// and must not call back into the orchestrator that published the event
// synchronously.
type EventSink interface {
	Publish(ctx context.Context, event entity.ConsultationEvent)
}

type SummaryArchive interface {
	SaveSummary(ctx context.Context, summary *entity.ConsultationSummary) error
}

type Registry interface {
	Save(id string, o *Orchestrator)
	Get(id string) (*Orchestrator, bool)
	Delete(id string)
	List() []*Orchestrator
}
