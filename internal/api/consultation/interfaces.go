package consultation

import (
	"context"
	"net/http"

	"github.com/futig/sla-consultant/internal/entity"
	consultationUsecase "github.com/futig/sla-consultant/internal/usecase/consultation"
)

type ConsultationUsecase interface {
	Start(ctx context.Context, templateID string, sinks ...consultationUsecase.EventSink) (*consultationUsecase.Orchestrator, error)
	List() []entity.ConsultationListItem
	View(id string) (entity.ConsultationView, error)
	SendFreeText(ctx context.Context, id, content string) (entity.ConsultationView, error)
	SubmitStructured(ctx context.Context, id string, data map[string]any) (entity.ConsultationView, error)
	ForceNextStage(ctx context.Context, id string) (entity.ConsultationView, error)
	Summary(id string) (entity.ConsultationSummary, error)
	ExtractTemplate(ctx context.Context, id string) (*entity.ExtractedTemplate, error)
	SaveExtractedTemplate(ctx context.Context, extracted *entity.ExtractedTemplate) (*entity.Template, error)
	Close(id string) error
}

type RequestValidator interface {
	ValidateStartConsultation(req *entity.StartConsultationRequest) error
	ValidateSendMessage(req *entity.SendMessageRequest) error
	ValidateSubmitStructured(req *entity.SubmitStructuredRequest) error
	ValidateExtractedTemplate(t *entity.ExtractedTemplate) error
}

// EventStream serves live consultation events to websocket clients
type EventStream interface {
	Serve(w http.ResponseWriter, r *http.Request, id string, snapshot func() (entity.ConsultationView, error)) error
}
