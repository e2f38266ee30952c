package handlers

import (
	"context"

	"github.com/futig/sla-consultant/internal/entity"
	consultationUsecase "github.com/futig/sla-consultant/internal/usecase/consultation"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotAPI is the part of tgbotapi.BotAPI the handlers use
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type ConsultationUsecase interface {
	Start(ctx context.Context, templateID string, sinks ...consultationUsecase.EventSink) (*consultationUsecase.Orchestrator, error)
	View(id string) (entity.ConsultationView, error)
	SendFreeText(ctx context.Context, id, content string) (entity.ConsultationView, error)
	SubmitStructured(ctx context.Context, id string, data map[string]any) (entity.ConsultationView, error)
	ForceNextStage(ctx context.Context, id string) (entity.ConsultationView, error)
	Summary(id string) (entity.ConsultationSummary, error)
	Close(id string) error
}

// TemplateCatalog lists the templates offered on /start
type TemplateCatalog interface {
	List() []*entity.Template
}
