package telegram

import (
	"context"
	"fmt"

	"github.com/futig/sla-consultant/internal/config"
	"github.com/futig/sla-consultant/internal/telegram/bot"
	"github.com/futig/sla-consultant/internal/telegram/handlers"
	"github.com/futig/sla-consultant/internal/telegram/state"
	"go.uber.org/zap"
)

// Bot is the main telegram bot interface
type Bot interface {
	Start(ctx context.Context) error
	Stop() error
}

// NewBot initializes the telegram bot with all dependencies
func NewBot(
	cfg *config.TelegramConfig,
	storage state.Storage,
	usecase handlers.ConsultationUsecase,
	templates handlers.TemplateCatalog,
	logger *zap.Logger,
) (Bot, error) {
	b, err := bot.New(cfg, state.NewManager(storage), usecase, templates, logger)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	logger.Info("telegram bot initialized successfully",
		zap.String("default_template", cfg.DefaultTemplateID),
	)

	return b, nil
}
