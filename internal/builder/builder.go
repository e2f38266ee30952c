package builder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/futig/sla-consultant/internal/api"
	consultationapi "github.com/futig/sla-consultant/internal/api/consultation"
	"github.com/futig/sla-consultant/internal/cli"
	"github.com/futig/sla-consultant/internal/config"
	"github.com/futig/sla-consultant/internal/pkg/logger"
	"github.com/futig/sla-consultant/internal/pkg/validator"
	"github.com/futig/sla-consultant/internal/repository"
	"github.com/futig/sla-consultant/internal/telegram"
	"go.uber.org/zap"
)

const telegramStateCleanupInterval = 10 * time.Minute

// Build wires the HTTP service
func Build() (*App, error) {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	log.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
	)

	hub := consultationapi.NewHub(log)

	c, err := newCore(ctx, cfg, log, hub)
	if err != nil {
		return nil, err
	}

	handler := consultationapi.NewHandler(c.usecase, validator.New(), hub, log)
	router := api.SetupRouter(handler, c.metrics.Handler(), cfg.App.RequestTimeout, log)
	log.Info("HTTP router configured")

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.App.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
	)

	return &App{
		server: server,
		core:   c,
		logger: log,
	}, nil
}

// BuildTelegramBot wires the Telegram front end
func BuildTelegramBot() (*BotApp, error) {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.TelegramCfg.BotToken == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is required")
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	log.Info("Building Telegram bot",
		zap.String("environment", cfg.Environment),
	)

	c, err := newCore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	storage := repository.NewTelegramStateCache(cfg.App.SessionTTL, telegramStateCleanupInterval)

	bot, err := telegram.NewBot(&cfg.TelegramCfg, storage, c.usecase, c.catalog, log)
	if err != nil {
		c.close(ctx)
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	return &BotApp{
		bot:             bot,
		core:            c,
		logger:          log,
		shutdownTimeout: time.Duration(cfg.TelegramCfg.ShutdownTimeout) * time.Second,
	}, nil
}

// BuildConsole wires the terminal client. Logs go to stderr and stay quiet
// unless LOG_LEVEL is debug.
func BuildConsole(environment string) (*cli.Backend, error) {
	ctx := context.Background()

	cfg, err := config.Load(environment)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := "error"
	if cfg.LogLevel == "debug" {
		level = "debug"
	}
	log, err := logger.New(level)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	c, err := newCore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	return &cli.Backend{
		Consultations: c.usecase,
		Templates:     c.templates,
		Logger:        log,
		Close: func() {
			c.close(context.Background())
			_ = log.Sync()
		},
	}, nil
}
