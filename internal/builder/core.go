package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/futig/sla-consultant/internal/config"
	"github.com/futig/sla-consultant/internal/entity"
	"github.com/futig/sla-consultant/internal/integration/callback"
	consultationConnector "github.com/futig/sla-consultant/internal/integration/consultation"
	"github.com/futig/sla-consultant/internal/integration/events"
	"github.com/futig/sla-consultant/internal/integration/template"
	"github.com/futig/sla-consultant/internal/metrics"
	"github.com/futig/sla-consultant/internal/pkg/validator"
	"github.com/futig/sla-consultant/internal/repository"
	"github.com/futig/sla-consultant/internal/usecase/consultation"
	"go.uber.org/zap"
)

const registryCleanupInterval = 5 * time.Minute

// templateCatalog lists locally known templates, only available in mock mode
type templateCatalog interface {
	List() []*entity.Template
}

// core holds what every front end shares: the consultation usecase and the
// infrastructure behind it
type core struct {
	cfg       *config.Config
	logger    *zap.Logger
	usecase   *consultation.Usecase
	templates consultation.TemplateStore
	catalog   templateCatalog
	metrics   *metrics.Metrics

	closers []func(ctx context.Context)
}

// newCore wires connectors, registry, sinks and the optional archive.
// extra sinks receive the events of every consultation.
func newCore(ctx context.Context, cfg *config.Config, logger *zap.Logger, extra ...consultation.EventSink) (*core, error) {
	c := &core{cfg: cfg, logger: logger}

	shutdownTracing, err := setupTracing(cfg.TracingCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	c.onClose(func(ctx context.Context) {
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracer shutdown error", zap.Error(err))
		}
	})

	registry := repository.NewCacheRegistry[*consultation.Orchestrator](cfg.App.SessionTTL, registryCleanupInterval)
	c.metrics = metrics.New(registry.Len)

	var connector consultation.ConsultationConnector
	if cfg.EnableMocks {
		logger.Info("Using mock connectors for external services")
		store := template.NewFileStore(logger)
		if err := store.LoadDir(cfg.App.TemplatesDir); err != nil {
			c.close(ctx)
			return nil, fmt.Errorf("load templates: %w", err)
		}
		c.templates, c.catalog = store, store
		connector = consultationConnector.NewMockConnector(store, logger)
	} else {
		logger.Info("Using real connectors for external services")
		c.templates = template.NewConnector(cfg.TemplateAPICfg, c.metrics, logger)
		connector = consultationConnector.NewConnector(cfg.ConsultationAPICfg, c.metrics, logger)
	}

	sinks := consultation.MultiSink{consultation.LogSink{}, c.metrics}
	sinks = append(sinks, extra...)

	if cfg.CallbackCfg.CallbackEndpoint != "" {
		cb := callback.NewConnector(cfg.CallbackCfg, logger)
		sinks = append(sinks, cb)
		c.onClose(func(context.Context) { cb.Close() })
		logger.Info("Callback delivery enabled", zap.String("endpoint", cfg.CallbackCfg.CallbackEndpoint))
	}

	if cfg.NATSCfg.URL != "" {
		conn, err := events.Connect(cfg.NATSCfg, logger)
		if err != nil {
			c.close(ctx)
			return nil, err
		}
		sinks = append(sinks, events.NewNATSSink(conn, cfg.NATSCfg.SubjectPrefix))
		c.onClose(func(context.Context) {
			if err := conn.Drain(); err != nil {
				logger.Warn("nats drain error", zap.Error(err))
			}
		})
		logger.Info("NATS event publishing enabled", zap.String("url", cfg.NATSCfg.URL))
	}

	var archive consultation.SummaryArchive
	if cfg.DB.URL != "" {
		db, err := setupDatabase(ctx, cfg.DB, logger)
		if err != nil {
			c.close(ctx)
			return nil, fmt.Errorf("setup database: %w", err)
		}
		c.onClose(func(context.Context) { db.Close() })

		logger.Info("Running database migrations")
		if err := repository.RunMigrations(cfg.DB.URL); err != nil {
			c.close(ctx)
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("Database migrations completed successfully")

		archive = repository.NewSummaryRepository(db)
	}

	c.usecase = consultation.NewUsecase(
		c.templates,
		connector,
		registry,
		validator.New(),
		archive,
		sinks,
		consultation.OrchestratorConfig{
			RequestTimeout: cfg.App.RequestTimeout,
			PollInterval:   cfg.App.PollInterval,
		},
		logger,
	)
	// closers run in reverse, so live consultations are closed before sinks
	c.onClose(func(context.Context) { c.usecase.Shutdown() })

	logger.Info("Consultation core initialized",
		zap.Bool("mocks", cfg.EnableMocks),
		zap.Bool("archive", archive != nil),
		zap.Int("sinks", len(sinks)),
	)

	return c, nil
}

func (c *core) onClose(fn func(ctx context.Context)) {
	c.closers = append(c.closers, fn)
}

// close releases resources in reverse order of acquisition
func (c *core) close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i](ctx)
	}
	c.closers = nil
}
