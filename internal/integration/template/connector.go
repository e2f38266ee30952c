package template

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/futig/sla-consultant/internal/config"
	"github.com/futig/sla-consultant/internal/entity"
	"github.com/futig/sla-consultant/internal/integration/common"
	pkgRetry "github.com/futig/sla-consultant/internal/pkg/retry"
	pkghttp "github.com/futig/sla-consultant/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	templatesEndpoint = "/api/consultation_templates/templates"
)

type Connector struct {
	config    config.TemplateAPIConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(
	cfg config.TemplateAPIConfig,
	observer pkghttp.RequestObserver,
	logger *zap.Logger,
) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, "template-api", logger,
			pkghttp.WithRequestObserver("template-api", observer),
		),
		config: cfg,
		logger: logger,
	}
}

// GetTemplate fetches a template by id
// GET /api/consultation_templates/templates/{id}
func (c *Connector) GetTemplate(ctx context.Context, templateID string) (*entity.Template, error) {
	endpoint := templatesEndpoint + "/" + url.PathEscape(templateID)

	var tpl entity.Template
	err := pkgRetry.Do(ctx, &c.config.Retry, "get_template", func(ctx context.Context) error {
		return c.connector.DoRequest(ctx, http.MethodGet, endpoint, nil, &tpl)
	})
	if err != nil {
		if pkghttp.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("template %s: %w", templateID, entity.ErrTemplateNotFound)
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	ctxzap.Debug(ctx, "template loaded",
		zap.String("template_id", tpl.ID),
		zap.Int("stages", len(tpl.Stages)),
	)

	return &tpl, nil
}

// CreateTemplate stores a new template
// POST /api/consultation_templates/templates
func (c *Connector) CreateTemplate(ctx context.Context, tpl *entity.Template) (*entity.Template, error) {
	var created entity.Template
	if err := c.connector.DoRequest(ctx, http.MethodPost, templatesEndpoint, tpl, &created); err != nil {
		if pkghttp.IsStatus(err, http.StatusUnprocessableEntity) || pkghttp.IsStatus(err, http.StatusBadRequest) {
			return nil, fmt.Errorf("%w: %v", entity.ErrInvalidTemplate, err)
		}
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	ctxzap.Info(ctx, "template created", zap.String("template_id", created.ID))

	return &created, nil
}
