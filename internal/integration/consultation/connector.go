package consultation

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
	chatEndpoint            = "/api/consultation/chat"
	stageCompletionEndpoint = "/api/consultation/sessions/%s/stage-completion"
	forceNextStageEndpoint  = "/api/consultation/sessions/%s/force-next-stage"
	extractTemplateEndpoint = "/api/consultation/sessions/%s/extract-template"

	startContent = "Start template consultation"
)

// Connector talks to the Consultation API. Chat turns are sent once,
// read-only calls are retried.
type Connector struct {
	config    config.ConsultationAPIConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(
	cfg config.ConsultationAPIConfig,
	observer pkghttp.RequestObserver,
	logger *zap.Logger,
) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, "consultation-api", logger,
			common.BreakerOption("consultation-api", cfg.Breaker, logger),
			pkghttp.WithRequestObserver("consultation-api", observer),
		),
		config: cfg,
		logger: logger,
	}
}

// StartConsultation opens a backend session for the template
// POST /api/consultation/chat?template_id={id}
func (c *Connector) StartConsultation(ctx context.Context, templateID string) (*entity.ConsultationResponse, error) {
	endpoint := chatEndpoint + "?" + url.Values{"template_id": {templateID}}.Encode()

	ctxzap.Info(ctx, "starting consultation session")

	var resp entity.ConsultationResponse
	err := c.connector.DoRequest(ctx, http.MethodPost, endpoint, &entity.ChatRequest{
		Content: startContent,
		Role:    entity.RoleUser,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to start consultation: %w", err)
	}

	return &resp, nil
}

// SendMessage sends a chat turn to an open session
// POST /api/consultation/chat?session_id={id}
func (c *Connector) SendMessage(ctx context.Context, sessionID entity.SessionID, req *entity.ChatRequest) (*entity.ConsultationResponse, error) {
	endpoint := chatEndpoint + "?" + url.Values{"session_id": {sessionID.String()}}.Encode()

	ctxzap.Debug(ctx, "sending consultation message",
		zap.String("session_id", sessionID.String()),
		zap.Bool("structured", req.IsStructured),
		zap.Int("content_length", len(req.Content)),
	)

	var resp entity.ConsultationResponse
	if err := c.connector.DoRequest(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return &resp, nil
}

func (c *Connector) CheckStageCompletion(ctx context.Context, sessionID entity.SessionID) (*entity.StageCompletionStatus, error) {
	endpoint := fmt.Sprintf(stageCompletionEndpoint, url.PathEscape(sessionID.String()))

	var resp entity.StageCompletionStatus
	err := pkgRetry.Do(ctx, &c.config.Retry, "check_stage_completion", func(ctx context.Context) error {
		return c.connector.DoRequest(ctx, http.MethodGet, endpoint, nil, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check stage completion: %w", err)
	}

	return &resp, nil
}

func (c *Connector) ForceNextStage(ctx context.Context, sessionID entity.SessionID) (*entity.ForceNextStageResponse, error) {
	endpoint := fmt.Sprintf(forceNextStageEndpoint, url.PathEscape(sessionID.String()))

	ctxzap.Info(ctx, "forcing next stage", zap.String("session_id", sessionID.String()))

	var resp entity.ForceNextStageResponse
	if err := c.connector.DoRequest(ctx, http.MethodPost, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to force next stage: %w", err)
	}

	return &resp, nil
}

func (c *Connector) ExtractTemplate(ctx context.Context, sessionID entity.SessionID) (*entity.ExtractedTemplate, error) {
	endpoint := fmt.Sprintf(extractTemplateEndpoint, url.PathEscape(sessionID.String()))

	ctxzap.Info(ctx, "extracting template from consultation", zap.String("session_id", sessionID.String()))

	var resp entity.ExtractedTemplate
	err := pkgRetry.Do(ctx, &c.config.Retry, "extract_template", func(ctx context.Context) error {
		return c.connector.DoRequest(ctx, http.MethodPost, endpoint, nil, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract template: %w", err)
	}

	ctxzap.Debug(ctx, "template extracted",
		zap.String("name", resp.Name),
		zap.Int("stages", len(resp.Stages)),
	)

	return &resp, nil
}
