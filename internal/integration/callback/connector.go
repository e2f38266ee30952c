package callback

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/futig/sla-consultant/internal/config"
	"github.com/futig/sla-consultant/internal/entity"
	"github.com/futig/sla-consultant/internal/integration/common"
	"github.com/futig/sla-consultant/internal/pkg/logger"
	pkgRetry "github.com/futig/sla-consultant/internal/pkg/retry"
	pkghttp "github.com/futig/sla-consultant/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const queueSize = 256

type delivery struct {
	ctx   context.Context
	event *entity.CallbackEvent
}

// Connector delivers consultation events to a webhook. Publish only queues
// the event, a single worker sends them in order.
type Connector struct {
	config    config.CallbackConnectorConfig
	connector *pkghttp.Connector
	logger    *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan delivery
	wg     sync.WaitGroup
}

func NewConnector(
	cfg config.CallbackConnectorConfig,
	logger *zap.Logger,
) *Connector {
	c := &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, "callback", logger),
		config:    cfg,
		logger:    logger,
		queue:     make(chan delivery, queueSize),
	}

	c.wg.Add(1)
	go c.run()

	return c
}

// Publish converts a consultation event and queues it for delivery
func (c *Connector) Publish(ctx context.Context, event entity.ConsultationEvent) {
	cb := ToCallbackEvent(event)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}

	select {
	case c.queue <- delivery{ctx: logger.Detach(ctx), event: cb}:
	default:
		ctxzap.Warn(ctx, "callback queue is full, dropping event",
			zap.String("event_type", string(cb.Event)),
		)
	}
}

// Close stops accepting events and waits for queued ones to be sent
func (c *Connector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Connector) run() {
	defer c.wg.Done()

	for d := range c.queue {
		if err := c.Send(d.ctx, c.config.CallbackEndpoint, d.event.ConsultationID, d.event); err != nil {
			ctxzap.Error(d.ctx, "failed to send callback", zap.Error(err))
		}
	}
}

func (c *Connector) Send(ctx context.Context, callbackURL string, requestID string, event *entity.CallbackEvent) error {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	ctxzap.Debug(ctx, "sending callback event",
		zap.String("event_type", string(event.Event)),
		zap.String("callback_url", callbackURL),
		zap.String("request_id", requestID),
		zap.String("timestamp", event.Timestamp),
	)

	opts := []pkghttp.RequestOpt{
		pkghttp.WithHeader("X-Request-ID", requestID),
		pkghttp.WithURL(callbackURL),
	}

	err := pkgRetry.Do(ctx, &c.config.Retry, "send_callback", func(ctx context.Context) error {
		return c.connector.DoRequest(ctx, http.MethodPost, "", event, nil, opts...)
	})
	if err != nil {
		return fmt.Errorf("failed to send callback, event_type: %s, url: %s, error: %w", string(event.Event), callbackURL, err)
	}

	ctxzap.Debug(ctx, "callback sent successfully",
		zap.String("event_type", string(event.Event)),
		zap.String("request_id", requestID),
	)
	return nil
}

// ToCallbackEvent maps an orchestrator event onto the webhook envelope
func ToCallbackEvent(event entity.ConsultationEvent) *entity.CallbackEvent {
	cb := &entity.CallbackEvent{
		ConsultationID: event.ConsultationID,
		Timestamp:      event.Timestamp.UTC().Format(time.RFC3339),
	}
	if event.Timestamp.IsZero() {
		cb.Timestamp = ""
	}

	switch event.Type {
	case entity.EventTypeMessage:
		cb.Event, cb.Data = entity.CallbackEventTypeMessage, event.Message
	case entity.EventTypeTransition:
		cb.Event, cb.Data = entity.CallbackEventTypeTransition, event.Transition
	case entity.EventTypeNotice:
		cb.Event, cb.Data = entity.CallbackEventTypeNotice, event.Notice
	case entity.EventTypeCompleted:
		cb.Event, cb.Data = entity.CallbackEventTypeCompleted, event.Summary
	default:
		cb.Event = entity.CallbackEventTypeError
		cb.Data = &entity.CallbackErrorData{
			Error: entity.CallbackErrorDetails{
				Message: event.Error,
				Details: map[string]any{"event_type": string(event.Type)},
			},
		}
	}

	return cb
}
