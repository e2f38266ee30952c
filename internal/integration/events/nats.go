package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/futig/sla-consultant/internal/config"
	"github.com/futig/sla-consultant/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher is the part of *nats.Conn the sink needs
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes every consultation event to
// <prefix>.<consultation_id>.<event type>
type NATSSink struct {
	publisher Publisher
	prefix    string
}

func NewNATSSink(publisher Publisher, prefix string) *NATSSink {
	if prefix == "" {
		prefix = "consultation"
	}
	return &NATSSink{publisher: publisher, prefix: prefix}
}

// Connect opens a NATS connection with reconnects enabled
func Connect(cfg config.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("sla-consultant"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}

func (s *NATSSink) Subject(event entity.ConsultationEvent) string {
	return fmt.Sprintf("%s.%s.%s", s.prefix, event.ConsultationID, event.Type)
}

func (s *NATSSink) Publish(ctx context.Context, event entity.ConsultationEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		ctxzap.Error(ctx, "failed to encode event", zap.Error(err))
		return
	}

	subject := s.Subject(event)
	if err := s.publisher.Publish(subject, data); err != nil {
		ctxzap.Warn(ctx, "failed to publish event",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}
