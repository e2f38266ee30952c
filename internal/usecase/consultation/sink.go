package consultation

import (
	"context"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// SinkFunc adapts a function to EventSink
type SinkFunc func(ctx context.Context, event entity.ConsultationEvent)

func (f SinkFunc) Publish(ctx context.Context, event entity.ConsultationEvent) {
	f(ctx, event)
}

// MultiSink publishes every event to each sink in order
type MultiSink []EventSink

func (m MultiSink) Publish(ctx context.Context, event entity.ConsultationEvent) {
	for _, s := range m {
		if s != nil {
			s.Publish(ctx, event)
		}
	}
}

type nopSink struct{}

func (nopSink) Publish(context.Context, entity.ConsultationEvent) {}

// LogSink writes a line per event to the logger carried by the context
type LogSink struct{}

func (LogSink) Publish(ctx context.Context, event entity.ConsultationEvent) {
	fields := []zap.Field{
		zap.String("consultation_id", event.ConsultationID),
		zap.String("event_type", string(event.Type)),
	}

	switch event.Type {
	case entity.EventTypeTransition:
		if event.Transition != nil {
			fields = append(fields,
				zap.String("to_stage_id", event.Transition.ToStageID),
				zap.Int("to_stage_number", event.Transition.ToStageNumber),
			)
		}
	case entity.EventTypeNotice:
		if event.Notice != nil {
			fields = append(fields, zap.String("notice_level", string(event.Notice.Level)))
		}
	case entity.EventTypeError:
		ctxzap.Warn(ctx, "consultation event", append(fields, zap.String("error", event.Error))...)
		return
	}

	ctxzap.Debug(ctx, "consultation event", fields...)
}
