package http

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type traceTransport struct {
	tracer    trace.Tracer
	service   string
	transport http.RoundTripper
}

func (t *traceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := t.tracer.Start(req.Context(), fmt.Sprintf("%s %s", t.service, req.Method),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL.Redacted()),
		attribute.String("peer.service", t.service),
	)

	reqCopy := req.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(reqCopy.Header))

	resp, err := t.transport.RoundTrip(reqCopy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, resp.Status)
	}

	return resp, nil
}

// WithTracing opens a client span per outbound request and propagates the
// trace context in the request headers.
func WithTracing(service string) HttpOpts {
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		return &traceTransport{
			tracer:    otel.Tracer("sla-consultant/http"),
			service:   service,
			transport: rt,
		}
	})
}
