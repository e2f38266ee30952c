package http

import (
	"net/http"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// payloads longer than this are cut in debug logs
const maxLoggedPayload = 2048

// context key for attaching the encoded request body
type payloadContextKey struct{}

var redactedHeaders = []string{"Authorization", "Cookie", "X-Api-Key"}

type logTransport struct {
	transport http.RoundTripper
}

func (t *logTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Any("headers", redact(req.Header)),
	}
	if payload, ok := ctx.Value(payloadContextKey{}).([]byte); ok && len(payload) > 0 {
		if len(payload) > maxLoggedPayload {
			payload = payload[:maxLoggedPayload]
			fields = append(fields, zap.Bool("payload_truncated", true))
		}
		fields = append(fields, zap.ByteString("payload", payload))
	}
	ctxzap.Debug(ctx, "HTTP outbound request", fields...)

	resp, err := t.transport.RoundTrip(req)

	result := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		ctxzap.Debug(ctx, "HTTP outbound request failed", append(result, zap.Error(err))...)
		return nil, err
	}
	ctxzap.Debug(ctx, "HTTP outbound response", append(result, zap.Int("status", resp.StatusCode))...)

	return resp, nil
}

func redact(h http.Header) http.Header {
	out := h.Clone()
	for _, key := range redactedHeaders {
		if out.Get(key) != "" {
			out.Set(key, "***")
		}
	}
	return out
}

// WithRequestLogging logs outbound requests and their outcome at debug level.
// Credentials are masked.
func WithRequestLogging() HttpOpts {
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		return &logTransport{transport: rt}
	})
}
