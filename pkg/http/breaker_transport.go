package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig configures the circuit breaker guarding a remote service
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	Logger              *zap.Logger
}

type breakerTransport struct {
	breaker   *gobreaker.CircuitBreaker
	transport http.RoundTripper
}

// errServerStatus marks a 5xx answer as a breaker failure. The response
// itself is still handed back to the caller.
type errServerStatus struct {
	status int
}

func (e errServerStatus) Error() string {
	return fmt.Sprintf("server responded with status %d", e.status)
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	result, err := t.breaker.Execute(func() (interface{}, error) {
		resp, err := t.transport.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus{status: resp.StatusCode}
		}
		return resp, nil
	})

	if resp, ok := result.(*http.Response); ok && resp != nil {
		return resp, nil
	}
	return nil, err
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// WithCircuitBreaker fails fast with gobreaker.ErrOpenState while the remote
// service keeps failing.
func WithCircuitBreaker(cfg BreakerConfig) HttpOpts {
	cb := newBreaker(cfg)
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		return &breakerTransport{
			breaker:   cb,
			transport: rt,
		}
	})
}
