package http

import (
	"net/http"
	"time"
)

// RequestObserver receives the outcome of every outbound request.
// status is 0 when no response was received.
type RequestObserver interface {
	ObserveRequest(service, method string, status int, duration time.Duration)
}

type observerTransport struct {
	service   string
	observer  RequestObserver
	transport http.RoundTripper
}

func (t *observerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.transport.RoundTrip(req)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	t.observer.ObserveRequest(t.service, req.Method, status, time.Since(start))

	return resp, err
}

func WithRequestObserver(service string, observer RequestObserver) HttpOpts {
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		if observer == nil {
			return rt
		}
		return &observerTransport{
			service:   service,
			observer:  observer,
			transport: rt,
		}
	})
}
