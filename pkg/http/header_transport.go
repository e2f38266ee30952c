package http

import "net/http"

type headerTransport struct {
	headers   http.Header
	transport http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqCopy := req.Clone(req.Context())
	for key, values := range t.headers {
		if reqCopy.Header.Get(key) != "" {
			continue
		}
		reqCopy.Header[key] = values
	}

	return t.transport.RoundTrip(reqCopy)
}

// WithStaticHeaders sets headers on every request unless the request already
// carries them
func WithStaticHeaders(headers map[string]string) HttpOpts {
	h := http.Header{}
	for k, v := range headers {
		if v != "" {
			h.Set(k, v)
		}
	}

	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		if len(h) == 0 {
			return rt
		}
		return &headerTransport{headers: h, transport: rt}
	})
}

// WithAuthToken sends a bearer token. An empty token sends nothing.
func WithAuthToken(token string) HttpOpts {
	if token == "" {
		return WithStaticHeaders(nil)
	}
	return WithStaticHeaders(map[string]string{"Authorization": "Bearer " + token})
}

func WithUserAgent(agent string) HttpOpts {
	return WithStaticHeaders(map[string]string{"User-Agent": agent})
}
