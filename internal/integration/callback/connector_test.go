package callback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/futig/sla-consultant/internal/config"
	"github.com/futig/sla-consultant/internal/entity"
	pkgRetry "github.com/futig/sla-consultant/internal/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type received struct {
	Event          string          `json:"event"`
	ConsultationID string          `json:"consultation_id"`
	Timestamp      string          `json:"timestamp"`
	Data           json.RawMessage `json:"data"`
	RequestID      string          `json:"-"`
}

func TestConnector_DeliversEventsInOrder(t *testing.T) {
	var (
		mu     sync.Mutex
		got    []received
		failed bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if !failed {
			failed = true
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var ev received
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		ev.RequestID = r.Header.Get("X-Request-ID")
		got = append(got, ev)
	}))
	defer srv.Close()

	c := NewConnector(config.CallbackConnectorConfig{
		HTTPClientConfig: config.HTTPClientConfig{RequestTimeout: 5 * time.Second},
		CallbackEndpoint: srv.URL + "/hook",
		Retry:            pkgRetry.RetryConfig{Attempts: 3, Delay: time.Millisecond, MaxDelay: time.Millisecond},
	}, zap.NewNop())

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.Publish(context.Background(), entity.ConsultationEvent{
		Type:           entity.EventTypeMessage,
		ConsultationID: "c1",
		Timestamp:      ts,
		Message:        &entity.Message{Content: "hello", Role: entity.RoleAssistant},
	})
	c.Publish(context.Background(), entity.ConsultationEvent{
		Type:           entity.EventTypeError,
		ConsultationID: "c1",
		Timestamp:      ts,
		Error:          "boom",
	})
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "message", got[0].Event)
	assert.Equal(t, "c1", got[0].RequestID)
	assert.Equal(t, "2026-01-02T03:04:05Z", got[0].Timestamp)
	assert.JSONEq(t, `{"content":"hello","role":"assistant","timestamp":"0001-01-01T00:00:00Z"}`, string(got[0].Data))
	assert.Equal(t, "error", got[1].Event)
	assert.JSONEq(t, `{"error":{"message":"boom","details":{"event_type":"error"}}}`, string(got[1].Data))
}

func TestConnector_PublishAfterClose(t *testing.T) {
	c := NewConnector(config.CallbackConnectorConfig{CallbackEndpoint: "http://127.0.0.1:1"}, zap.NewNop())
	c.Close()

	assert.NotPanics(t, func() {
		c.Publish(context.Background(), entity.ConsultationEvent{Type: entity.EventTypeNotice})
	})
}

func TestToCallbackEvent(t *testing.T) {
	summary := &entity.ConsultationSummary{ConsultationID: "c1", Completed: true}
	cb := ToCallbackEvent(entity.ConsultationEvent{Type: entity.EventTypeCompleted, Summary: summary})

	assert.Equal(t, entity.CallbackEventTypeCompleted, cb.Event)
	assert.Same(t, summary, cb.Data)
	assert.Empty(t, cb.Timestamp)

	cb = ToCallbackEvent(entity.ConsultationEvent{Type: entity.EventTypeTransition, Transition: &entity.TransitionEvent{ToStageNumber: 2}})
	assert.Equal(t, entity.CallbackEventTypeTransition, cb.Event)
}
