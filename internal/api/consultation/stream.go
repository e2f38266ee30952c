package consultation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/gorilla/websocket"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	subscriberSize = 64
)

// SnapshotFrame is the first frame of every stream
type SnapshotFrame struct {
	Type string                  `json:"type"`
	View entity.ConsultationView `json:"view"`
}

type subscriber struct {
	events chan entity.ConsultationEvent
	done   chan struct{}
}

// Hub fans consultation events out to websocket subscribers. It is an event
// sink, register it with the usecase so every consultation reaches it.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
		subs:   map[string]map[*subscriber]struct{}{},
	}
}

// Publish delivers the event to every subscriber of its consultation.
// A subscriber that cannot keep up is disconnected.
func (h *Hub) Publish(ctx context.Context, event entity.ConsultationEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs[event.ConsultationID] {
		select {
		case s.events <- event:
		default:
			ctxzap.Warn(ctx, "websocket subscriber is too slow, disconnecting",
				zap.String("consultation_id", event.ConsultationID),
			)
			h.removeLocked(event.ConsultationID, s)
		}
	}
}

// Subscribers returns the number of open streams for a consultation
func (h *Hub) Subscribers(consultationID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[consultationID])
}

// Serve upgrades the request and streams events until the client leaves.
// The subscription is registered before snapshot is taken, so events raised
// while the snapshot is built are delivered after it.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, id string, snapshot func() (entity.ConsultationView, error)) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	defer conn.Close()

	s := h.add(id)
	defer h.remove(id, s)

	ctx := r.Context()
	ctxzap.Info(ctx, "event stream opened")

	view, err := snapshot()
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "snapshot unavailable"),
			time.Now().Add(writeWait))
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := write(conn, SnapshotFrame{Type: "snapshot", View: view}); err != nil {
		return err
	}

	readErr := make(chan error, 1)
	go func() {
		readErr <- readPump(conn)
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event := <-s.events:
			if err := write(conn, event); err != nil {
				return err
			}
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "too slow"),
				time.Now().Add(writeWait))
			return nil
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ctxzap.Info(ctx, "event stream closed by client")
				return nil
			}
			return err
		}
	}
}

func (h *Hub) add(id string) *subscriber {
	s := &subscriber{
		events: make(chan entity.ConsultationEvent, subscriberSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[id] == nil {
		h.subs[id] = map[*subscriber]struct{}{}
	}
	h.subs[id][s] = struct{}{}
	return s
}

func (h *Hub) remove(id string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id, s)
}

func (h *Hub) removeLocked(id string, s *subscriber) {
	set, ok := h.subs[id]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.done)
	if len(set) == 0 {
		delete(h.subs, id)
	}
}

func write(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// readPump discards client frames and keeps the read deadline fresh on pong
func readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return closeErr
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}
