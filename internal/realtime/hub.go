// Package realtime streams engine events to WebSocket subscribers.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-paths/internal/learning"
)

const (
	defaultBuffer = 32
	writeTimeout  = 5 * time.Second
)

// Filter selects the events a subscriber receives. Empty fields match everything.
type Filter struct {
	UserID string
	PathID string
}

func (f Filter) match(e learning.Event) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.PathID != "" && e.PathID != f.PathID {
		return false
	}
	return true
}

type subscriber struct {
	filter Filter
	ch     chan learning.Event
}

// Hub fans engine events out to subscribers. It implements learning.EventLogger and
// http.Handler. Slow subscribers lose events rather than block the engine.
type Hub struct {
	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	buffer  int
	closed  bool
	dropped int
}

// NewHub creates a hub whose subscribers buffer up to buffer events. Zero uses 32.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		buffer: buffer,
	}
}

// LogEvent delivers event to every matching subscriber without blocking.
func (h *Hub) LogEvent(event learning.Event) error {
	if event.EventType == "" {
		return errors.New("event_type is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	for s := range h.subs {
		if !s.filter.match(event) {
			continue
		}
		select {
		case s.ch <- event:
		default:
			h.dropped++
			slog.Warn("realtime subscriber lagging, event dropped",
				"type", event.EventType,
				"user_id", s.filter.UserID,
				"path_id", s.filter.PathID,
			)
		}
	}
	return nil
}

// Subscribe registers a subscriber and returns its event channel and a cancel func.
// The channel is closed by cancel or by Close.
func (h *Hub) Subscribe(filter Filter) (<-chan learning.Event, func()) {
	s := &subscriber{filter: filter, ch: make(chan learning.Event, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[s]; ok {
				delete(h.subs, s)
				close(s.ch)
			}
		})
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many events were discarded for lagging subscribers.
func (h *Hub) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close disconnects every subscriber. Later events are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams matching events as JSON.
// The user_id and path_id query parameters narrow the stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter := Filter{
		UserID: r.URL.Query().Get("user_id"),
		PathID: r.URL.Query().Get("path_id"),
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	events, cancel := h.Subscribe(filter)
	defer cancel()

	slog.Debug("realtime subscriber connected", "user_id", filter.UserID, "path_id", filter.PathID)

	// Clients only listen; CloseRead handles control frames and reports disconnects.
	ctx := conn.CloseRead(r.Context())
	if err := stream(ctx, conn, events); err != nil {
		slog.Debug("realtime subscriber gone", "user_id", filter.UserID, "error", err)
		return
	}
	_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
}

// stream writes events until the channel closes (nil) or the connection fails.
func stream(ctx context.Context, conn *websocket.Conn, events <-chan learning.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
