package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"groupcast/internal/constants"
	"groupcast/internal/metrics"
	"groupcast/internal/models"
)

// Hub fans out engine events to connected WebSocket subscribers.
// Slow subscribers are dropped rather than allowed to block publishers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	logger      *logrus.Logger
	bufferSize  int
	closed      bool
}

type subscriber struct {
	ch chan []byte
}

// NewHub creates a hub with the default per-subscriber buffer.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		logger:      logger,
		bufferSize:  constants.DefaultSubscriberBuffer,
	}
}

// Publish delivers an event to all subscribers without blocking.
// Events for subscribers with full buffers are dropped.
func (h *Hub) Publish(event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	for sub := range h.subscribers {
		select {
		case sub.ch <- payload:
		default:
			metrics.IncrementCounter("notify_events_dropped", nil, "Events dropped due to slow subscribers")
		}
	}
	metrics.IncrementCounter("notify_events_published", map[string]string{"type": string(event.Type)}, "Events published to subscribers")
}

// SubscriberCount returns the number of active connections.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) subscribe() *subscriber {
	sub := &subscriber{ch: make(chan []byte, h.bufferSize)}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub)
	h.mu.Unlock()
}

// Close detaches all subscribers. Connections drain and close on their own.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subscribers {
		close(sub.ch)
		delete(h.subscribers, sub)
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams events until
// the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	sub := h.subscribe()
	defer h.unsubscribe(sub)

	ctx := r.Context()

	// Reader goroutine detects client-side close.
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(readCtx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case payload, ok := <-sub.ch:
			if !ok {
				return
			}
			writeCtx, writeCancel := context.WithTimeout(readCtx, 10*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, payload)
			writeCancel()
			if err != nil {
				return
			}
		case <-readCtx.Done():
			return
		}
	}
}
