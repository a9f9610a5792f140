package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clinic-queue/internal/queue"
)

const (
	pingInterval   = 20 * time.Second
	pongTimeout    = 60 * time.Second
	staleAfter     = 90 * time.Second
	writeTimeout   = 3 * time.Second
	cleanupEvery   = 30 * time.Second
	maxWriters     = 20
	broadcastDelay = 50 * time.Millisecond
)

// conn is the part of a websocket connection the hub writes to.
type conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// SnapshotFunc builds the full screen state sent on connect and after a
// burst of events.
type SnapshotFunc func(ctx context.Context) ([]byte, error)

type client struct {
	id       string
	conn     conn
	writeMux sync.Mutex
	closed   bool
	done     chan struct{}
	lastPong time.Time
}

// Hub fans queue events out to every connected call screen and dashboard.
type Hub struct {
	log      zerolog.Logger
	snapshot SnapshotFunc

	mu      sync.RWMutex
	clients map[string]*client

	timerMu sync.Mutex
	timer   *time.Timer
}

func NewHub(snapshot SnapshotFunc, log zerolog.Logger) *Hub {
	return &Hub{
		log:      log,
		snapshot: snapshot,
		clients:  make(map[string]*client),
	}
}

// Publish implements queue.Notifier: the event goes out right away and a
// debounced board refresh follows.
func (h *Hub) Publish(ctx context.Context, ev queue.Event) {
	msg, err := json.Marshal(map[string]interface{}{
		"type":  "queue_event",
		"event": ev,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("marshal event")
		return
	}
	h.Broadcast(msg)
	h.scheduleSnapshot()
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve runs one websocket connection until it closes.
func (h *Hub) Serve(c *websocket.Conn) {
	cl := h.register(c)
	defer h.unregister(cl.id)

	h.log.Info().Str("client", cl.id).Str("remote", c.RemoteAddr().String()).Msg("client connected")

	_ = c.SetReadDeadline(time.Now().Add(pongTimeout))
	c.SetPongHandler(func(string) error {
		cl.writeMux.Lock()
		cl.lastPong = time.Now()
		cl.writeMux.Unlock()
		return c.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	go h.sendSnapshot(cl)
	go h.pingLoop(cl)

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure,
			) {
				h.log.Warn().Str("client", cl.id).Err(err).Msg("unexpected close")
			}
			return
		}
	}
}

// Broadcast writes msg to every client with a bounded number of writers.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	sem := make(chan struct{}, maxWriters)
	var wg sync.WaitGroup
	for _, cl := range clients {
		wg.Add(1)
		sem <- struct{}{}
		go func(cl *client) {
			defer wg.Done()
			defer func() { <-sem }()
			h.write(cl, msg)
		}(cl)
	}
	wg.Wait()
}

// RunCleanup drops clients that stopped answering pings.
func (h *Hub) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.removeStale(now)
		}
	}
}

func (h *Hub) register(c conn) *client {
	cl := &client{
		id:       uuid.NewString(),
		conn:     c,
		done:     make(chan struct{}),
		lastPong: time.Now(),
	}

	h.mu.Lock()
	h.clients[cl.id] = cl
	total := len(h.clients)
	h.mu.Unlock()

	h.log.Debug().Str("client", cl.id).Int("total", total).Msg("client registered")
	return cl
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	cl, ok := h.clients[id]
	delete(h.clients, id)
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	cl.shutdown()
	h.log.Debug().Str("client", id).Int("total", total).Msg("client unregistered")
}

func (h *Hub) removeStale(now time.Time) {
	var stale []string

	h.mu.RLock()
	for id, cl := range h.clients {
		cl.writeMux.Lock()
		if now.Sub(cl.lastPong) > staleAfter {
			stale = append(stale, id)
		}
		cl.writeMux.Unlock()
	}
	h.mu.RUnlock()

	for _, id := range stale {
		h.unregister(id)
	}
	if len(stale) > 0 {
		h.log.Info().Int("removed", len(stale)).Int("remaining", h.Clients()).Msg("stale clients cleaned")
	}
}

func (h *Hub) write(cl *client, msg []byte) {
	cl.writeMux.Lock()
	defer cl.writeMux.Unlock()

	if cl.closed {
		return
	}

	_ = cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		h.log.Warn().Str("client", cl.id).Err(err).Msg("write failed, dropping client")
		go h.unregister(cl.id)
	}
}

func (h *Hub) pingLoop(cl *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cl.writeMux.Lock()
			if cl.closed {
				cl.writeMux.Unlock()
				return
			}
			_ = cl.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			err := cl.conn.WriteMessage(websocket.PingMessage, nil)
			cl.writeMux.Unlock()
			if err != nil {
				h.log.Debug().Str("client", cl.id).Err(err).Msg("ping failed")
				return
			}
		case <-cl.done:
			return
		}
	}
}

func (h *Hub) sendSnapshot(cl *client) {
	if h.snapshot == nil {
		return
	}
	msg, err := h.snapshot(context.Background())
	if err != nil {
		h.log.Error().Err(err).Msg("build snapshot")
		return
	}
	h.write(cl, msg)
}

// scheduleSnapshot coalesces bursts of events into one board broadcast.
func (h *Hub) scheduleSnapshot() {
	if h.snapshot == nil {
		return
	}

	h.timerMu.Lock()
	defer h.timerMu.Unlock()

	if h.timer != nil {
		h.timer.Reset(broadcastDelay)
		return
	}

	h.timer = time.AfterFunc(broadcastDelay, func() {
		h.timerMu.Lock()
		h.timer = nil
		h.timerMu.Unlock()

		msg, err := h.snapshot(context.Background())
		if err != nil {
			h.log.Error().Err(err).Msg("build snapshot")
			return
		}
		h.Broadcast(msg)
	})
}

func (cl *client) shutdown() {
	cl.writeMux.Lock()
	if !cl.closed {
		cl.closed = true
		close(cl.done)
	}
	cl.writeMux.Unlock()
	_ = cl.conn.Close()
}
