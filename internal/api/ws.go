package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"heritagevoyager/pkg/audio"
)

const (
	wsWriteWait  = 5 * time.Second
	wsSendBuffer = 8
)

// SnapshotSource publishes transport snapshots.
type SnapshotSource interface {
	Subscribe(fn func(audio.Snapshot)) (unsubscribe func())
	Snapshot() audio.Snapshot
}

// SnapshotHub pushes transport snapshots to WebSocket clients on every
// state change and progress tick.
type SnapshotHub struct {
	src         SnapshotSource
	upgrader    websocket.Upgrader
	unsubscribe func()

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan audio.Snapshot
	done chan struct{}
}

// NewSnapshotHub subscribes to src. Call Close to detach.
func NewSnapshotHub(src SnapshotSource) *SnapshotHub {
	h := &SnapshotHub{
		src: src,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
	h.unsubscribe = src.Subscribe(h.broadcast)
	return h
}

// broadcast runs on the transport's goroutines and must not block.
func (h *SnapshotHub) broadcast(s audio.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		offer(c.send, s)
	}
}

// offer enqueues s, replacing the oldest pending snapshot when ch is full.
func offer(ch chan audio.Snapshot, s audio.Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

// Clients returns the number of connected clients.
func (h *SnapshotHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *SnapshotHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("WebSocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan audio.Snapshot, wsSendBuffer),
		done: make(chan struct{}),
	}
	c.send <- h.src.Snapshot()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.Debug("Audio WS: client connected", "remote", r.RemoteAddr, "clients", h.Clients())

	go h.writeLoop(c)

	// Reads only detect the client going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *SnapshotHub) writeLoop(c *wsClient) {
	for {
		select {
		case s := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(s); err != nil {
				slog.Debug("WebSocket write failed", "error", err)
				_ = c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (h *SnapshotHub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		close(c.done)
		_ = c.conn.Close()
		slog.Debug("Audio WS: client disconnected", "clients", h.Clients())
	}
}

// Close detaches from the transport and disconnects every client.
func (h *SnapshotHub) Close() {
	h.unsubscribe()

	h.mu.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}
