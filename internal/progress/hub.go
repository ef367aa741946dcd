package progress

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	clientBuffer = 64
	writeTimeout = 10 * time.Second
)

// Hub fans progress events out to WebSocket clients. Clients whose buffer
// fills up are disconnected; Emit never waits on the network.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*wsClient
}

type wsClient struct {
	id   string
	conn net.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	wmu  sync.Mutex
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*wsClient)}
}

// ServeHTTP upgrades the request and registers the connection
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	c := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientBuffer),
		done: make(chan struct{}),
	}

	greeting, _ := json.Marshal(Stamp(models.ProgressEvent{
		Type:    models.EventInfo,
		Kind:    models.KindConnection,
		Message: "Connected to scraping server",
	}))
	c.send <- greeting

	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	log.Info().Str("client_id", c.id).Int("clients", total).Msg("WebSocket client connected")

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Emit broadcasts ev to every connected client
func (h *Hub) Emit(ev models.ProgressEvent) {
	data, err := json.Marshal(Stamp(ev))
	if err != nil {
		log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("Failed to encode progress event")
		return
	}

	var slow []*wsClient
	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("client_id", c.id).Msg("WebSocket client too slow, disconnecting")
		h.remove(c)
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.remove(c)
	}
}

func (h *Hub) remove(c *wsClient) {
	c.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
		close(c.done)
		_ = c.conn.Close()
		log.Debug().Str("client_id", c.id).Msg("WebSocket client disconnected")
	})
}

func (h *Hub) writeLoop(c *wsClient) {
	for {
		select {
		case msg := <-c.send:
			c.wmu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := wsutil.WriteServerText(c.conn, msg)
			c.wmu.Unlock()
			if err != nil {
				h.remove(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop drains client frames so control frames get answered and closes
// are noticed. Client messages are ignored.
func (h *Hub) readLoop(c *wsClient) {
	rw := struct {
		io.Reader
		io.Writer
	}{c.conn, lockedWriter{mu: &c.wmu, w: c.conn}}

	for {
		if _, _, err := wsutil.ReadClientData(rw); err != nil {
			h.remove(c)
			return
		}
	}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
