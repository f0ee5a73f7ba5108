// Package push maintains live dashboard WebSocket connections and forwards
// broker events (candidate invalidations, new matches) to the owning user.
// The socket is one-directional: clients receive event frames and send
// nothing but control frames. Cards and swipes stay on the HTTP API, so a
// dropped socket never loses data, the client just refetches on reconnect.
package push

import (
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
)

// Event types pushed to connected clients.
const (
	EventInvalidate = "invalidate"
	EventMatch      = "match"
)

// Event is the envelope for every frame written to a client.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	Ts   int64           `json:"ts"`
}

// Broker is the subscription side of the messaging client.
type Broker interface {
	SubscribeInvalidate(userID, listenerID string, handler func(data []byte)) error
	UnsubscribeInvalidate(listenerID string) error
	SubscribeMatchCreated(userID, listenerID string, handler func(data []byte)) error
	UnsubscribeMatchCreated(listenerID string) error
}

// Config holds tunable parameters for the push hub.
type Config struct {
	MaxConnections int           // hard cap on total connections
	WriteTimeout   time.Duration // timeout for outbound frames
	ReadTimeout    time.Duration // idle timeout before a connection is dropped
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConnections: 100000,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    5 * time.Minute,
	}
}

// Conn is a single client socket with a write mutex serializing outbound
// frames.
type Conn struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	conn    net.Conn
	writeMu sync.Mutex
}

// WriteMessage sends a WebSocket text frame to this connection.
func (c *Conn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.conn, ws.OpText, data)
}

// Close closes the underlying network connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Hub is a thread-safe registry of live connections, indexed by connection
// ID and by user so that one user's multiple tabs all receive events.
type Hub struct {
	config Config
	broker Broker

	mu     sync.RWMutex
	byID   map[string]*Conn
	byUser map[string]map[string]*Conn
}

// NewHub creates a hub. A nil broker disables event forwarding; connections
// are still accepted, which keeps local development working without NATS.
func NewHub(config Config, broker Broker) *Hub {
	return &Hub{
		config: config,
		broker: broker,
		byID:   make(map[string]*Conn),
		byUser: make(map[string]map[string]*Conn),
	}
}

// HandleUpgrade upgrades an authenticated HTTP request to a WebSocket
// connection, registers it, subscribes it to the user's broker subjects, and
// starts the read loop. The caller resolves userID before handing off.
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request, userID string) {
	if h.Count() >= h.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	netConn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("[push] upgrade failed for %s: %v", userID, err)
		return
	}

	c := &Conn{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: time.Now(),
		conn:      netConn,
	}
	h.add(c)

	if h.broker != nil {
		if err := h.broker.SubscribeInvalidate(userID, c.ID, func(data []byte) {
			h.forward(c, EventInvalidate, data)
		}); err != nil {
			log.Printf("[push] invalidate subscribe for %s: %v", userID, err)
		}
		if err := h.broker.SubscribeMatchCreated(userID, c.ID, func(data []byte) {
			h.forward(c, EventMatch, data)
		}); err != nil {
			log.Printf("[push] match subscribe for %s: %v", userID, err)
		}
	}

	log.Printf("[push] connected user=%s conn=%s (total=%d)", userID, c.ID, h.Count())
	go h.readLoop(c)
}

// Send pushes an event to every live connection of the given user. Write
// errors on individual connections are ignored; the read loop cleans up
// failed connections on its next pass.
func (h *Hub) Send(userID, eventType string, data []byte) {
	frame, err := json.Marshal(Event{Type: eventType, Data: data, Ts: time.Now().Unix()})
	if err != nil {
		return
	}

	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.byUser[userID]))
	for _, c := range h.byUser[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		h.write(c, frame)
	}
}

// Count returns the current number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	n := len(h.byID)
	h.mu.RUnlock()
	return n
}

// UserCount returns the number of live connections for one user.
func (h *Hub) UserCount(userID string) int {
	h.mu.RLock()
	n := len(h.byUser[userID])
	h.mu.RUnlock()
	return n
}

// Shutdown closes every live connection. Broker subscriptions are released
// per connection as each read loop observes the close.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.byID))
	for _, c := range h.byID {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		h.remove(c)
	}
	log.Printf("[push] hub stopped, all connections closed")
}

func (h *Hub) add(c *Conn) {
	h.mu.Lock()
	h.byID[c.ID] = c
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[string]*Conn)
	}
	h.byUser[c.UserID][c.ID] = c
	h.mu.Unlock()
}

// remove unregisters and closes a connection. Safe to call twice: only the
// first caller sees the connection in the registry and runs the cleanup.
func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	_, ok := h.byID[c.ID]
	if ok {
		delete(h.byID, c.ID)
		delete(h.byUser[c.UserID], c.ID)
		if len(h.byUser[c.UserID]) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	if h.broker != nil {
		if err := h.broker.UnsubscribeInvalidate(c.ID); err != nil {
			log.Printf("[push] invalidate unsubscribe for %s: %v", c.ID, err)
		}
		if err := h.broker.UnsubscribeMatchCreated(c.ID); err != nil {
			log.Printf("[push] match unsubscribe for %s: %v", c.ID, err)
		}
	}

	c.Close()
	log.Printf("[push] disconnected user=%s conn=%s (total=%d)", c.UserID, c.ID, h.Count())
}

// forward wraps broker payloads in the event envelope and writes to one
// connection.
func (h *Hub) forward(c *Conn, eventType string, data []byte) {
	frame, err := json.Marshal(Event{Type: eventType, Data: data, Ts: time.Now().Unix()})
	if err != nil {
		return
	}
	h.write(c, frame)
}

func (h *Hub) write(c *Conn, frame []byte) {
	if h.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
	}
	err := c.WriteMessage(frame)
	_ = c.conn.SetWriteDeadline(time.Time{})
	if err != nil {
		h.remove(c)
	}
}

// readLoop consumes frames from the client. Data frames are discarded, the
// loop exists to answer pings and to notice when the peer goes away.
func (h *Hub) readLoop(c *Conn) {
	defer h.remove(c)

	for {
		if h.config.ReadTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		}

		header, reader, err := wsutil.NextReader(c.conn, ws.StateServerSide)
		if err != nil {
			return
		}

		if header.OpCode.IsControl() {
			if header.OpCode == ws.OpClose {
				return
			}
			if header.OpCode == ws.OpPing {
				var payload []byte
				if header.Length > 0 {
					payload = make([]byte, header.Length)
					if _, err := io.ReadFull(reader, payload); err != nil {
						return
					}
				}
				if err := h.writePong(c, payload); err != nil {
					return
				}
			}
			continue
		}

		// Drain and discard any data frame.
		if _, err := io.Copy(io.Discard, reader); err != nil {
			return
		}
	}
}

func (h *Hub) writePong(c *Conn, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.conn, ws.OpPong, payload)
}
