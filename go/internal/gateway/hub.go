package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/patrickudo2004/kairon/go/internal/realtime"
)

// Hub relays program topic traffic between websocket clients
type Hub struct {
	// Connection pools organized by topic
	topics map[string]map[*Connection]bool
	mu     sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan broadcast

	// Optional: receives every client-originated message, e.g. the NATS bridge
	forwarder Forwarder
}

// Forwarder receives messages published by local websocket clients or by the gateway itself.
type Forwarder interface {
	Forward(topic string, data []byte)
}

// Connection is one websocket client subscribed to a single topic
type Connection struct {
	ID    string
	Topic string
	Conn  *websocket.Conn
	Send  chan []byte
	hub   *Hub

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for websocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	MaxMessageSize  int64         `yaml:"max_message_size"`
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	SendBuffer      int           `yaml:"send_buffer"`

	CheckOrigin func(r *http.Request) bool `yaml:"-"`
}

type broadcast struct {
	Topic   string
	Data    []byte
	From    *Connection // nil when the gateway or a bridge originates the message
	Forward bool
}

// DefaultConnectionConfig returns default websocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  512 * 1024, // program_update carries the whole program
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		SendBuffer:      256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewHub creates a new websocket hub
func NewHub(config ConnectionConfig) *Hub {
	if config.SendBuffer <= 0 {
		config.SendBuffer = 256
	}
	return &Hub{
		topics: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcast, 1000),
	}
}

// SetForwarder installs the forwarder. Call before Start.
func (h *Hub) SetForwarder(f Forwarder) {
	h.forwarder = f
}

// Start processes broadcasts until ctx is cancelled
func (h *Hub) Start(ctx context.Context) {
	log.Info().Msg("hub started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("hub shutting down")
			h.closeAll()
			return
		case message := <-h.broadcastCh:
			h.handleBroadcast(message)
		}
	}
}

// Connect upgrades an HTTP request and subscribes the connection to topic
func (h *Hub) Connect(w http.ResponseWriter, r *http.Request, topic string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Connection{
		ID:          uuid.New().String(),
		Topic:       topic,
		Conn:        conn,
		Send:        make(chan []byte, h.config.SendBuffer),
		hub:         h,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}
	h.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("topic", topic).
		Msg("websocket connection established")

	return nil
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[c.Topic] == nil {
		h.topics[c.Topic] = make(map[*Connection]bool)
	}
	h.topics[c.Topic][c] = true

	log.Debug().
		Str("connection_id", c.ID).
		Str("topic", c.Topic).
		Int("total_connections", len(h.topics[c.Topic])).
		Msg("connection registered")
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	connections, exists := h.topics[c.Topic]
	if !exists || !connections[c] {
		return
	}
	delete(connections, c)
	close(c.Send)
	if len(connections) == 0 {
		delete(h.topics, c.Topic)
	}

	log.Info().
		Str("connection_id", c.ID).
		Str("topic", c.Topic).
		Msg("connection unregistered")
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	var all []*Connection
	for _, connections := range h.topics {
		for c := range connections {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.unregister(c)
	}
}

// Broadcast sends a gateway-originated message to every connection on topic and to the
// forwarder, so NATS peers see it too.
func (h *Hub) Broadcast(topic string, data []byte) {
	h.enqueue(broadcast{Topic: topic, Data: data, Forward: true})
}

// Deliver sends a message that arrived from the forwarder's side to local connections only.
func (h *Hub) Deliver(topic string, data []byte) {
	h.enqueue(broadcast{Topic: topic, Data: data})
}

func (h *Hub) enqueue(b broadcast) {
	select {
	case h.broadcastCh <- b:
	default:
		log.Warn().Str("topic", b.Topic).Msg("broadcast channel full, dropping message")
	}
}

func (h *Hub) handleBroadcast(message broadcast) {
	if message.Forward && h.forwarder != nil {
		h.forwarder.Forward(message.Topic, message.Data)
	}

	// Sends happen under the read lock so unregister cannot close a Send channel mid-send.
	h.mu.RLock()
	var slow []*Connection
	sent := 0
	for c := range h.topics[message.Topic] {
		if c == message.From {
			continue
		}
		select {
		case c.Send <- message.Data:
			sent++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().
			Str("connection_id", c.ID).
			Msg("connection send buffer full, closing connection")
		h.unregister(c)
		c.Conn.Close()
	}

	log.Debug().
		Str("topic", message.Topic).
		Int("connections", sent).
		Msg("message relayed")
}

// Stats returns statistics about active connections
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	counts := make(map[string]int)
	for topic, connections := range h.topics {
		total += len(connections)
		if id, ok := realtime.ProgramIDFromTopic(topic); ok {
			counts[id] = len(connections)
		}
	}

	return map[string]interface{}{
		"total_connections":   total,
		"active_programs":     len(h.topics),
		"program_connections": counts,
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}

// handleClientMessage relays a frame after checking it belongs on this topic.
func (c *Connection) handleClientMessage(message []byte) {
	var env realtime.Message
	if err := json.Unmarshal(message, &env); err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("dropping malformed client message")
		return
	}
	if realtime.Topic(env.ProgramID) != c.Topic {
		log.Warn().
			Str("connection_id", c.ID).
			Str("topic", c.Topic).
			Str("program_id", env.ProgramID).
			Msg("dropping message for another program")
		return
	}

	c.hub.enqueue(broadcast{Topic: c.Topic, Data: message, From: c, Forward: true})
}
