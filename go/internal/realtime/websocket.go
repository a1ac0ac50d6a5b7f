package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketConfig holds settings for the gateway websocket transport
type WebSocketConfig struct {
	URL          string // gateway base URL, e.g. ws://localhost:8081
	Header       http.Header
	WriteTimeout time.Duration
	PingInterval time.Duration
	Dialer       *websocket.Dialer
}

// DefaultWebSocketConfig returns default websocket client settings
func DefaultWebSocketConfig(gatewayURL string) WebSocketConfig {
	return WebSocketConfig{
		URL:          gatewayURL,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		Dialer:       websocket.DefaultDialer,
	}
}

// WebSocketTransport talks to the gateway, holding one connection per subscribed topic.
// Publishing requires a live subscription on the topic.
type WebSocketTransport struct {
	config WebSocketConfig

	mu     sync.Mutex
	conns  map[string]*wsConn
	closed bool
}

type wsConn struct {
	transport *WebSocketTransport
	topic     string
	conn      *websocket.Conn
	handler   func([]byte)

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// NewWebSocketTransport creates a transport for the gateway at config.URL.
func NewWebSocketTransport(config WebSocketConfig) *WebSocketTransport {
	if config.Dialer == nil {
		config.Dialer = websocket.DefaultDialer
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	return &WebSocketTransport{
		config: config,
		conns:  make(map[string]*wsConn),
	}
}

// EndpointURL returns the gateway websocket URL for a topic.
func EndpointURL(base, topic string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path += "/ws/program"
	q := u.Query()
	q.Set("topic", topic)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (t *WebSocketTransport) Subscribe(topic string, handler func([]byte)) (Subscription, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if _, exists := t.conns[topic]; exists {
		t.mu.Unlock()
		return nil, fmt.Errorf("subscribe %s: already subscribed", topic)
	}
	t.mu.Unlock()

	endpoint, err := EndpointURL(t.config.URL, topic)
	if err != nil {
		return nil, err
	}
	conn, _, err := t.config.Dialer.DialContext(context.Background(), endpoint, t.config.Header)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	c := &wsConn{
		transport: t,
		topic:     topic,
		conn:      conn,
		handler:   handler,
		done:      make(chan struct{}),
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return nil, ErrClosed
	}
	t.conns[topic] = c
	t.mu.Unlock()

	go c.readPump()
	if t.config.PingInterval > 0 {
		go c.pingPump(t.config.PingInterval)
	}

	log.Debug().Str("topic", topic).Msg("gateway websocket connected")
	return c, nil
}

func (t *WebSocketTransport) Publish(_ context.Context, topic string, data []byte) error {
	t.mu.Lock()
	c := t.conns[topic]
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if c == nil {
		return ErrNotSubscribed
	}
	return c.write(websocket.TextMessage, data)
}

func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	conns := make([]*wsConn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	for _, c := range conns {
		c.Unsubscribe()
	}
	return nil
}

func (c *wsConn) Unsubscribe() error {
	c.once.Do(func() {
		close(c.done)
		c.transport.mu.Lock()
		if c.transport.conns[c.topic] == c {
			delete(c.transport.conns, c.topic)
		}
		c.transport.mu.Unlock()

		c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	})
	return nil
}

func (c *wsConn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.transport.config.WriteTimeout))
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("write to gateway: %w", err)
	}
	return nil
}

func (c *wsConn) readPump() {
	defer c.Unsubscribe()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("topic", c.topic).Msg("unexpected gateway close")
				}
			}
			return
		}
		c.handler(message)
	}
}

func (c *wsConn) pingPump(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("topic", c.topic).Msg("failed to ping gateway")
				return
			}
		}
	}
}
