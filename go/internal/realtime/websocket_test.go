package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickudo2004/kairon/go/internal/models"
)

// relayServer forwards every frame to the other connections on the same topic.
func relayServer(t *testing.T) *httptest.Server {
	t.Helper()
	var (
		mu    sync.Mutex
		conns = map[string]map[*websocket.Conn]bool{}
	)
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/program", r.URL.Path)
		topic := r.URL.Query().Get("topic")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		if conns[topic] == nil {
			conns[topic] = map[*websocket.Conn]bool{}
		}
		conns[topic][conn] = true
		mu.Unlock()

		defer func() {
			mu.Lock()
			delete(conns[topic], conn)
			mu.Unlock()
			conn.Close()
		}()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			mu.Lock()
			for other := range conns[topic] {
				if other != conn {
					other.WriteMessage(websocket.TextMessage, msg)
				}
			}
			mu.Unlock()
		}
	}))
}

func TestEndpointURL(t *testing.T) {
	got, err := EndpointURL("http://localhost:8081/", Topic("p1"))
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8081/ws/program?topic=kairon.program.p1", got)

	got, err = EndpointURL("https://example.com/base", "x")
	require.NoError(t, err)
	assert.Equal(t, "wss://example.com/base/ws/program?topic=x", got)
}

func TestWebSocketTransportRelaysBetweenClients(t *testing.T) {
	srv := relayServer(t)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	ta := NewWebSocketTransport(DefaultWebSocketConfig(base))
	defer ta.Close()
	tb := NewWebSocketTransport(DefaultWebSocketConfig(base))
	defer tb.Close()

	ctx := context.Background()
	ha, hb := &recordingHandler{}, &recordingHandler{}

	a, err := Open(ctx, ta, "p1", "a", ha)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(ctx, tb, "p1", "b", hb)
	require.NoError(t, err)
	defer b.Close()

	require.Eventually(t, func() bool {
		_, _, reqs, _ := ha.counts()
		return reqs == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.SendTimer(ctx, models.TimerState{ProgramID: "p1", CurrentSlotIndex: 3}))
	require.Eventually(t, func() bool {
		timers, _, _, _ := hb.counts()
		return timers == 1
	}, 2*time.Second, 10*time.Millisecond)

	hb.mu.Lock()
	assert.Equal(t, 3, hb.timers[0].CurrentSlotIndex)
	hb.mu.Unlock()
}

func TestWebSocketTransportPublishRequiresSubscription(t *testing.T) {
	tr := NewWebSocketTransport(DefaultWebSocketConfig("ws://127.0.0.1:1"))
	assert.ErrorIs(t, tr.Publish(context.Background(), "t", []byte("x")), ErrNotSubscribed)

	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.Publish(context.Background(), "t", []byte("x")), ErrClosed)
	_, err := tr.Subscribe("t", func([]byte) {})
	assert.ErrorIs(t, err, ErrClosed)
}
