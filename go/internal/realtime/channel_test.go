package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickudo2004/kairon/go/internal/models"
)

type recordingHandler struct {
	mu            sync.Mutex
	timers        []models.TimerState
	programs      []models.Program
	syncRequests  int
	syncResponses []models.TimerState
}

func (h *recordingHandler) OnTimerUpdate(st models.TimerState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timers = append(h.timers, st)
}

func (h *recordingHandler) OnProgramUpdate(p models.Program, _ string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.programs = append(h.programs, p)
}

func (h *recordingHandler) OnSyncRequest() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.syncRequests++
}

func (h *recordingHandler) OnSyncResponse(st models.TimerState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.syncResponses = append(h.syncResponses, st)
}

func (h *recordingHandler) counts() (int, int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.timers), len(h.programs), h.syncRequests, len(h.syncResponses)
}

func TestTopic(t *testing.T) {
	topic := Topic("abc-123")
	assert.Equal(t, "kairon.program.abc-123", topic)

	id, ok := ProgramIDFromTopic(topic)
	require.True(t, ok)
	assert.Equal(t, "abc-123", id)

	for _, bad := range []string{"other.abc", "kairon.program.", "kairon.program.a.b", "kairon.program.>"} {
		_, ok := ProgramIDFromTopic(bad)
		assert.False(t, ok, bad)
	}
}

func TestOpenSendsSyncRequest(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()

	first := &recordingHandler{}
	a, err := Open(ctx, bus, "p1", "client-a", first)
	require.NoError(t, err)
	defer a.Close()

	_, _, reqs, _ := first.counts()
	assert.Zero(t, reqs, "own sync request must not be delivered back")

	second := &recordingHandler{}
	b, err := Open(ctx, bus, "p1", "client-b", second)
	require.NoError(t, err)
	defer b.Close()

	_, _, reqs, _ = first.counts()
	assert.Equal(t, 1, reqs)
}

func TestChannelDispatch(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()

	ha, hb := &recordingHandler{}, &recordingHandler{}
	a, err := Open(ctx, bus, "p1", "a", ha)
	require.NoError(t, err)
	b, err := Open(ctx, bus, "p1", "b", hb)
	require.NoError(t, err)

	st := models.TimerState{ProgramID: "p1", IsTimerActive: true, CurrentSlotIndex: 1, TimerStartTimestamp: models.Int64Ptr(1000)}
	require.NoError(t, a.SendTimer(ctx, st))
	require.NoError(t, a.SendProgram(ctx, models.Program{ID: "p1", Title: "T", Slots: []models.Slot{}}))
	require.NoError(t, b.SendSyncResponse(ctx, st))

	timers, programs, _, _ := hb.counts()
	assert.Equal(t, 1, timers)
	assert.Equal(t, 1, programs)
	assert.Equal(t, st, hb.timers[0])
	assert.Equal(t, "T", hb.programs[0].Title)

	_, _, _, responses := ha.counts()
	assert.Equal(t, 1, responses)

	// Sender never hears itself.
	timers, programs, _, _ = ha.counts()
	assert.Zero(t, timers)
	assert.Zero(t, programs)
}

func TestChannelsAreScopedPerProgram(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()

	h := &recordingHandler{}
	listener, err := Open(ctx, bus, "p2", "listener", h)
	require.NoError(t, err)
	defer listener.Close()

	other, err := Open(ctx, bus, "p1", "other", &recordingHandler{})
	require.NoError(t, err)
	require.NoError(t, other.SendTimer(ctx, models.TimerState{ProgramID: "p1"}))

	timers, _, reqs, _ := h.counts()
	assert.Zero(t, timers)
	assert.Zero(t, reqs)
}

func TestCloseStopsDeliveryAndDropsSends(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()

	h := &recordingHandler{}
	a, err := Open(ctx, bus, "p1", "a", h)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Zero(t, bus.Subscribers(Topic("p1")))

	b, err := Open(ctx, bus, "p1", "b", &recordingHandler{})
	require.NoError(t, err)
	require.NoError(t, b.SendTimer(ctx, models.TimerState{ProgramID: "p1"}))

	timers, _, reqs, _ := h.counts()
	assert.Zero(t, timers)
	assert.Zero(t, reqs)

	assert.ErrorIs(t, a.SendTimer(ctx, models.TimerState{ProgramID: "p1"}), ErrNoChannel)
}

func TestNilChannelDropsSend(t *testing.T) {
	var c *Channel
	assert.ErrorIs(t, c.SendTimer(context.Background(), models.TimerState{}), ErrNoChannel)
	assert.NoError(t, c.Close())
}

func TestMalformedMessagesIgnored(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()
	h := &recordingHandler{}
	c, err := Open(ctx, bus, "p1", "a", h)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, bus.Publish(ctx, Topic("p1"), []byte("not json")))

	bad, err := json.Marshal(Message{ProgramID: "p1", Sender: "x", Type: TypeTimerUpdate, Data: json.RawMessage(`"nope"`)})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, Topic("p1"), bad))

	unknown, err := json.Marshal(Message{ProgramID: "p1", Sender: "x", Type: "presence"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, Topic("p1"), unknown))

	timers, programs, reqs, responses := h.counts()
	assert.Zero(t, timers+programs+reqs+responses)
}

func TestTimerStateWireFormat(t *testing.T) {
	msg, err := NewMessage("p1", "a", TypeTimerUpdate, models.TimerState{
		ProgramID:           "p1",
		IsTimerActive:       true,
		CurrentSlotIndex:    2,
		SecondsElapsed:      0,
		TimerStartTimestamp: models.Int64Ptr(1700000000000),
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"programId":"p1","isTimerActive":true,"currentSlotIndex":2,"secondsElapsed":0,"timerStartTimestamp":1700000000000}`,
		string(msg.Data))

	req, err := NewMessage("p1", "a", TypeSyncRequest, nil)
	require.NoError(t, err)
	assert.Empty(t, req.Data)
}

func TestMemoryBusClosed(t *testing.T) {
	bus := NewMemoryBus()
	require.NoError(t, bus.Close())

	_, err := bus.Subscribe("t", func([]byte) {})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, bus.Publish(context.Background(), "t", nil), ErrClosed)

	_, err = Open(context.Background(), bus, "p1", "a", &recordingHandler{})
	assert.ErrorIs(t, err, ErrClosed)
}
