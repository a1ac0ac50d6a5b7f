package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/patrickudo2004/kairon/go/internal/models"
)

// Handler receives protocol messages from other peers on a program channel.
// Callbacks run on the transport's delivery goroutine and must not block.
type Handler interface {
	OnTimerUpdate(state models.TimerState)
	OnProgramUpdate(program models.Program, sender string)
	OnSyncRequest()
	OnSyncResponse(state models.TimerState)
}

// Channel is one client's subscription to a single program topic.
// Close it when the program id changes; a new id needs a new Channel.
type Channel struct {
	programID string
	sender    string
	topic     string
	transport Transport
	handler   Handler
	sub       Subscription
	closed    atomic.Bool
}

// Open subscribes to the program topic and announces the join with a sync_request.
// Messages from sender itself are never delivered back.
func Open(ctx context.Context, t Transport, programID, sender string, h Handler) (*Channel, error) {
	c := &Channel{
		programID: programID,
		sender:    sender,
		topic:     Topic(programID),
		transport: t,
		handler:   h,
	}

	sub, err := t.Subscribe(c.topic, c.dispatch)
	if err != nil {
		return nil, fmt.Errorf("open channel %s: %w", programID, err)
	}
	c.sub = sub

	log.Info().
		Str("program_id", programID).
		Str("sender", sender).
		Msg("channel subscribed")

	c.RequestSync(ctx)
	return c, nil
}

// RequestSync asks authoritative peers for the current timer state.
func (c *Channel) RequestSync(ctx context.Context) {
	if err := c.send(ctx, TypeSyncRequest, nil); err != nil {
		log.Warn().Err(err).Str("program_id", c.ProgramID()).Msg("failed to send sync request")
	}
}

// ProgramID returns the program the channel is scoped to.
func (c *Channel) ProgramID() string {
	if c == nil {
		return ""
	}
	return c.programID
}

// SendTimer pushes a full timer snapshot.
func (c *Channel) SendTimer(ctx context.Context, st models.TimerState) error {
	return c.send(ctx, TypeTimerUpdate, st)
}

// SendProgram pushes the full program content.
func (c *Channel) SendProgram(ctx context.Context, p models.Program) error {
	return c.send(ctx, TypeProgramUpdate, p)
}

// SendSyncResponse answers a late joiner.
func (c *Channel) SendSyncResponse(ctx context.Context, st models.TimerState) error {
	return c.send(ctx, TypeSyncResponse, st)
}

// Close tears down the subscription. Later sends are dropped.
func (c *Channel) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	log.Info().Str("program_id", c.programID).Msg("channel closed")
	if err := c.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("close channel %s: %w", c.programID, err)
	}
	return nil
}

func (c *Channel) send(ctx context.Context, typ MessageType, payload any) error {
	if c == nil || c.closed.Load() {
		log.Warn().Str("type", string(typ)).Msg("no open channel, dropping message")
		return ErrNoChannel
	}

	msg, err := NewMessage(c.programID, c.sender, typ, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.transport.Publish(ctx, c.topic, data); err != nil {
		log.Warn().
			Err(err).
			Str("program_id", c.programID).
			Str("type", string(typ)).
			Msg("publish failed, dropping message")
		return err
	}
	return nil
}

func (c *Channel) dispatch(data []byte) {
	if c.closed.Load() {
		return
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("program_id", c.programID).Msg("malformed channel message")
		return
	}
	if msg.Sender == c.sender || msg.ProgramID != c.programID {
		return
	}

	payload, err := ParsePayload(&msg)
	if err != nil {
		log.Warn().Err(err).Str("program_id", c.programID).Msg("malformed channel payload")
		return
	}

	switch p := payload.(type) {
	case models.TimerState:
		if msg.Type == TypeSyncResponse {
			c.handler.OnSyncResponse(p)
		} else {
			c.handler.OnTimerUpdate(p)
		}
	case models.Program:
		c.handler.OnProgramUpdate(p, msg.Sender)
	case struct{}:
		c.handler.OnSyncRequest()
	default:
		log.Debug().Str("type", string(msg.Type)).Msg("ignoring unknown message type")
	}
}
