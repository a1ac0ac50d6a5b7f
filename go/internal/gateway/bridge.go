package gateway

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/patrickudo2004/kairon/go/internal/realtime"
)

// OriginHeader marks messages a bridge published so it can skip them on the way back.
const OriginHeader = "Kairon-Origin"

// Bridge joins the hub to NATS so websocket clients and NATS clients share every program
// topic, and several gateways can serve the same program.
type Bridge struct {
	nc  *nats.Conn
	hub *Hub
	id  string
	sub *nats.Subscription
}

// NewBridge creates a bridge and installs it as the hub's forwarder.
func NewBridge(nc *nats.Conn, hub *Hub) *Bridge {
	b := &Bridge{
		nc:  nc,
		hub: hub,
		id:  uuid.NewString(),
	}
	hub.SetForwarder(b)
	return b
}

// Start subscribes to every program subject.
func (b *Bridge) Start() error {
	sub, err := b.nc.Subscribe(realtime.TopicPrefix+">", b.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe bridge: %w", err)
	}
	b.sub = sub

	log.Info().
		Str("bridge_id", b.id).
		Str("subject", sub.Subject).
		Msg("NATS bridge started")
	return nil
}

func (b *Bridge) handle(m *nats.Msg) {
	if m.Header.Get(OriginHeader) == b.id {
		return
	}
	if _, ok := realtime.ProgramIDFromTopic(m.Subject); !ok {
		log.Debug().Str("subject", m.Subject).Msg("ignoring non-program subject")
		return
	}
	b.hub.Deliver(m.Subject, m.Data)
}

// Forward publishes a client or gateway message to NATS.
func (b *Bridge) Forward(topic string, data []byte) {
	msg := nats.NewMsg(topic)
	msg.Header.Set(OriginHeader, b.id)
	msg.Data = data
	if err := b.nc.PublishMsg(msg); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("failed to forward message to NATS")
	}
}

// Stop removes the subscription. The connection belongs to the caller.
func (b *Bridge) Stop() error {
	if b.sub == nil {
		return nil
	}
	if err := b.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe bridge: %w", err)
	}
	return nil
}
