package realtime

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNoChannel is returned when a send is attempted without an open channel.
	ErrNoChannel = errors.New("realtime: no open channel")
	// ErrNotSubscribed is returned by transports that can only publish on subscribed topics.
	ErrNotSubscribed = errors.New("realtime: topic not subscribed")
	// ErrClosed is returned after a transport has been closed.
	ErrClosed = errors.New("realtime: transport closed")
)

// Transport is a best-effort fan-out medium keyed by topic.
// Delivery order and exactly-once delivery are not guaranteed.
type Transport interface {
	Publish(ctx context.Context, topic string, data []byte) error
	Subscribe(topic string, handler func(data []byte)) (Subscription, error)
	Close() error
}

// Subscription is an open topic subscription.
type Subscription interface {
	Unsubscribe() error
}

// MemoryBus is an in-process Transport. Handlers run synchronously on the publisher's goroutine.
type MemoryBus struct {
	mu     sync.RWMutex
	topics map[string]map[*memorySub]struct{}
	closed bool
}

type memorySub struct {
	bus     *MemoryBus
	topic   string
	handler func([]byte)
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{topics: make(map[string]map[*memorySub]struct{})}
}

func (b *MemoryBus) Publish(_ context.Context, topic string, data []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	subs := make([]*memorySub, 0, len(b.topics[topic]))
	for s := range b.topics[topic] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		buf := make([]byte, len(data))
		copy(buf, data)
		s.handler(buf)
	}
	return nil
}

func (b *MemoryBus) Subscribe(topic string, handler func([]byte)) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	s := &memorySub{bus: b, topic: topic, handler: handler}
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*memorySub]struct{})
	}
	b.topics[topic][s] = struct{}{}
	return s, nil
}

// Subscribers returns the number of live subscriptions on topic.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.topics = make(map[string]map[*memorySub]struct{})
	return nil
}

func (s *memorySub) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if subs, ok := s.bus.topics[s.topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.bus.topics, s.topic)
		}
	}
	return nil
}
