package programs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Change is the payload of a program_changes notification.
type Change struct {
	ProgramID string `json:"id"`
	Op        string `json:"op"` // INSERT, UPDATE or DELETE
}

type ListenerConfig struct {
	DatabaseURL   string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string        // Channel name to LISTEN on
	PingInterval  time.Duration // How often to check the connection
	MinReconnect  time.Duration
	MaxReconnect  time.Duration
}

func DefaultListenerConfig(databaseURL string) ListenerConfig {
	return ListenerConfig{
		DatabaseURL:   databaseURL,
		NotifyChannel: "program_changes",
		PingInterval:  90 * time.Second,
		MinReconnect:  10 * time.Second,
		MaxReconnect:  time.Minute,
	}
}

// ChangeListener calls its handler for every committed program write.
type ChangeListener struct {
	listener *pq.Listener
	handler  func(ctx context.Context, change Change)
	cfg      ListenerConfig
}

func NewChangeListener(cfg ListenerConfig, handler func(ctx context.Context, change Change)) (*ChangeListener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		cfg.MinReconnect,
		cfg.MaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for program changes")

	return &ChangeListener{listener: l, handler: handler, cfg: cfg}, nil
}

// Start dispatches notifications until ctx is cancelled.
func (l *ChangeListener) Start(ctx context.Context) error {
	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("change listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// The connection was re-established; notifications in between are lost.
				log.Warn().Str("channel", l.cfg.NotifyChannel).Msg("listener reconnected")
				continue
			}
			change, err := ParseChange(note.Extra)
			if err != nil {
				log.Error().Err(err).Msg("invalid program change notification")
				continue
			}
			l.handler(ctx, change)
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *ChangeListener) Stop() error {
	return l.listener.Close()
}

// ParseChange decodes a notification payload.
func ParseChange(extra string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(extra), &c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	if c.ProgramID == "" {
		return Change{}, fmt.Errorf("decode change: missing id")
	}
	return c, nil
}
