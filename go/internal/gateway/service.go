package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nats-io/nats.go"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/patrickudo2004/kairon/go/internal/programs"
)

// Service is the program gateway: websocket relay, optional NATS bridge, database change
// feed and the program REST surface.
type Service struct {
	hub      *Hub
	ws       *WebSocketHandler
	programs *ProgramHandler
	bridge   *Bridge
	feed     *ProgramFeed
	listener *programs.ChangeListener
	origins  []string
}

// Deps are the optional collaborators of a Service. A nil field disables the feature
// that needs it.
type Deps struct {
	App      *programs.App
	NATS     *nats.Conn
	Listener *programs.ListenerConfig
}

// NewService creates a gateway service
func NewService(config Config, deps Deps) (*Service, error) {
	hub := NewHub(config.Connection)
	s := &Service{
		hub:     hub,
		ws:      NewWebSocketHandler(hub),
		origins: config.AllowedOrigins,
	}

	if deps.NATS != nil {
		s.bridge = NewBridge(deps.NATS, hub)
	}

	if deps.App != nil {
		s.programs = NewProgramHandler(deps.App)
		if deps.Listener != nil {
			s.feed = NewProgramFeed(deps.App, hub)
			listener, err := programs.NewChangeListener(*deps.Listener, s.feed.HandleChange)
			if err != nil {
				return nil, fmt.Errorf("failed to create change listener: %w", err)
			}
			s.listener = listener
		}
	}

	return s, nil
}

// Start runs the hub, bridge and change feed until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().
		Bool("nats_bridge", s.bridge != nil).
		Bool("change_feed", s.listener != nil).
		Msg("starting program gateway")

	go s.hub.Start(ctx)

	if s.bridge != nil {
		if err := s.bridge.Start(); err != nil {
			return err
		}
	}

	if s.listener != nil {
		go func() {
			if err := s.listener.Start(ctx); err != nil {
				log.Error().Err(err).Msg("change listener failed")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("program gateway shutting down")
	return s.Stop()
}

// Stop releases the bridge subscription. The hub and listener stop with the context.
func (s *Service) Stop() error {
	if s.bridge != nil {
		if err := s.bridge.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop NATS bridge")
		}
	}
	log.Info().Msg("program gateway stopped")
	return nil
}

// RegisterRoutes registers websocket, stats, program and health routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.ws.RegisterRoutes(mux)
	if s.programs != nil {
		s.programs.RegisterRoutes(mux)
	}
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
	log.Info().Msg("gateway routes registered")
}

// Handler returns the routed handler wrapped with CORS and h2c.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedOrigins: origins,
		AllowedHeaders: []string{"*"},
	})

	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

// Stats returns statistics about the gateway
func (s *Service) Stats() map[string]interface{} {
	stats := s.hub.Stats()
	stats["service"] = "program_gateway"
	stats["nats_bridge"] = s.bridge != nil
	return stats
}

// Hub exposes the relay hub, mainly for tests and embedding.
func (s *Service) Hub() *Hub {
	return s.hub
}
