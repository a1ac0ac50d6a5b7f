package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/patrickudo2004/kairon/go/internal/dbconfig"
	"github.com/patrickudo2004/kairon/go/internal/gateway"
	"github.com/patrickudo2004/kairon/go/internal/programs"
	"github.com/patrickudo2004/kairon/go/internal/realtime"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	port := getEnv("GATEWAY_PORT", "8081")
	natsURL := os.Getenv("NATS_URL")

	cfg, err := gateway.LoadConfig(os.Getenv("GATEWAY_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load gateway config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var deps gateway.Deps

	if getEnv("GATEWAY_DATABASE", "true") == "true" {
		dbCfg := dbconfig.NewConfigFromEnv()
		db, err := programs.Open(ctx, dbCfg.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if err := programs.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}

		listenerCfg := programs.DefaultListenerConfig(dbCfg.DSN())
		deps.App = programs.NewApp(programs.NewRepository(db))
		deps.Listener = &listenerCfg

		log.Info().Str("database", dbCfg.Redacted()).Msg("program store enabled")
	}

	if natsURL != "" {
		natsCfg := realtime.DefaultNATSConfig()
		natsCfg.URL = natsURL
		natsCfg.Name = "kairon-gateway"
		nc, err := nats.Connect(natsCfg.URL, realtime.NATSOptions(natsCfg)...)
		if err != nil {
			log.Fatal().Err(err).Str("nats_url", natsURL).Msg("failed to connect to NATS")
		}
		defer nc.Drain()
		deps.NATS = nc
	}

	svc, err := gateway.NewService(cfg, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", port),
		Handler:     svc.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		if err := svc.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Str("nats_url", natsURL).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()

	// Give the hub time to close client connections
	time.Sleep(500 * time.Millisecond)

	log.Info().Msg("program gateway shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
