package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/patrickudo2004/kairon/go/internal/draftgen"
	"github.com/patrickudo2004/kairon/go/internal/programs"
	"github.com/patrickudo2004/kairon/go/internal/realtime"
)

var programApp *programs.App

// getApp returns the shared programs app, opening the store on first call.
func getApp(ctx context.Context) (*programs.App, error) {
	if programApp != nil {
		return programApp, nil
	}

	switch kind := viper.GetString("store"); kind {
	case "memory":
		programApp = programs.NewApp(programs.NewMemoryStore())
	case "postgres", "":
		db, err := programs.Open(ctx, viper.GetString("database_url"))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := programs.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		programApp = programs.NewApp(programs.NewRepository(db))
	default:
		return nil, fmt.Errorf("unknown store: %s (use: postgres, memory)", kind)
	}
	return programApp, nil
}

// newTransport connects the configured sync transport.
func newTransport() (realtime.Transport, error) {
	switch kind := viper.GetString("transport"); kind {
	case "ws", "":
		return realtime.NewWebSocketTransport(realtime.DefaultWebSocketConfig(viper.GetString("gateway_url"))), nil
	case "nats":
		cfg := realtime.DefaultNATSConfig()
		cfg.URL = viper.GetString("nats_url")
		return realtime.NewNATSTransport(cfg)
	case "memory":
		ui.Warning("memory transport: this console will not see other participants")
		return realtime.NewMemoryBus(), nil
	default:
		return nil, fmt.Errorf("unknown transport: %s (use: ws, nats, memory)", kind)
	}
}

// newDraftClient creates a draft client from config/env, or returns nil if no API key is configured.
func newDraftClient() *draftgen.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return draftgen.NewClient(apiKey, viper.GetString("anthropic.model"))
}
