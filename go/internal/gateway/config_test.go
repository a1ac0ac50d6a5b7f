package gateway

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("no file keeps defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConnectionConfig().PingInterval, cfg.Connection.PingInterval)
		assert.NotNil(t, cfg.Connection.CheckOrigin)
	})

	t.Run("overlay", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gateway.yaml")
		yaml := "connection:\n  ping_interval: 5s\n  max_message_size: 2048\nallowed_origins:\n  - https://kairon.example\n"
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, cfg.Connection.PingInterval)
		assert.Equal(t, int64(2048), cfg.Connection.MaxMessageSize)
		assert.Equal(t, 10*time.Second, cfg.Connection.WriteTimeout)
		assert.Equal(t, []string{"https://kairon.example"}, cfg.AllowedOrigins)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
