package gateway

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the gateway service
type Config struct {
	Connection     ConnectionConfig `yaml:"connection"`
	AllowedOrigins []string         `yaml:"allowed_origins"`
}

func DefaultConfig() Config {
	return Config{
		Connection: DefaultConnectionConfig(),
	}
}

// LoadConfig overlays the YAML file at path onto the defaults. Fields absent from the file
// keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
