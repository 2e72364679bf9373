package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_PORT is where the scenario host listens.
	Port int `envconfig:"E2E_PORT" default:"21991"`
	// E2E_HEARTBEAT_INTERVAL is kept short so a silent member is dropped within a second.
	HeartbeatInterval time.Duration `envconfig:"E2E_HEARTBEAT_INTERVAL" default:"100ms"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
