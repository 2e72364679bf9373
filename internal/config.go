package internal

import (
	"clip-queue/runtime"
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment and an optional .env file.
type Config struct {
	LogLevel           string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath     string        `env:"BADGER_FILEPATH,default=./data/history"`
	SettingsFile       string        `env:"SETTINGS_FILE,default=./clipqueue.toml"`
	HandshakeTimeout   time.Duration `env:"HANDSHAKE_TIMEOUT,default=5s"`
	HeartbeatInterval  time.Duration `env:"HEARTBEAT_INTERVAL,default=15s"`
	MaxMissedPongs     int           `env:"MAX_MISSED_PONGS,default=3"`
	WriteTimeout       time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	MaxFrameSize       int           `env:"MAX_FRAME_SIZE,default=16777216"`
	OutboundQueueSize  int           `env:"OUTBOUND_QUEUE_SIZE,default=64"`
	MaxQueueFullStreak int           `env:"MAX_QUEUE_FULL_STREAK,default=8"`
	DedupCapacity      int           `env:"DEDUP_CAPACITY,default=500"`
	DedupWindow        time.Duration `env:"DEDUP_WINDOW,default=5m"`
	BufferSize         int           `env:"BUFFER_SIZE,default=256"`
	SinkTimeout        time.Duration `env:"SINK_TIMEOUT,default=3s"`
	RestartInterval    time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	LimitItems         *int          `env:"LIMIT_ITEMS"`
	DebugPort          int           `env:"DEBUG_PORT,default=0"`
	HealthPort         int           `env:"HEALTH_PORT,default=0"`
}

// LoadConfig reads the optional .env files then the environment.
// A missing .env file is not an error.
func LoadConfig(dotenvFiles ...string) (Config, error) {
	for _, file := range dotenvFiles {
		_ = godotenv.Load(file)
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return config, nil
}

func (c Config) Runtime() runtime.Config {
	cfg := runtime.Config{
		HandshakeTimeout:   c.HandshakeTimeout,
		HeartbeatInterval:  c.HeartbeatInterval,
		MaxMissedPongs:     c.MaxMissedPongs,
		WriteTimeout:       c.WriteTimeout,
		MaxFrameSize:       c.MaxFrameSize,
		OutboundQueueSize:  c.OutboundQueueSize,
		MaxQueueFullStreak: c.MaxQueueFullStreak,
		DedupCapacity:      c.DedupCapacity,
		DedupWindow:        c.DedupWindow,
		BufferSize:         c.BufferSize,
		SinkTimeout:        c.SinkTimeout,
		RestartInterval:    c.RestartInterval,
	}
	return cfg.WithDefaults()
}
