package runtime

import (
	"clip-queue/auth"
	"clip-queue/dedup"
	"clip-queue/protocol"
	"time"
)

// Config holds the timing and sizing knobs of one queue activation.
type Config struct {
	HandshakeTimeout   time.Duration
	HeartbeatInterval  time.Duration
	MaxMissedPongs     int
	WriteTimeout       time.Duration
	MaxFrameSize       int
	OutboundQueueSize  int
	MaxQueueFullStreak int
	DedupCapacity      int
	DedupWindow        time.Duration
	BufferSize         int
	SinkTimeout        time.Duration
	RestartInterval    time.Duration
	PasswordParams     auth.Params
}

func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:   5 * time.Second,
		HeartbeatInterval:  15 * time.Second,
		MaxMissedPongs:     3,
		WriteTimeout:       10 * time.Second,
		MaxFrameSize:       protocol.DefaultMaxFrameSize,
		OutboundQueueSize:  64,
		MaxQueueFullStreak: 8,
		DedupCapacity:      dedup.DefaultCapacity,
		DedupWindow:        dedup.DefaultWindow,
		BufferSize:         256,
		SinkTimeout:        3 * time.Second,
		RestartInterval:    200 * time.Millisecond,
		PasswordParams:     auth.DefaultParams,
	}
}

// WithDefaults fills every zero field from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.MaxMissedPongs <= 0 {
		c.MaxMissedPongs = d.MaxMissedPongs
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = d.MaxFrameSize
	}
	if c.OutboundQueueSize <= 0 {
		c.OutboundQueueSize = d.OutboundQueueSize
	}
	if c.MaxQueueFullStreak <= 0 {
		c.MaxQueueFullStreak = d.MaxQueueFullStreak
	}
	if c.DedupCapacity <= 0 {
		c.DedupCapacity = d.DedupCapacity
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = d.DedupWindow
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = d.SinkTimeout
	}
	if c.RestartInterval <= 0 {
		c.RestartInterval = d.RestartInterval
	}
	if c.PasswordParams.KeyLength == 0 {
		c.PasswordParams = d.PasswordParams
	}
	return c
}
