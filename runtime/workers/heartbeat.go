package workers

import (
	"context"
	"log/slog"
	"time"
)

// Pulse receives one heartbeat round per tick.
type Pulse interface {
	Tick(ctx context.Context)
}

// HeartbeatWorker drives liveness checks: every interval the pulse pings
// its peers and drops the ones that stopped answering.
type HeartbeatWorker struct {
	log      *slog.Logger
	pulse    Pulse
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, pulse Pulse, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, pulse: pulse, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Debug("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.pulse.Tick(ctx)
		}
	}
}
