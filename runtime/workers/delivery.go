package workers

import (
	"clip-queue/contract"
	"clip-queue/domain"
	"context"
	"log/slog"
	"time"
)

// DeliveryWorker hands every received clipboard item to the bridges, one
// after the other, each under its own timeout. A failing bridge is logged
// and skipped; the item still reaches the next one.
type DeliveryWorker struct {
	log     *slog.Logger
	items   <-chan domain.ClipboardItem
	bridges []contract.ClipboardBridge
	timeout time.Duration
}

func NewDeliveryWorker(log *slog.Logger, items <-chan domain.ClipboardItem, timeout time.Duration, bridges ...contract.ClipboardBridge) *DeliveryWorker {
	return &DeliveryWorker{log: log, items: items, bridges: bridges, timeout: timeout}
}

func (w *DeliveryWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping clipboard delivery")
			return nil
		case item, ok := <-w.items:
			if !ok {
				return nil
			}
			w.deliver(ctx, item)
		}
	}
}

func (w *DeliveryWorker) deliver(ctx context.Context, item domain.ClipboardItem) {
	for _, bridge := range w.bridges {
		bridgeCtx, cancel := context.WithTimeout(ctx, w.timeout)
		if err := bridge.Insert(bridgeCtx, item); err != nil {
			w.log.Warn("Clipboard bridge failed", "message_id", item.MessageID, "kind", item.Kind, "err", err)
		}
		cancel()
	}
}
