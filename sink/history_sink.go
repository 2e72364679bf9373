package sink

import (
	"clip-queue/domain"
	"clip-queue/repositories"
	"context"
	"log/slog"
)

// HistorySink writes clipboard items received from the queue to the local history.
type HistorySink struct {
	repository repositories.IHistoryRepository
	log        *slog.Logger
}

func NewHistorySink(repository repositories.IHistoryRepository, log *slog.Logger) HistorySink {
	return HistorySink{repository: repository, log: log}
}

func (h HistorySink) Insert(ctx context.Context, item domain.ClipboardItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored, err := h.repository.StoreItem(repositories.FromClipboardItem(item))
	if err != nil {
		return err
	}
	if stored {
		h.log.Debug("Clipboard item stored", "message_id", item.MessageID, "kind", item.Kind, "sender", item.SenderName)
	}
	return nil
}
