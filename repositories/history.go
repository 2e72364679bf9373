//go:generate go run go.uber.org/mock/mockgen -source=history.go -destination=../mocks/mock_history_repository.go -package=mocks
package repositories

import (
	"clip-queue/domain"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	historyPrefix = "lan:"
	indexPrefix   = "lanid:"
)

type IHistoryRepository interface {
	StoreItem(item DiskItem) (bool, error)
	GetHistory(cursor *string) ([]DiskItem, *string, error)
}

type HistoryRepository struct {
	db         *badger.DB
	log        *slog.Logger
	limitItems *int
}

func NewHistoryRepository(db *badger.DB, log *slog.Logger, limitItems *int) HistoryRepository {
	return HistoryRepository{db: db, log: log, limitItems: limitItems}
}

// DiskItem is the stored form of a clipboard item received from the queue.
type DiskItem struct {
	MessageID  string          `json:"message_id"`
	Kind       domain.ItemKind `json:"kind"`
	Text       string          `json:"text,omitempty"`
	Image      []byte          `json:"image,omitempty"`
	MimeType   string          `json:"mime_type,omitempty"`
	SenderID   string          `json:"sender_id"`
	SenderName string          `json:"sender_name,omitempty"`
	Source     string          `json:"source"`
	CreatedAt  time.Time       `json:"created_at"`
	ReceivedAt time.Time       `json:"received_at"`
}

// StoreItem persists an item under "lan:{received_at_padded}:{message_id}".
// A second item with the same message id is ignored and reported as not stored,
// so history never holds a message twice even across restarts.
func (r HistoryRepository) StoreItem(item DiskItem) (bool, error) {
	key := fmt.Sprintf("%s%019d:%s", historyPrefix, item.ReceivedAt.UnixNano(), item.MessageID)
	index := []byte(indexPrefix + item.MessageID)
	bytes, err := json.Marshal(item)
	if err != nil {
		return false, err
	}

	stored := false
	err = r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(index)
		switch {
		case err == nil:
			return nil
		case !stderrors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := txn.Set(index, []byte(key)); err != nil {
			return err
		}
		stored = true
		return txn.Set([]byte(key), bytes)
	})
	if err != nil {
		return false, err
	}
	if !stored {
		r.log.Debug("Clipboard item already in history", "message_id", item.MessageID)
	}
	return stored, nil
}

// GetHistory returns items newest first, at most limitItems per page.
// The returned cursor is passed back to read the next, older, page.
func (r HistoryRepository) GetHistory(cursor *string) ([]DiskItem, *string, error) {
	var values [][]byte
	var lastKey string
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(historyPrefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			seekKey = append([]byte(historyPrefix), []byte("9999999999999999999")...)
		default:
			seekKey = append([]byte(historyPrefix), []byte(*cursor)...)
		}
		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if r.limitItems != nil && len(values) == *r.limitItems {
				r.log.Debug(fmt.Sprintf("Maximum of %d items reached", *r.limitItems))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, value)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	items := make([]DiskItem, 0, len(values))
	for _, v := range values {
		var item DiskItem
		if err := json.Unmarshal(v, &item); err != nil {
			return nil, nil, err
		}
		items = append(items, item)
	}
	return items, &lastKey, nil
}

func FromClipboardItem(item domain.ClipboardItem) DiskItem {
	return DiskItem{
		MessageID:  item.MessageID,
		Kind:       item.Kind,
		Text:       item.Text,
		Image:      item.Image,
		MimeType:   item.MimeType,
		SenderID:   string(item.SenderID),
		SenderName: item.SenderName,
		Source:     item.Source,
		CreatedAt:  item.CreatedAt.UTC(),
		ReceivedAt: item.ReceivedAt.UTC(),
	}
}

func (d DiskItem) ToClipboardItem() domain.ClipboardItem {
	return domain.ClipboardItem{
		MessageID:  d.MessageID,
		Kind:       d.Kind,
		Text:       d.Text,
		Image:      d.Image,
		MimeType:   d.MimeType,
		SenderID:   domain.MemberID(d.SenderID),
		SenderName: d.SenderName,
		Source:     d.Source,
		CreatedAt:  d.CreatedAt,
		ReceivedAt: d.ReceivedAt,
	}
}
