// Package projection builds local views of the clipboard items received
// from the queue. It does not emit events or touch the network.
package projection

import (
	"clip-queue/domain"
	"context"
	"sync"
)

const defaultTimelineLimit = 100

// Timeline keeps the most recent clipboard items, newest last.
type Timeline struct {
	mu    sync.RWMutex
	limit int
	items []domain.ClipboardItem
}

func NewTimeline(limit int) *Timeline {
	if limit <= 0 {
		limit = defaultTimelineLimit
	}
	return &Timeline{limit: limit}
}

// Insert implements contract.ClipboardBridge.
func (t *Timeline) Insert(_ context.Context, item domain.ClipboardItem) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, item)
	if over := len(t.items) - t.limit; over > 0 {
		t.items = append([]domain.ClipboardItem(nil), t.items[over:]...)
	}
	return nil
}

// Items returns a copy of the timeline.
func (t *Timeline) Items() []domain.ClipboardItem {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]domain.ClipboardItem(nil), t.items...)
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// Last returns the newest item, if any.
func (t *Timeline) Last() (domain.ClipboardItem, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.items) == 0 {
		return domain.ClipboardItem{}, false
	}
	return t.items[len(t.items)-1], true
}
