// Package domain contains core concepts of the clipboard queue.
// This file defines clipboard items handed to the local history.
// Items are immutable once built.
package domain

import "time"

type ItemKind string

const (
	ItemText  ItemKind = "text"
	ItemImage ItemKind = "image"
)

// SourceLAN tags history entries that arrived through the queue.
const SourceLAN = "lan"

// ClipboardItem is what a clipboard bridge inserts into the local history.
type ClipboardItem struct {
	MessageID  string
	Kind       ItemKind
	Text       string
	Image      []byte
	MimeType   string
	SenderID   MemberID
	SenderName string
	Source     string
	CreatedAt  time.Time
	ReceivedAt time.Time
}
