package sink

import (
	"clip-queue/contract"
	"clip-queue/domain"
	"log/slog"
)

type NotificationKind string

const (
	QueueStatusChanged  NotificationKind = "queue-status"
	QueueMembersChanged NotificationKind = "queue-members"
)

// Notification is one UI event. Exactly one of Status or Members is meaningful, depending on Kind.
type Notification struct {
	Kind    NotificationKind
	Status  domain.QueueStatus
	Members []domain.MemberView
}

// ChannelNotifier publishes notifications on a buffered channel.
// When the consumer lags and the buffer is full the notification is dropped.
type ChannelNotifier struct {
	log *slog.Logger
	ch  chan Notification
}

func NewChannelNotifier(log *slog.Logger, size int) *ChannelNotifier {
	return &ChannelNotifier{log: log, ch: make(chan Notification, size)}
}

func (n *ChannelNotifier) C() <-chan Notification {
	return n.ch
}

func (n *ChannelNotifier) QueueStatus(status domain.QueueStatus) {
	n.publish(Notification{Kind: QueueStatusChanged, Status: status})
}

func (n *ChannelNotifier) QueueMembers(members []domain.MemberView) {
	n.publish(Notification{Kind: QueueMembersChanged, Members: members})
}

func (n *ChannelNotifier) publish(notification Notification) {
	select {
	case n.ch <- notification:
	default:
		n.log.Debug("Notification lost", "kind", notification.Kind)
	}
}

// MultiNotifier forwards every notification to each notifier in order.
type MultiNotifier []contract.Notifier

func (m MultiNotifier) QueueStatus(status domain.QueueStatus) {
	for _, n := range m {
		n.QueueStatus(status)
	}
}

func (m MultiNotifier) QueueMembers(members []domain.MemberView) {
	for _, n := range m {
		n.QueueMembers(members)
	}
}
