package sink

import (
	"clip-queue/domain"
	"clip-queue/mocks"
	"clip-queue/repositories"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestHistorySink_Insert(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIHistoryRepository(ctrl)
	at := time.Now().UTC()
	item := domain.ClipboardItem{MessageID: "m1", Kind: domain.ItemText, Text: "hello", SenderID: "alice", Source: domain.SourceLAN, CreatedAt: at, ReceivedAt: at}

	repository.EXPECT().StoreItem(repositories.FromClipboardItem(item)).Return(true, nil)

	req.NoError(NewHistorySink(repository, slog.Default()).Insert(context.Background(), item))
}

func TestHistorySink_PropagatesStorageError(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIHistoryRepository(ctrl)
	repository.EXPECT().StoreItem(gomock.Any()).Return(false, errors.New("disk full"))

	err := NewHistorySink(repository, slog.Default()).Insert(context.Background(), domain.ClipboardItem{MessageID: "m1"})

	req.EqualError(err, "disk full")
}

func TestHistorySink_CancelledContext(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIHistoryRepository(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Then the repository is never reached
	req.ErrorIs(NewHistorySink(repository, slog.Default()).Insert(ctx, domain.ClipboardItem{MessageID: "m1"}), context.Canceled)
}

func TestChannelNotifier_DropsWhenFull(t *testing.T) {
	req := require.New(t)
	notifier := NewChannelNotifier(slog.Default(), 1)

	// When two notifications arrive on a buffer of one
	notifier.QueueStatus(domain.QueueStatus{Role: domain.RoleHosting, Connected: true})
	notifier.QueueMembers([]domain.MemberView{{ID: "a", IsSelf: true}})

	// Then only the first is kept
	got := <-notifier.C()
	req.Equal(QueueStatusChanged, got.Kind)
	req.Equal(domain.RoleHosting, got.Status.Role)
	select {
	case extra := <-notifier.C():
		req.Failf("unexpected notification", "%v", extra)
	default:
	}
}

func TestMultiNotifier_ForwardsToAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mocks.NewMockNotifier(ctrl)
	second := mocks.NewMockNotifier(ctrl)
	status := domain.OffStatus("self", "laptop")
	members := []domain.MemberView{{ID: "self", IsSelf: true}}

	first.EXPECT().QueueStatus(status)
	second.EXPECT().QueueStatus(status)
	first.EXPECT().QueueMembers(members)
	second.EXPECT().QueueMembers(members)

	notifier := MultiNotifier{first, second}
	notifier.QueueStatus(status)
	notifier.QueueMembers(members)
}
