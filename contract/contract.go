//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"clip-queue/domain"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// ClipboardBridge inserts LAN clipboard items into the local history.
type ClipboardBridge interface {
	Insert(ctx context.Context, item domain.ClipboardItem) error
}

// Notifier is the outbound notification channel consumed by a UI.
// Implementations must not block: they are called from the coordinator goroutine.
type Notifier interface {
	QueueStatus(status domain.QueueStatus)
	QueueMembers(members []domain.MemberView)
}
