package e2e

import (
	"clip-queue/auth"
	"clip-queue/domain"
	"clip-queue/projection"
	"clip-queue/repositories"
	"clip-queue/runtime"
	"clip-queue/services"
	"clip-queue/sink"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

// BaseQueueSuite starts real queue nodes on loopback, each with its own history store.
type BaseQueueSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseQueueSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

func (s *BaseQueueSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

func (s *BaseQueueSuite) RuntimeConfig() runtime.Config {
	cfg := runtime.DefaultConfig()
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.HeartbeatInterval = s.Config.HeartbeatInterval
	cfg.PasswordParams = auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	return cfg
}

// Node is one machine of the LAN.
type Node struct {
	Name     string
	Service  *services.QueueService
	History  repositories.HistoryRepository
	Timeline *projection.Timeline
	members  *latestMembers
}

func (s *BaseQueueSuite) NewNode(name string) *Node {
	log := logs.GetLoggerFromLevel(slog.LevelDebug).With("node", name)
	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)

	history := repositories.NewHistoryRepository(db, log, nil)
	timeline := projection.NewTimeline(100)
	members := &latestMembers{}
	service := services.NewQueueService(log, s.RuntimeConfig(), members, nil, sink.NewHistorySink(history, log), timeline)
	s.T().Cleanup(func() {
		_ = service.Leave(context.Background())
		_ = db.Close()
	})
	return &Node{Name: name, Service: service, History: history, Timeline: timeline, members: members}
}

// LastMembers is the latest queue-members notification the node received.
func (n *Node) LastMembers() []domain.MemberView {
	return n.members.get()
}

func (n *Node) HistoryItems() []repositories.DiskItem {
	items, _, err := n.History.GetHistory(nil)
	if err != nil {
		return nil
	}
	return items
}

type latestMembers struct {
	mu      sync.Mutex
	members []domain.MemberView
}

func (l *latestMembers) QueueStatus(domain.QueueStatus) {}

func (l *latestMembers) QueueMembers(members []domain.MemberView) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.members = members
}

func (l *latestMembers) get() []domain.MemberView {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.members
}
