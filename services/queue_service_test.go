package services

import (
	"clip-queue/auth"
	"clip-queue/domain"
	"clip-queue/errors"
	"clip-queue/projection"
	"clip-queue/runtime"
	"context"
	"log/slog"
	"net"
	goruntime "runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []domain.QueueStatus
	members  [][]domain.MemberView
}

func (r *recordingNotifier) QueueStatus(status domain.QueueStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *recordingNotifier) QueueMembers(members []domain.MemberView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = append(r.members, members)
}

func (r *recordingNotifier) roles() []domain.Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Map(r.statuses, func(s domain.QueueStatus, _ int) domain.Role { return s.Role })
}

func (r *recordingNotifier) memberSnapshots() [][]domain.MemberView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]domain.MemberView(nil), r.members...)
}

type peer struct {
	service  *QueueService
	timeline *projection.Timeline
	notifier *recordingNotifier
}

func testConfig() runtime.Config {
	cfg := runtime.DefaultConfig()
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.PasswordParams = auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	return cfg
}

func newPeer(t *testing.T) *peer {
	t.Helper()
	timeline := projection.NewTimeline(50)
	notifier := &recordingNotifier{}
	service := NewQueueService(logs.GetLoggerFromLevel(slog.LevelDebug), testConfig(), notifier, nil, timeline)
	t.Cleanup(func() { _ = service.Leave(context.Background()) })
	return &peer{service: service, timeline: timeline, notifier: notifier}
}

func startHost(t *testing.T, password string) (*peer, int) {
	t.Helper()
	host := newPeer(t)
	status, err := host.service.StartHost(context.Background(), auth.HostRequest{Password: password, MemberName: "host"})
	require.NoError(t, err)
	return host, status.Port
}

func join(p *peer, port int, password, name string) (domain.QueueStatus, error) {
	return p.service.Join(context.Background(), auth.JoinRequest{Host: "127.0.0.1", Port: port, Password: password, MemberName: name})
}

func waitMembers(t *testing.T, p *peer, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(p.service.Members()) == n }, 3*time.Second, 10*time.Millisecond)
}

func TestQueueService_HostAndJoin(t *testing.T) {
	req := require.New(t)
	host, port := startHost(t, "abc")
	client := newPeer(t)

	// When
	status, err := join(client, port, "abc", "laptop")

	// Then both sides see two members, each with exactly one self entry
	req.NoError(err)
	req.Equal(domain.RoleConnected, status.Role)
	req.True(status.Connected)
	req.Equal("default", status.QueueName)
	waitMembers(t, host, 2)
	waitMembers(t, client, 2)
	for _, p := range []*peer{host, client} {
		views := p.service.Members()
		req.Len(lo.Filter(views, func(v domain.MemberView, _ int) bool { return v.IsSelf }), 1)
	}
	req.Equal(domain.RoleHosting, host.service.Status().Role)
	req.Contains(client.notifier.roles(), domain.RoleJoining)
}

func TestQueueService_WrongPasswordLeavesMembershipUnchanged(t *testing.T) {
	req := require.New(t)
	host, port := startHost(t, "abc")
	first := newPeer(t)
	_, err := join(first, port, "abc", "first")
	req.NoError(err)
	waitMembers(t, host, 2)

	// When
	intruder := newPeer(t)
	status, err := join(intruder, port, "xyz", "intruder")

	// Then
	req.ErrorIs(err, errors.ErrAuthenticationFailed)
	req.Equal(domain.RoleOff, status.Role)
	req.Equal(domain.RoleOff, intruder.service.Status().Role)
	req.Equal([]domain.Role{domain.RoleJoining, domain.RoleOff}, intruder.notifier.roles())
	req.Len(host.service.Members(), 2)
}

func TestQueueService_OverlongPasswordIsAnAuthenticationFailure(t *testing.T) {
	req := require.New(t)
	host, port := startHost(t, "abc")
	peer := newPeer(t)

	// When the password is longer than any host accepts
	status, err := join(peer, port, strings.Repeat("abc", 100), "long")

	// Then it fails like any other mismatch
	req.ErrorIs(err, errors.ErrAuthenticationFailed)
	req.Equal(domain.RoleOff, status.Role)
	req.Equal([]domain.Role{domain.RoleJoining, domain.RoleOff}, peer.notifier.roles())
	req.Len(host.service.Members(), 1)
}

func TestQueueService_PasswordIsCaseSensitive(t *testing.T) {
	_, port := startHost(t, "abc")
	_, err := join(newPeer(t), port, "ABC", "shouty")
	require.ErrorIs(t, err, errors.ErrAuthenticationFailed)
}

func TestQueueService_TextReachesEveryoneElseOnce(t *testing.T) {
	req := require.New(t)
	host, port := startHost(t, "abc")
	alice, bob := newPeer(t), newPeer(t)
	_, err := join(alice, port, "abc", "alice")
	req.NoError(err)
	_, err = join(bob, port, "abc", "bob")
	req.NoError(err)
	waitMembers(t, host, 3)

	// When alice copies text
	req.NoError(alice.service.PublishText(context.Background(), "hello"))

	// Then host and bob get it once, alice never does
	req.Eventually(func() bool { return host.timeline.Len() == 1 && bob.timeline.Len() == 1 }, 3*time.Second, 10*time.Millisecond)
	item, _ := bob.timeline.Last()
	req.Equal("hello", item.Text)
	req.Equal("alice", item.SenderName)
	req.Equal(domain.SourceLAN, item.Source)
	hostItem, _ := host.timeline.Last()
	req.Equal(item.MessageID, hostItem.MessageID)

	time.Sleep(100 * time.Millisecond)
	req.Equal(0, alice.timeline.Len())
	req.Equal(1, bob.timeline.Len())
}

func TestQueueService_ImageFromHost(t *testing.T) {
	req := require.New(t)
	host, port := startHost(t, "abc")
	client := newPeer(t)
	_, err := join(client, port, "abc", "client")
	req.NoError(err)
	waitMembers(t, host, 2)

	// When
	req.NoError(host.service.PublishImage(context.Background(), pngHeader))

	// Then
	req.Eventually(func() bool { return client.timeline.Len() == 1 }, 3*time.Second, 10*time.Millisecond)
	item, _ := client.timeline.Last()
	req.Equal(domain.ItemImage, item.Kind)
	req.Equal(pngHeader, item.Image)
	req.Equal("image/png", item.MimeType)
	req.Equal("host", item.SenderName)
}

func TestQueueService_PublishImageRejectsBadInput(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()
	cfg.MaxFrameSize = 1024
	service := NewQueueService(logs.GetLoggerFromLevel(slog.LevelDebug), cfg, nil, nil)
	t.Cleanup(func() { _ = service.Leave(context.Background()) })

	req.ErrorIs(service.PublishImage(context.Background(), pngHeader), errors.ErrQueueNotActive)

	_, err := service.StartHost(context.Background(), auth.HostRequest{Password: "abc"})
	req.NoError(err)
	req.ErrorIs(service.PublishImage(context.Background(), []byte("plain text")), errors.ErrInvalidRequest)
	req.ErrorIs(service.PublishImage(context.Background(), append(pngHeader, make([]byte, 2048)...)), errors.ErrFrameTooLarge)
}

func TestQueueService_LeaveReturnsToOff(t *testing.T) {
	req := require.New(t)
	host, port := startHost(t, "abc")
	client := newPeer(t)
	_, err := join(client, port, "abc", "client")
	req.NoError(err)
	waitMembers(t, host, 2)

	// When the client leaves
	req.NoError(client.service.Leave(context.Background()))

	// Then
	status := client.service.Status()
	req.Equal(domain.RoleOff, status.Role)
	req.False(status.Connected)
	req.Empty(client.service.Members())
	req.ErrorIs(client.service.PublishText(context.Background(), "late"), errors.ErrQueueNotActive)
	waitMembers(t, host, 1)

	// And leaving twice is harmless
	req.NoError(client.service.Leave(context.Background()))
}

func TestQueueService_PublishTextRejectsInvalidUTF8(t *testing.T) {
	req := require.New(t)
	host, port := startHost(t, "abc")
	client := newPeer(t)
	_, err := join(client, port, "abc", "client")
	req.NoError(err)
	waitMembers(t, host, 2)

	// When the copied text is not UTF-8
	err = client.service.PublishText(context.Background(), "caf\xe9")

	// Then it is refused instead of reaching the host altered
	req.ErrorIs(err, errors.ErrInvalidRequest)
	req.NoError(client.service.PublishText(context.Background(), "caf\u00e9"))
	req.Eventually(func() bool { return host.timeline.Len() == 1 }, 3*time.Second, 10*time.Millisecond)
	req.Equal("caf\u00e9", host.timeline.Items()[0].Text)
}

func TestQueueService_LeaveStopsEveryGoroutine(t *testing.T) {
	req := require.New(t)
	baseline := goruntime.NumGoroutine()
	host, port := startHost(t, "abc")
	client := newPeer(t)
	_, err := join(client, port, "abc", "client")
	req.NoError(err)
	waitMembers(t, host, 2)
	req.NoError(client.service.PublishText(context.Background(), "hello"))
	req.Eventually(func() bool { return host.timeline.Len() == 1 }, 3*time.Second, 10*time.Millisecond)
	req.Greater(goruntime.NumGoroutine(), baseline)

	// When both sides leave
	req.NoError(client.service.Leave(context.Background()))
	req.NoError(host.service.Leave(context.Background()))

	// Then nothing they started is still running
	req.Eventually(func() bool { return goruntime.NumGoroutine() <= baseline }, 3*time.Second, 10*time.Millisecond)
}

func TestQueueService_ClientFollowsHostDown(t *testing.T) {
	req := require.New(t)
	host, port := startHost(t, "abc")
	client := newPeer(t)
	_, err := join(client, port, "abc", "client")
	req.NoError(err)
	waitMembers(t, host, 2)

	// When the host leaves
	req.NoError(host.service.Leave(context.Background()))

	// Then the client drops back to off on its own
	req.Eventually(func() bool { return client.service.Status().Role == domain.RoleOff }, 3*time.Second, 10*time.Millisecond)
	req.Eventually(func() bool {
		snapshots := client.notifier.memberSnapshots()
		return len(snapshots) > 0 && len(snapshots[len(snapshots)-1]) == 0
	}, 3*time.Second, 10*time.Millisecond)

	// And can join again later
	host2, port2 := startHost(t, "abc")
	_, err = join(client, port2, "abc", "client")
	req.NoError(err)
	waitMembers(t, host2, 2)
}

func TestQueueService_AlreadyActive(t *testing.T) {
	req := require.New(t)
	host, port := startHost(t, "abc")

	_, err := host.service.StartHost(context.Background(), auth.HostRequest{Password: "abc"})
	req.ErrorIs(err, errors.ErrQueueAlreadyActive)
	_, err = join(host, port, "abc", "self")
	req.ErrorIs(err, errors.ErrQueueAlreadyActive)
}

func TestQueueService_AddressInUse(t *testing.T) {
	req := require.New(t)
	ln, err := net.Listen("tcp", ":0")
	req.NoError(err)
	defer ln.Close()

	_, err = newPeer(t).service.StartHost(context.Background(), auth.HostRequest{Port: ln.Addr().(*net.TCPAddr).Port, Password: "abc"})

	req.ErrorIs(err, errors.ErrAddressInUse)
}

func TestQueueService_InvalidRequests(t *testing.T) {
	req := require.New(t)
	service := newPeer(t).service

	_, err := service.StartHost(context.Background(), auth.HostRequest{Port: 70000, Password: "abc"})
	req.ErrorIs(err, errors.ErrInvalidRequest)
	_, err = service.Join(context.Background(), auth.JoinRequest{Host: "", Port: 21991})
	req.ErrorIs(err, errors.ErrInvalidRequest)
	req.ErrorIs(service.PublishText(context.Background(), "x"), errors.ErrQueueNotActive)
}
