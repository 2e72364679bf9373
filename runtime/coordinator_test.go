package runtime

import (
	"clip-queue/auth"
	"clip-queue/domain"
	"clip-queue/errors"
	"clip-queue/protocol"
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var testParams = auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.HeartbeatInterval = time.Hour
	cfg.WriteTimeout = 2 * time.Second
	cfg.PasswordParams = testParams
	return cfg
}

type testHost struct {
	coordinator *Coordinator
	addr        string
	self        domain.Member
	stop        context.CancelFunc
	done        chan error
}

func startHost(t *testing.T, cfg Config, password string) *testHost {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	self := domain.Member{ID: "host-id", Name: "host"}
	coordinator := NewCoordinator(log, cfg, Session{
		Role:      domain.RoleHosting,
		Self:      self,
		QueueName: "default",
		Host:      "127.0.0.1",
		Port:      ln.Addr().(*net.TCPAddr).Port,
	}, nil, nil)
	verifier, err := auth.NewVerifier(password, cfg.PasswordParams)
	require.NoError(t, err)
	gate := NewGate(log, coordinator, verifier, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- coordinator.Run(ctx) }()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go gate.HandleConn(ctx, conn)
		}
	}()

	h := &testHost{coordinator: coordinator, addr: ln.Addr().String(), self: self, stop: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		_ = ln.Close()
		<-coordinator.Done()
	})
	return h
}

func dialHost(t *testing.T, h *testHost, proposed domain.MemberID, password, name string) (net.Conn, protocol.HelloAck) {
	t.Helper()
	conn, ack, err := Dial(context.Background(), h.addr, proposed, protocol.Hello{Password: password, MemberName: name}, testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, ack
}

// nextClipboard skips control frames until a clipboard envelope arrives.
func nextClipboard(t *testing.T, conn net.Conn) protocol.Envelope {
	t.Helper()
	codec := protocol.NewCodec(protocol.DefaultMaxFrameSize)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		env, err := codec.Read(conn)
		require.NoError(t, err)
		if env.IsClipboard() {
			return env
		}
	}
}

func send(t *testing.T, conn net.Conn, env protocol.Envelope) {
	t.Helper()
	require.NoError(t, protocol.NewCodec(protocol.DefaultMaxFrameSize).Write(conn, env))
}

func TestHandshake_AssignsProposedID(t *testing.T) {
	req := require.New(t)
	host := startHost(t, testConfig(), "Abc")

	// When a member joins with the right password
	_, ack := dialHost(t, host, "alice-id", "Abc", "alice")

	// Then the host keeps the proposed id and lists itself first
	req.Equal(domain.MemberID("alice-id"), ack.SelfID)
	req.Equal("default", ack.QueueName)
	req.Len(ack.Members, 2)
	req.Equal(host.self.ID, ack.Members[0].ID)
	req.Eventually(func() bool {
		return len(host.coordinator.Members(context.Background())) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// And only the linked member carries a last seen time
	members := host.coordinator.Members(context.Background())
	req.True(members[0].IsSelf)
	req.Nil(members[0].LastSeen)
	req.NotNil(members[1].LastSeen)
}

func TestHandshake_DuplicateIDGetsFreshOne(t *testing.T) {
	req := require.New(t)
	host := startHost(t, testConfig(), "Abc")
	dialHost(t, host, "same-id", "Abc", "alice")

	// When a second member proposes an id already taken
	_, ack := dialHost(t, host, "same-id", "Abc", "bob")

	// Then
	req.NotEqual(domain.MemberID("same-id"), ack.SelfID)
	req.NotEmpty(ack.SelfID)
}

func TestHandshake_WrongPasswordRejected(t *testing.T) {
	req := require.New(t)
	host := startHost(t, testConfig(), "Abc")

	// When
	_, _, err := Dial(context.Background(), host.addr, "mallory", protocol.Hello{Password: "nope"}, testConfig())

	// Then the member never joins
	req.ErrorIs(err, errors.ErrAuthenticationFailed)
	views := host.coordinator.Members(context.Background())
	req.Len(views, 1)
	req.True(views[0].IsSelf)
}

func TestHandshake_OversizedHelloClosedWithoutWaiting(t *testing.T) {
	req := require.New(t)
	host := startHost(t, testConfig(), "Abc")
	conn, err := net.Dial("tcp", host.addr)
	req.NoError(err)
	t.Cleanup(func() { _ = conn.Close() })

	// When an unauthenticated peer announces a frame far above the hello limit
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, protocol.MaxHelloFrameSize+1)
	_, err = conn.Write(header)
	req.NoError(err)

	// Then the host hangs up before the handshake timeout instead of reading the body
	req.NoError(conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = conn.Read(make([]byte, 1))
	req.ErrorIs(err, io.EOF)
	req.Len(host.coordinator.Members(context.Background()), 1)
}

func TestHandshake_HostUnreachable(t *testing.T) {
	req := require.New(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	addr := ln.Addr().String()
	req.NoError(ln.Close())

	_, _, err = Dial(context.Background(), addr, "alice", protocol.Hello{Password: "Abc"}, testConfig())

	req.ErrorIs(err, errors.ErrHostUnreachable)
}

func TestHandshake_SilentHostTimesOut(t *testing.T) {
	req := require.New(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(time.Second)
		}
	}()
	cfg := testConfig()
	cfg.HandshakeTimeout = 100 * time.Millisecond

	_, _, err = Dial(context.Background(), ln.Addr().String(), "alice", protocol.Hello{Password: "Abc"}, cfg)

	req.ErrorIs(err, errors.ErrConnectionTimeout)
}

func TestCoordinator_RelaysToOthersAndDeliversLocally(t *testing.T) {
	req := require.New(t)
	host := startHost(t, testConfig(), "Abc")
	alice, _ := dialHost(t, host, "alice-id", "Abc", "alice")
	bob, _ := dialHost(t, host, "bob-id", "Abc", "bob")

	// When alice copies some text
	env := protocol.New("alice-id", protocol.Text{Content: "hello"})
	send(t, alice, env)

	// Then bob receives it with the same identity
	got := nextClipboard(t, bob)
	req.Equal(env.MessageID, got.MessageID)
	req.Equal(domain.MemberID("alice-id"), got.SenderID)
	req.Equal(protocol.Text{Content: "hello"}, got.Payload)

	// And the host clipboard gets it once
	select {
	case item := <-host.coordinator.Deliveries():
		req.Equal(env.MessageID, item.MessageID)
		req.Equal(domain.ItemText, item.Kind)
		req.Equal("hello", item.Text)
		req.Equal("alice", item.SenderName)
		req.Equal(domain.SourceLAN, item.Source)
	case <-time.After(2 * time.Second):
		req.Fail("no delivery")
	}
}

func TestCoordinator_DuplicateIsNotRelayedTwice(t *testing.T) {
	req := require.New(t)
	host := startHost(t, testConfig(), "Abc")
	alice, _ := dialHost(t, host, "alice-id", "Abc", "alice")
	bob, _ := dialHost(t, host, "bob-id", "Abc", "bob")

	// Given the same envelope sent twice
	first := protocol.New("alice-id", protocol.Text{Content: "once"})
	send(t, alice, first)
	send(t, alice, first)
	second := protocol.New("alice-id", protocol.Text{Content: "twice"})
	send(t, alice, second)

	// Then bob sees each message id exactly once, in order
	req.Equal(first.MessageID, nextClipboard(t, bob).MessageID)
	req.Equal(second.MessageID, nextClipboard(t, bob).MessageID)
	req.Equal(first.MessageID, (<-host.coordinator.Deliveries()).MessageID)
	req.Equal(second.MessageID, (<-host.coordinator.Deliveries()).MessageID)
}

func TestCoordinator_PublishFromHost(t *testing.T) {
	req := require.New(t)
	host := startHost(t, testConfig(), "Abc")
	alice, _ := dialHost(t, host, "alice-id", "Abc", "alice")
	req.Eventually(func() bool {
		return len(host.coordinator.Members(context.Background())) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// When
	err := host.coordinator.Publish(context.Background(), protocol.Image{Content: []byte{0xff, 0xfe, 0x00}, MimeType: "image/png"})

	// Then
	req.NoError(err)
	got := nextClipboard(t, alice)
	req.Equal(host.self.ID, got.SenderID)
	req.Equal(protocol.Image{Content: []byte{0xff, 0xfe, 0x00}, MimeType: "image/png"}, got.Payload)
}

func TestCoordinator_MissedPongsDropMember(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()
	cfg.MaxMissedPongs = 1
	host := startHost(t, cfg, "Abc")
	dialHost(t, host, "alice-id", "Abc", "alice")
	req.Eventually(func() bool {
		return len(host.coordinator.Members(context.Background())) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// When alice never answers pings
	host.coordinator.Tick(context.Background())
	host.coordinator.Tick(context.Background())

	// Then
	req.Eventually(func() bool {
		return len(host.coordinator.Members(context.Background())) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCoordinator_OversizedFrameDropsMember(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()
	cfg.MaxFrameSize = 1024
	host := startHost(t, cfg, "Abc")
	alice, _ := dialHost(t, host, "alice-id", "Abc", "alice")
	req.Eventually(func() bool {
		return len(host.coordinator.Members(context.Background())) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// When alice announces a frame over the limit
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 4096)
	_, err := alice.Write(header[:])
	req.NoError(err)

	// Then
	req.Eventually(func() bool {
		return len(host.coordinator.Members(context.Background())) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCoordinator_ClientLosesHost(t *testing.T) {
	req := require.New(t)
	host := startHost(t, testConfig(), "Abc")
	conn, ack, err := Dial(context.Background(), host.addr, "alice-id", protocol.Hello{Password: "Abc", MemberName: "alice"}, testConfig())
	req.NoError(err)

	client := NewCoordinator(logs.GetLoggerFromLevel(slog.LevelDebug), testConfig(), Session{
		Role:      domain.RoleConnected,
		Self:      domain.Member{ID: ack.SelfID, Name: "alice"},
		QueueName: ack.QueueName,
		Host:      "127.0.0.1",
	}, nil, nil)
	client.AttachHost(conn, ack.Members[0], ack.Members)
	done := make(chan error, 1)
	go func() { done <- client.Run(context.Background()) }()

	// Given the client sees the host publish
	req.Eventually(func() bool {
		return len(host.coordinator.Members(context.Background())) == 2
	}, 2*time.Second, 10*time.Millisecond)
	req.NoError(host.coordinator.Publish(context.Background(), protocol.Text{Content: "from host"}))
	item := <-client.Deliveries()
	req.Equal("from host", item.Text)
	req.Equal("host", item.SenderName)
	req.True(client.Status(context.Background()).Connected)

	// When the host goes away
	host.stop()

	// Then the client session ends and reports off
	select {
	case err := <-done:
		req.ErrorIs(err, errors.ErrMemberDisconnected)
	case <-time.After(3 * time.Second):
		req.Fail("client did not notice the host leaving")
	}
	req.Equal(domain.RoleOff, client.Status(context.Background()).Role)
	req.Empty(client.Members(context.Background()))
}
