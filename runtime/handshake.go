package runtime

import (
	"clip-queue/auth"
	"clip-queue/domain"
	"clip-queue/errors"
	"clip-queue/observability"
	"clip-queue/protocol"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"
)

// Gate authenticates freshly accepted sockets. Nothing reaches the
// coordinator before a Hello carrying the right password.
type Gate struct {
	log         *slog.Logger
	coordinator *Coordinator
	verifier    auth.Verifier
	codec       protocol.Codec
	timeout     time.Duration
	metrics     observability.Metrics
}

func NewGate(log *slog.Logger, coordinator *Coordinator, verifier auth.Verifier, cfg Config, metrics observability.Metrics) *Gate {
	cfg = cfg.WithDefaults()
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &Gate{
		log:         log,
		coordinator: coordinator,
		verifier:    verifier,
		codec:       protocol.NewCodec(min(cfg.MaxFrameSize, protocol.MaxHelloFrameSize)),
		timeout:     cfg.HandshakeTimeout,
		metrics:     metrics,
	}
}

// HandleConn runs the host side of the handshake on one socket. It always
// either admits the socket or closes it.
func (g *Gate) HandleConn(ctx context.Context, conn net.Conn) {
	log := g.log.With("addr", conn.RemoteAddr().String())

	if err := conn.SetDeadline(time.Now().Add(g.timeout)); err != nil {
		_ = conn.Close()
		return
	}
	env, err := g.codec.Read(conn)
	if err != nil {
		g.metrics.HandshakeRejected(handshakeLabel(err))
		log.Debug("Handshake aborted", "err", err)
		_ = conn.Close()
		return
	}
	hello, ok := env.Payload.(protocol.Hello)
	if !ok {
		g.metrics.HandshakeRejected("unexpected_kind")
		log.Warn("First frame is not a hello", "kind", env.Kind())
		_ = conn.Close()
		return
	}
	if !g.verifier.Verify(hello.Password) {
		g.metrics.HandshakeRejected(protocol.RejectInvalidPassword)
		log.Warn("Rejecting member with invalid password", "name", hello.MemberName)
		g.reject(conn, protocol.RejectInvalidPassword)
		return
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return
	}
	if !g.coordinator.Admit(ctx, conn, env.SenderID, hello.MemberName) {
		_ = conn.Close()
	}
}

func (g *Gate) reject(conn net.Conn, reason string) {
	defer func() { _ = conn.Close() }()
	env := protocol.New("", protocol.HelloReject{Reason: reason})
	if err := g.codec.Write(conn, env); err != nil {
		g.log.Debug("Could not send hello reject", "err", err)
	}
}

func handshakeLabel(err error) string {
	switch {
	case stderrors.Is(err, os.ErrDeadlineExceeded):
		return "timeout"
	case stderrors.Is(err, errors.ErrFrameTooLarge):
		return "frame_too_large"
	case stderrors.Is(err, errors.ErrMalformedEnvelope):
		return "malformed"
	default:
		return "closed"
	}
}

// Dial runs the client side of the handshake. On success the returned
// socket has no deadline and the HelloAck is returned for the caller to
// seed its session with.
func Dial(ctx context.Context, addr string, proposed domain.MemberID, hello protocol.Hello, cfg Config) (net.Conn, protocol.HelloAck, error) {
	cfg = cfg.WithDefaults()
	codec := protocol.NewCodec(cfg.MaxFrameSize)

	dialer := net.Dialer{Timeout: cfg.HandshakeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if stderrors.Is(err, os.ErrDeadlineExceeded) || isTimeout(err) {
			return nil, protocol.HelloAck{}, fmt.Errorf("%w: %s: %v", errors.ErrConnectionTimeout, addr, err)
		}
		return nil, protocol.HelloAck{}, fmt.Errorf("%w: %s: %v", errors.ErrHostUnreachable, addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	ack, err := handshake(conn, codec, proposed, hello, cfg.HandshakeTimeout)
	if err != nil {
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil, protocol.HelloAck{}, ctx.Err()
		}
		return nil, protocol.HelloAck{}, err
	}
	return conn, ack, nil
}

func handshake(conn net.Conn, codec protocol.Codec, proposed domain.MemberID, hello protocol.Hello, timeout time.Duration) (protocol.HelloAck, error) {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return protocol.HelloAck{}, err
	}
	if err := codec.Write(conn, protocol.New(proposed, hello)); err != nil {
		return protocol.HelloAck{}, fmt.Errorf("%w: sending hello: %v", errors.ErrHostUnreachable, err)
	}
	env, err := codec.Read(conn)
	if err != nil {
		if isTimeout(err) {
			return protocol.HelloAck{}, fmt.Errorf("%w: no reply to hello", errors.ErrConnectionTimeout)
		}
		return protocol.HelloAck{}, fmt.Errorf("%w: reading reply: %w", errors.ErrHostUnreachable, err)
	}
	switch p := env.Payload.(type) {
	case protocol.HelloAck:
		if err := conn.SetDeadline(time.Time{}); err != nil {
			return protocol.HelloAck{}, err
		}
		return p, nil
	case protocol.HelloReject:
		return protocol.HelloAck{}, fmt.Errorf("%w: %s", errors.ErrAuthenticationFailed, p.Reason)
	default:
		return protocol.HelloAck{}, fmt.Errorf("%w: expected hello reply, got %s", errors.ErrMalformedEnvelope, env.Kind())
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
