package runtime

import (
	"clip-queue/domain"
	"clip-queue/errors"
	"clip-queue/protocol"
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

// link owns one authenticated socket: a reader that turns frames into
// coordinator commands and a writer that drains a bounded outbound queue.
// The link never touches membership state itself.
type link struct {
	id           domain.MemberID
	conn         net.Conn
	codec        protocol.Codec
	outbound     chan protocol.Envelope
	writeTimeout time.Duration
	log          *slog.Logger
	closeOnce    sync.Once
	closed       chan struct{}
}

func newLink(id domain.MemberID, conn net.Conn, codec protocol.Codec, queueSize int, writeTimeout time.Duration, log *slog.Logger) *link {
	return &link{
		id:           id,
		conn:         conn,
		codec:        codec,
		outbound:     make(chan protocol.Envelope, queueSize),
		writeTimeout: writeTimeout,
		log:          log.With("member_id", id),
		closed:       make(chan struct{}),
	}
}

// trySend enqueues without blocking. It reports false when the queue is full or the link closed.
func (l *link) trySend(env protocol.Envelope) bool {
	select {
	case <-l.closed:
		return false
	default:
	}
	select {
	case l.outbound <- env:
		return true
	default:
		return false
	}
}

// close is idempotent; closing the socket unblocks a pending read.
func (l *link) close() {
	l.closeOnce.Do(func() {
		close(l.closed)
		_ = l.conn.Close()
	})
}

// readLoop reports every decoded envelope and, once, the error that ended the link.
func (l *link) readLoop(ctx context.Context, submit func(context.Context, command) bool) {
	for {
		env, err := l.codec.Read(l.conn)
		if err != nil {
			select {
			case <-l.closed:
				// Closed on our side, by the coordinator or a failed write.
				err = net.ErrClosed
			default:
			}
			submit(ctx, linkClosed{id: l.id, link: l, err: err})
			return
		}
		if !submit(ctx, inbound{from: l.id, env: env}) {
			return
		}
	}
}

func (l *link) writeLoop() {
	for {
		select {
		case <-l.closed:
			return
		case env := <-l.outbound:
			body, err := protocol.Encode(env)
			if err == nil && len(body) > l.codec.MaxFrameSize {
				err = errors.ErrFrameTooLarge
			}
			if err != nil {
				l.log.Warn("Dropping unencodable envelope", "kind", env.Kind(), "err", err)
				continue
			}
			if err := l.conn.SetWriteDeadline(time.Now().Add(l.writeTimeout)); err != nil {
				l.close()
				return
			}
			if err := protocol.WriteFrame(l.conn, body, l.codec.MaxFrameSize); err != nil {
				if !stderrors.Is(err, net.ErrClosed) {
					l.log.Debug("Write failed, closing link", "err", err)
				}
				l.close()
				return
			}
		}
	}
}
