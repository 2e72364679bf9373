package workers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"sync"
)

// ConnHandler takes ownership of an accepted socket.
type ConnHandler interface {
	HandleConn(ctx context.Context, conn net.Conn)
}

// Acceptor accepts TCP connections for a hosted queue and hands each one to
// the handler on its own goroutine. It owns the listener: cancelling the
// context closes it and waits for in-flight handlers.
type Acceptor struct {
	log      *slog.Logger
	listener net.Listener
	handler  ConnHandler
}

func NewAcceptor(log *slog.Logger, listener net.Listener, handler ConnHandler) *Acceptor {
	return &Acceptor{log: log, listener: listener, handler: handler}
}

func (a *Acceptor) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = a.listener.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	a.log.Info("Accepting members", "addr", a.listener.Addr().String())
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, net.ErrClosed) {
				a.log.Debug("Listener closed, stopping acceptor")
				return nil
			}
			var netErr net.Error
			if stderrors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.handler.HandleConn(ctx, conn)
		}()
	}
}
