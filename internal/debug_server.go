package internal

import (
	"clip-queue/domain"
	"clip-queue/observability"
	"clip-queue/repositories"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// QueueState is the read side of the queue service.
type QueueState interface {
	Status() domain.QueueStatus
	Members() []domain.MemberView
}

type StatusPage struct {
	Status  domain.QueueStatus          `json:"status"`
	Members []domain.MemberView         `json:"members"`
	Process *observability.ProcessStats `json:"process,omitempty"`
}

type HistoryPage struct {
	Items  []repositories.DiskItem `json:"items"`
	Cursor string                  `json:"cursor,omitempty"`
}

// DebugServer serves /metrics, /status and /history on localhost tooling ports.
type DebugServer struct {
	log      *slog.Logger
	port     int
	handler  http.Handler
	listener net.Listener
}

func NewDebugServer(log *slog.Logger, port int, gatherer prometheus.Gatherer, state QueueState, history repositories.IHistoryRepository) *DebugServer {
	return &DebugServer{log: log, port: port, handler: NewDebugMux(log, gatherer, state, history)}
}

func NewDebugMux(log *slog.Logger, gatherer prometheus.Gatherer, state QueueState, history repositories.IHistoryRepository) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		page := StatusPage{Status: state.Status(), Members: state.Members()}
		if stats, err := observability.SelfStats(); err == nil {
			page.Process = &stats
		} else {
			log.Debug("Failed to collect self stats", "err", err)
		}
		writeJSON(w, log, page)
	})

	mux.HandleFunc("GET /history", func(w http.ResponseWriter, r *http.Request) {
		var cursor *string
		if c := r.URL.Query().Get("cursor"); c != "" {
			cursor = &c
		}
		items, next, err := history.GetHistory(cursor)
		if err != nil {
			log.Error("Failed to read history", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		page := HistoryPage{Items: items}
		if next != nil && len(items) > 0 {
			page.Cursor = *next
		}
		writeJSON(w, log, page)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to write debug response", "err", err)
	}
}

func (d *DebugServer) Run(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("127.0.0.1:%d", d.port))
	if err != nil {
		return err
	}
	server := &http.Server{Handler: d.handler, ReadHeaderTimeout: 5 * time.Second}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})
	defer stop()

	d.log.Info("Debug server listening", "addr", listener.Addr().String())
	if err := server.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
