// Package grpc exposes the queue state to the standard gRPC health protocol,
// so any health-checking client can tell whether this node is in a live queue.
package grpc

import (
	"clip-queue/domain"
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// QueueServiceName is the service name reported to health clients.
const QueueServiceName = "clipqueue.Queue"

// HealthNotifier implements contract.Notifier: SERVING while hosting or
// connected, NOT_SERVING otherwise.
type HealthNotifier struct {
	server *health.Server
	log    *slog.Logger
}

func NewHealthNotifier(log *slog.Logger) *HealthNotifier {
	server := health.NewServer()
	server.SetServingStatus(QueueServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthNotifier{server: server, log: log}
}

func (h *HealthNotifier) QueueStatus(status domain.QueueStatus) {
	serving := healthpb.HealthCheckResponse_NOT_SERVING
	if status.Role.Active() {
		serving = healthpb.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus(QueueServiceName, serving)
	h.log.Debug("Health status updated", "role", status.Role, "status", serving.String())
}

func (h *HealthNotifier) QueueMembers([]domain.MemberView) {}

func (h *HealthNotifier) Server() healthpb.HealthServer {
	return h.server
}

// HealthWorker serves the health service on its own port until the context ends.
type HealthWorker struct {
	log      *slog.Logger
	notifier *HealthNotifier
	port     int
}

func NewHealthWorker(log *slog.Logger, notifier *HealthNotifier, port int) *HealthWorker {
	return &HealthWorker{log: log, notifier: notifier, port: port}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", w.port))
	if err != nil {
		return err
	}
	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, w.notifier.Server())

	stop := context.AfterFunc(ctx, func() {
		w.notifier.server.Shutdown()
		server.GracefulStop()
	})
	defer stop()

	w.log.Info("Health server listening", "port", w.port)
	if err := server.Serve(lis); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
