package main

import (
	"clip-queue/auth"
	"clip-queue/domain"
	grpc2 "clip-queue/grpc"
	"clip-queue/internal"
	"clip-queue/observability"
	"clip-queue/projection"
	"clip-queue/repositories"
	"clip-queue/runtime/workers"
	"clip-queue/services"
	"clip-queue/sink"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type startFunc func(ctx context.Context, service services.IQueueService) (domain.QueueStatus, error)

func newHostCommand(ctx *commandContext) *cobra.Command {
	var req auth.HostRequest
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Host a queue and accept members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, ctx, func(c context.Context, s services.IQueueService) (domain.QueueStatus, error) {
				return s.StartHost(c, req)
			})
		},
	}
	cmd.Flags().IntVarP(&req.Port, "port", "p", internal.DefaultQueuePort, "Port to listen on (0 picks a free one)")
	cmd.Flags().StringVar(&req.Password, "password", "", "Queue password")
	cmd.Flags().StringVar(&req.QueueName, "queue", internal.DefaultQueueName, "Queue name")
	cmd.Flags().StringVar(&req.MemberName, "name", "", "Display name (defaults to the hostname)")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newJoinCommand(ctx *commandContext) *cobra.Command {
	var req auth.JoinRequest
	cmd := &cobra.Command{
		Use:   "join <host>",
		Short: "Join a queue hosted on another machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Host = args[0]
			return runSession(cmd, ctx, func(c context.Context, s services.IQueueService) (domain.QueueStatus, error) {
				return s.Join(c, req)
			})
		},
	}
	cmd.Flags().IntVarP(&req.Port, "port", "p", internal.DefaultQueuePort, "Host port")
	cmd.Flags().StringVar(&req.Password, "password", "", "Queue password")
	cmd.Flags().StringVar(&req.MemberName, "name", "", "Display name (defaults to the hostname)")
	return cmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Host or join as described by the saved settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, _, err := internal.LoadSettings(ctx.settingsFile)
			if err != nil {
				return err
			}
			start, err := startFromSettings(settings)
			if err != nil {
				return err
			}
			return runSession(cmd, ctx, start)
		},
	}
}

func startFromSettings(settings internal.Settings) (startFunc, error) {
	switch settings.Role {
	case domain.RoleHosting:
		req := auth.HostRequest{Port: settings.Port, Password: settings.Password, QueueName: settings.QueueName, MemberName: settings.MemberName}
		return func(c context.Context, s services.IQueueService) (domain.QueueStatus, error) {
			return s.StartHost(c, req)
		}, nil
	case domain.RoleConnected:
		req := auth.JoinRequest{Host: settings.Host, Port: settings.Port, Password: settings.Password, MemberName: settings.MemberName}
		return func(c context.Context, s services.IQueueService) (domain.QueueStatus, error) {
			return s.Join(c, req)
		}, nil
	default:
		return nil, fmt.Errorf("queue role is %q in the settings, nothing to run", settings.Role)
	}
}

// runSession wires the whole node, starts the queue and hands stdin to the console
// until /quit, end of input or a signal.
func runSession(cmd *cobra.Command, appCtx *commandContext, start startFunc) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := appCtx.log
	config := appCtx.config

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	registry := prometheus.NewRegistry()
	metrics := observability.NewPrometheusMetrics(registry)
	history := repositories.NewHistoryRepository(db, log, config.LimitItems)
	timeline := projection.NewTimeline(50)
	out := cmd.OutOrStdout()
	printer := newPrinter(out, useColours(out))

	notifications := sink.NewChannelNotifier(log, config.BufferSize)
	health := grpc2.NewHealthNotifier(log)
	service := services.NewQueueService(log, config.Runtime(),
		sink.MultiNotifier{notifications, health}, metrics,
		sink.NewHistorySink(history, log), timeline, printer)

	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	supervisor.Add(newNotificationWorker(notifications, printer))
	if config.DebugPort > 0 {
		supervisor.Add(internal.NewDebugServer(log, config.DebugPort, registry, service, history))
	}
	if config.HealthPort > 0 {
		supervisor.Add(grpc2.NewHealthWorker(log, health, config.HealthPort))
	}
	supCtx, cancelSup := context.WithCancel(ctx)
	supDone := make(chan struct{})
	go func() {
		supervisor.Run(supCtx)
		close(supDone)
	}()
	defer func() {
		cancelSup()
		<-supDone
	}()

	if _, err := start(ctx, service); err != nil {
		return err
	}
	defer func() { _ = service.Leave(context.Background()) }()

	console := newConsole(service, timeline, printer)
	return console.Run(ctx, cmd.InOrStdin())
}
