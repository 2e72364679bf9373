package services

import (
	"clip-queue/auth"
	"clip-queue/contract"
	"clip-queue/domain"
	"clip-queue/domain/mimetypes"
	"clip-queue/errors"
	"clip-queue/observability"
	"clip-queue/protocol"
	"clip-queue/runtime"
	"clip-queue/runtime/workers"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	DefaultPort      = 21991
	DefaultQueueName = "default"

	// envelopeOverhead bounds the JSON header around an encoded image.
	envelopeOverhead = 512
)

type IQueueService interface {
	StartHost(ctx context.Context, req auth.HostRequest) (domain.QueueStatus, error)
	Join(ctx context.Context, req auth.JoinRequest) (domain.QueueStatus, error)
	Leave(ctx context.Context) error
	Status() domain.QueueStatus
	Members() []domain.MemberView
	PublishText(ctx context.Context, content string) error
	PublishImage(ctx context.Context, data []byte) error
}

// QueueService owns at most one queue activation at a time, as host or as client.
type QueueService struct {
	log      *slog.Logger
	cfg      runtime.Config
	notifier contract.Notifier
	metrics  observability.Metrics
	bridges  []contract.ClipboardBridge
	selfID   domain.MemberID
	selfName string

	// opMu serializes StartHost, Join and Leave.
	opMu    sync.Mutex
	stateMu sync.RWMutex
	active  *activation
	joining bool
}

type activation struct {
	coordinator *runtime.Coordinator
	listener    net.Listener
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewQueueService(log *slog.Logger, cfg runtime.Config, notifier contract.Notifier,
	metrics observability.Metrics, bridges ...contract.ClipboardBridge) *QueueService {
	if notifier == nil {
		notifier = MuteNotifier{}
	}
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "clipqueue"
	}
	return &QueueService{
		log:      log,
		cfg:      cfg.WithDefaults(),
		notifier: notifier,
		metrics:  metrics,
		bridges:  bridges,
		selfID:   domain.MemberID(uuid.NewString()),
		selfName: name,
	}
}

// StartHost binds the port and starts accepting members.
func (s *QueueService) StartHost(ctx context.Context, req auth.HostRequest) (domain.QueueStatus, error) {
	if err := auth.ValidateHost(req); err != nil {
		return s.Status(), err
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.current() != nil {
		return s.Status(), errors.ErrQueueAlreadyActive
	}

	verifier, err := auth.NewVerifier(req.Password, s.cfg.PasswordParams)
	if err != nil {
		return s.Status(), fmt.Errorf("hashing queue password: %w", err)
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", req.Port))
	if err != nil {
		return s.Status(), fmt.Errorf("%w: port %d: %v", errors.ErrAddressInUse, req.Port, err)
	}

	port := ln.Addr().(*net.TCPAddr).Port
	host, _ := os.Hostname()
	coordinator := runtime.NewCoordinator(s.log, s.cfg, runtime.Session{
		Role:      domain.RoleHosting,
		Self:      domain.Member{ID: s.selfID, Name: s.name(req.MemberName), Addr: ln.Addr().String()},
		QueueName: lo.CoalesceOrEmpty(req.QueueName, DefaultQueueName),
		Host:      host,
		Port:      port,
	}, s.notifier, s.metrics)
	gate := runtime.NewGate(s.log, coordinator, verifier, s.cfg, s.metrics)

	s.launch(coordinator, ln, gate)
	s.log.Info("Hosting queue", "port", port, "queue", lo.CoalesceOrEmpty(req.QueueName, DefaultQueueName))
	return coordinator.Status(ctx), nil
}

// Join connects to a host and completes the handshake before returning.
// On any failure the service is back to Off and membership was never touched.
func (s *QueueService) Join(ctx context.Context, req auth.JoinRequest) (domain.QueueStatus, error) {
	if err := auth.ValidateJoin(req); err != nil {
		return s.Status(), err
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.current() != nil {
		return s.Status(), errors.ErrQueueAlreadyActive
	}

	s.setJoining(true)
	s.notifier.QueueStatus(s.Status())

	name := s.name(req.MemberName)
	addr := net.JoinHostPort(req.Host, strconv.Itoa(req.Port))
	var (
		conn net.Conn
		ack  protocol.HelloAck
		err  error
	)
	if len(req.Password) > auth.MaxPasswordLength {
		err = fmt.Errorf("%w: password longer than any host accepts", errors.ErrAuthenticationFailed)
	} else {
		conn, ack, err = runtime.Dial(ctx, addr, s.selfID, protocol.Hello{Password: req.Password, MemberName: name}, s.cfg)
	}
	s.setJoining(false)
	if err != nil {
		s.log.Warn("Could not join queue", "addr", addr, "err", err)
		off := s.Status()
		s.notifier.QueueStatus(off)
		return off, err
	}

	host := lo.FirstOr(ack.Members, domain.Member{})
	host.Addr = conn.RemoteAddr().String()
	coordinator := runtime.NewCoordinator(s.log, s.cfg, runtime.Session{
		Role:      domain.RoleConnected,
		Self:      domain.Member{ID: ack.SelfID, Name: name, Addr: conn.LocalAddr().String()},
		QueueName: ack.QueueName,
		Host:      req.Host,
		Port:      req.Port,
	}, s.notifier, s.metrics)
	coordinator.AttachHost(conn, host, ack.Members)

	s.launch(coordinator, nil, nil)
	s.log.Info("Joined queue", "addr", addr, "queue", ack.QueueName, "self_id", ack.SelfID)
	return coordinator.Status(ctx), nil
}

// launch starts the coordinator and the supervised workers of one activation.
func (s *QueueService) launch(coordinator *runtime.Coordinator, ln net.Listener, gate workers.ConnHandler) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &activation{coordinator: coordinator, listener: ln, cancel: cancel, done: make(chan struct{})}

	supervisor := workers.NewSupervisor(s.log, s.cfg.RestartInterval)
	supervisor.Add(
		workers.NewDeliveryWorker(s.log, coordinator.Deliveries(), s.cfg.SinkTimeout, s.bridges...),
		workers.NewHeartbeatWorker(s.log, coordinator, s.cfg.HeartbeatInterval),
	)
	if ln != nil {
		supervisor.Add(workers.NewAcceptor(s.log, ln, gate))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		supervisor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := coordinator.Run(ctx); err != nil {
			s.log.Warn("Queue lost, back to off", "err", err)
			cancel()
			go func() {
				<-a.done
				s.clear(a)
			}()
		}
	}()
	go func() {
		wg.Wait()
		close(a.done)
	}()

	s.stateMu.Lock()
	s.active = a
	s.stateMu.Unlock()
}

// Leave tears the activation down and returns once every goroutine has exited.
// It never fails and is a no-op when already off.
func (s *QueueService) Leave(_ context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	a := s.current()
	if a == nil {
		return nil
	}
	a.cancel()
	if a.listener != nil {
		_ = a.listener.Close()
	}
	<-a.done
	s.clear(a)
	s.log.Info("Left queue")
	return nil
}

func (s *QueueService) Status() domain.QueueStatus {
	s.stateMu.RLock()
	a, joining := s.active, s.joining
	s.stateMu.RUnlock()

	if a != nil {
		return a.coordinator.Status(context.Background())
	}
	status := domain.OffStatus(string(s.selfID), s.selfName)
	if joining {
		status.Role = domain.RoleJoining
	}
	return status
}

func (s *QueueService) Members() []domain.MemberView {
	if a := s.current(); a != nil {
		return a.coordinator.Members(context.Background())
	}
	return []domain.MemberView{}
}

func (s *QueueService) PublishText(ctx context.Context, content string) error {
	a := s.current()
	if a == nil {
		return errors.ErrQueueNotActive
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("%w: text is not valid UTF-8", errors.ErrInvalidRequest)
	}
	return a.coordinator.Publish(ctx, protocol.Text{Content: content})
}

// PublishImage broadcasts image bytes; the MIME type is sniffed from the content.
func (s *QueueService) PublishImage(ctx context.Context, data []byte) error {
	a := s.current()
	if a == nil {
		return errors.ErrQueueNotActive
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty image", errors.ErrInvalidRequest)
	}
	mime, ok := mimetypes.DetectImage(data)
	if !ok {
		return fmt.Errorf("%w: content is not an image", errors.ErrInvalidRequest)
	}
	if size := base64.StdEncoding.EncodedLen(len(data)) + envelopeOverhead; size > s.cfg.MaxFrameSize {
		return fmt.Errorf("%w: image needs %d bytes, limit is %d", errors.ErrFrameTooLarge, size, s.cfg.MaxFrameSize)
	}
	return a.coordinator.Publish(ctx, protocol.Image{Content: data, MimeType: string(mime)})
}

// current returns the live activation. One whose coordinator already stopped,
// after losing its host, is waited for and forgotten.
func (s *QueueService) current() *activation {
	s.stateMu.RLock()
	a := s.active
	s.stateMu.RUnlock()
	if a == nil {
		return nil
	}
	select {
	case <-a.coordinator.Done():
		<-a.done
		s.clear(a)
		return nil
	default:
		return a
	}
}

func (s *QueueService) setJoining(joining bool) {
	s.stateMu.Lock()
	s.joining = joining
	s.stateMu.Unlock()
}

// clear forgets a finished activation unless a newer one already replaced it.
func (s *QueueService) clear(a *activation) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.active == a {
		s.active = nil
	}
}

func (s *QueueService) name(requested string) string {
	return lo.CoalesceOrEmpty(requested, s.selfName)
}

// MuteNotifier drops every notification.
type MuteNotifier struct{}

func (MuteNotifier) QueueStatus(domain.QueueStatus)   {}
func (MuteNotifier) QueueMembers([]domain.MemberView) {}
