// Package runtime runs the queue: the coordinator loop, member links, the
// host handshake gate and the broadcast fan-out.
//
// The Coordinator goroutine is the only writer of session and membership
// state. Link readers, the acceptor and the heartbeat worker submit commands
// over an unbuffered channel and never touch that state themselves.
package runtime

import (
	"clip-queue/contract"
	"clip-queue/dedup"
	"clip-queue/domain"
	"clip-queue/errors"
	"clip-queue/observability"
	"clip-queue/protocol"
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Session is the state a coordinator starts with.
type Session struct {
	Role      domain.Role
	Self      domain.Member
	QueueName string
	Host      string
	Port      int
}

type Coordinator struct {
	log        *slog.Logger
	cfg        Config
	codec      protocol.Codec
	notifier   contract.Notifier
	metrics    observability.Metrics
	self       domain.Member
	commands   chan command
	deliveries chan domain.ClipboardItem
	closing    chan struct{}
	stopped    chan struct{}
	links      sync.WaitGroup
	now        func() time.Time

	// Owned by the Run goroutine.
	session Session
	members *Registry
	remote  []domain.Member
	dedup   *dedup.Cache
}

func NewCoordinator(log *slog.Logger, cfg Config, session Session,
	notifier contract.Notifier, metrics observability.Metrics) *Coordinator {
	cfg = cfg.WithDefaults()
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &Coordinator{
		log:        log,
		cfg:        cfg,
		codec:      protocol.NewCodec(cfg.MaxFrameSize),
		notifier:   notifier,
		metrics:    metrics,
		self:       session.Self,
		commands:   make(chan command),
		deliveries: make(chan domain.ClipboardItem, cfg.BufferSize),
		closing:    make(chan struct{}),
		stopped:    make(chan struct{}),
		now:        time.Now,
		session:    session,
		members:    NewRegistry(),
		dedup:      dedup.New(cfg.DedupCapacity, cfg.DedupWindow),
	}
}

// AttachHost registers the client's single link to its host. It must be called before Run.
func (c *Coordinator) AttachHost(conn net.Conn, host domain.Member, members []domain.Member) {
	l := newLink(host.ID, conn, c.codec, c.cfg.OutboundQueueSize, c.cfg.WriteTimeout, c.log)
	c.members.Add(&member{Member: host, link: l, authenticated: true, lastHeartbeat: c.now()})
	c.remote = members
}

// Deliveries carries clipboard items that passed dedup, for the delivery worker.
func (c *Coordinator) Deliveries() <-chan domain.ClipboardItem {
	return c.deliveries
}

// Done is closed once Run has released every link.
func (c *Coordinator) Done() <-chan struct{} {
	return c.stopped
}

// Run applies commands serially until ctx is cancelled or, for a client, the host link is lost.
// In the latter case the returned error wraps ErrMemberDisconnected.
func (c *Coordinator) Run(ctx context.Context) error {
	defer c.teardown()

	for _, m := range c.members.All() {
		c.spawn(ctx, m.link)
	}
	c.metrics.MembersChanged(len(c.snapshot()))
	c.notifier.QueueStatus(c.status())
	c.notifier.QueueMembers(c.views())

	for {
		select {
		case <-ctx.Done():
			c.log.Debug("Context done, stopping coordinator")
			return nil
		case cmd := <-c.commands:
			if err := c.handle(ctx, cmd); err != nil {
				c.log.Warn("Queue session ended", "err", err)
				return err
			}
		}
	}
}

// Admit hands a socket whose Hello passed the password check to the coordinator.
// It reports false when the coordinator is gone; the caller then owns the socket.
func (c *Coordinator) Admit(ctx context.Context, conn net.Conn, proposed domain.MemberID, name string) bool {
	return c.submit(ctx, admit{conn: conn, proposed: proposed, memberName: name})
}

// Tick asks the coordinator to run one heartbeat round.
func (c *Coordinator) Tick(ctx context.Context) {
	c.submit(ctx, heartbeatTick{})
}

// Publish broadcasts a locally captured clipboard payload.
func (c *Coordinator) Publish(ctx context.Context, payload protocol.Payload) error {
	reply := make(chan error, 1)
	if !c.submit(ctx, publish{payload: payload, reply: reply}) {
		return errors.ErrQueueNotActive
	}
	return await(ctx, c.closing, reply, errors.ErrQueueNotActive)
}

func (c *Coordinator) Status(ctx context.Context) domain.QueueStatus {
	reply := make(chan domain.QueueStatus, 1)
	if !c.submit(ctx, statusQuery{reply: reply}) {
		return c.offStatus()
	}
	return await(ctx, c.closing, reply, c.offStatus())
}

func (c *Coordinator) Members(ctx context.Context) []domain.MemberView {
	reply := make(chan []domain.MemberView, 1)
	if !c.submit(ctx, membersQuery{reply: reply}) {
		return nil
	}
	return await(ctx, c.closing, reply, nil)
}

func await[T any](ctx context.Context, closing <-chan struct{}, reply <-chan T, fallback T) T {
	select {
	case v := <-reply:
		return v
	case <-ctx.Done():
	case <-closing:
	}
	select {
	case v := <-reply:
		return v
	default:
		return fallback
	}
}

func (c *Coordinator) submit(ctx context.Context, cmd command) bool {
	select {
	case c.commands <- cmd:
		return true
	case <-ctx.Done():
		return false
	case <-c.closing:
		return false
	}
}

func (c *Coordinator) spawn(ctx context.Context, l *link) {
	c.links.Add(2)
	go func() {
		defer c.links.Done()
		l.readLoop(ctx, c.submit)
	}()
	go func() {
		defer c.links.Done()
		l.writeLoop()
	}()
}

// handle returns an error only when the session must end.
func (c *Coordinator) handle(ctx context.Context, cmd command) error {
	switch cmd := cmd.(type) {
	case inbound:
		c.onInbound(ctx, cmd)
	case linkClosed:
		return c.onLinkClosed(cmd)
	case admit:
		c.onAdmit(ctx, cmd)
	case heartbeatTick:
		return c.onHeartbeat()
	case publish:
		cmd.reply <- c.onPublish(cmd.payload)
	case statusQuery:
		cmd.reply <- c.status()
	case membersQuery:
		cmd.reply <- c.views()
	default:
		c.log.Error("Unknown command", "command", cmd.name())
	}
	return nil
}

func (c *Coordinator) onInbound(ctx context.Context, cmd inbound) {
	m, ok := c.members.Get(cmd.from)
	if !ok {
		return
	}
	env := cmd.env
	c.metrics.EnvelopeReceived(string(env.Kind()))

	switch p := env.Payload.(type) {
	case protocol.Ping:
		c.enqueue(m, protocol.New(c.self.ID, protocol.Pong{}))
	case protocol.Pong:
		m.missedPongs = 0
		m.lastHeartbeat = c.now()
	case protocol.Text, protocol.Image:
		c.onClipboard(ctx, m, env)
	case protocol.MemberList:
		if c.session.Role != domain.RoleConnected {
			c.log.Warn("Ignoring member list from a member", "member_id", m.ID)
			return
		}
		c.remote = p.Members
		c.metrics.MembersChanged(len(p.Members))
		c.notifier.QueueMembers(c.views())
	default:
		c.log.Warn("Unexpected envelope on active link", "member_id", m.ID, "kind", env.Kind())
	}
}

// onClipboard is the dedup gate: a message id is delivered and relayed at most once.
func (c *Coordinator) onClipboard(ctx context.Context, from *member, env protocol.Envelope) {
	if c.dedup.Seen(env.MessageID) {
		c.metrics.DuplicateDropped()
		c.log.Debug("Duplicate clipboard event dropped", "message_id", env.MessageID, "member_id", from.ID)
		return
	}
	if env.SenderID == c.self.ID {
		return
	}
	c.deliver(ctx, env)
	if c.session.Role == domain.RoleHosting {
		c.relay(env, from.ID, env.SenderID)
	}
}

func (c *Coordinator) deliver(ctx context.Context, env protocol.Envelope) {
	item := domain.ClipboardItem{
		MessageID:  env.MessageID,
		SenderID:   env.SenderID,
		SenderName: c.nameOf(env.SenderID),
		Source:     domain.SourceLAN,
		CreatedAt:  env.CreatedAt,
		ReceivedAt: c.now().UTC(),
	}
	switch p := env.Payload.(type) {
	case protocol.Text:
		item.Kind = domain.ItemText
		item.Text = p.Content
	case protocol.Image:
		item.Kind = domain.ItemImage
		item.Image = p.Content
		item.MimeType = p.MimeType
		if item.MimeType == "" {
			item.MimeType = mimetype.Detect(p.Content).String()
		}
	}
	select {
	case c.deliveries <- item:
	case <-ctx.Done():
	}
}

func (c *Coordinator) onAdmit(ctx context.Context, cmd admit) {
	if c.session.Role != domain.RoleHosting {
		_ = cmd.conn.Close()
		return
	}
	id := cmd.proposed
	if id == "" || id == c.self.ID || c.members.Has(id) {
		id = domain.MemberID(uuid.NewString())
	}

	l := newLink(id, cmd.conn, c.codec, c.cfg.OutboundQueueSize, c.cfg.WriteTimeout, c.log)
	m := &member{
		Member:        domain.Member{ID: id, Name: cmd.memberName, Addr: cmd.conn.RemoteAddr().String()},
		link:          l,
		authenticated: true,
		lastHeartbeat: c.now(),
	}
	c.members.Add(m)

	// The ack is the first frame the new member reads: its queue is still empty.
	l.trySend(protocol.New(c.self.ID, protocol.HelloAck{
		SelfID:    id,
		QueueName: c.session.QueueName,
		Members:   c.snapshot(),
	}))
	c.spawn(ctx, l)
	c.log.Info("Member joined", "member_id", id, "name", cmd.memberName, "addr", m.Addr)

	c.membershipChanged(id)
}

func (c *Coordinator) onLinkClosed(cmd linkClosed) error {
	m, ok := c.members.Get(cmd.id)
	if !ok || m.link != cmd.link {
		return nil
	}
	if label, isFrame := frameErrorLabel(cmd.err); isFrame {
		c.metrics.FrameError(label)
	}
	return c.evict([]*member{m}, fmt.Errorf("%w: %w", errors.ErrMemberDisconnected, cmd.err))
}

func (c *Coordinator) onPublish(payload protocol.Payload) error {
	env := protocol.New(c.self.ID, payload)
	switch c.session.Role {
	case domain.RoleHosting:
		c.dedup.Seen(env.MessageID)
		c.relay(env)
		return nil
	case domain.RoleConnected:
		host, ok := c.host()
		if !ok {
			return errors.ErrQueueNotActive
		}
		c.dedup.Seen(env.MessageID)
		if !c.enqueue(host, env) {
			return fmt.Errorf("%w: host queue full", errors.ErrSlowConsumer)
		}
		return nil
	default:
		return errors.ErrQueueNotActive
	}
}

func (c *Coordinator) teardown() {
	close(c.closing)
	for _, m := range c.members.All() {
		m.link.close()
	}
	c.links.Wait()

	c.log.Debug("Dropping session state", "members", c.members.Len(), "dedup_entries", c.dedup.Len())
	c.members = NewRegistry()
	c.remote = nil
	c.dedup.Reset()
	c.session.Role = domain.RoleOff
	c.metrics.MembersChanged(0)
	c.notifier.QueueStatus(c.offStatus())
	c.notifier.QueueMembers([]domain.MemberView{})
	c.log.Info("Queue session torn down")
	close(c.stopped)
}

func (c *Coordinator) host() (*member, bool) {
	all := c.members.All()
	if len(all) == 0 {
		return nil, false
	}
	return all[0], true
}

func (c *Coordinator) status() domain.QueueStatus {
	return domain.QueueStatus{
		Role:      c.session.Role,
		Connected: c.session.Role.Active(),
		Host:      c.session.Host,
		Port:      c.session.Port,
		SelfID:    string(c.self.ID),
		SelfName:  c.self.Name,
		QueueName: c.session.QueueName,
	}
}

func (c *Coordinator) offStatus() domain.QueueStatus {
	return domain.OffStatus(string(c.self.ID), c.self.Name)
}

// snapshot is the member list as this process knows it, self included.
func (c *Coordinator) snapshot() []domain.Member {
	if c.session.Role == domain.RoleConnected {
		return c.remote
	}
	return c.members.Snapshot(c.self)
}

func (c *Coordinator) views() []domain.MemberView {
	views := domain.ToViews(c.snapshot(), c.self.ID)
	for i := range views {
		if seen, ok := c.members.LastSeen(views[i].ID); ok {
			views[i].LastSeen = lo.ToPtr(seen)
		}
	}
	return views
}

func (c *Coordinator) nameOf(id domain.MemberID) string {
	found, ok := lo.Find(c.snapshot(), func(m domain.Member) bool { return m.ID == id })
	if !ok {
		return ""
	}
	return found.Name
}

type nopNotifier struct{}

func (nopNotifier) QueueStatus(domain.QueueStatus)   {}
func (nopNotifier) QueueMembers([]domain.MemberView) {}
