package runtime

import (
	"clip-queue/domain"
	"clip-queue/errors"
	"clip-queue/protocol"
	stderrors "errors"
	"fmt"
	"io"
)

var errHeartbeatMissed = fmt.Errorf("%w: heartbeat missed", errors.ErrMemberDisconnected)

// relay enqueues env for every member but the excluded ones. A member whose
// queue stayed full for MaxQueueFullStreak attempts in a row is evicted.
func (c *Coordinator) relay(env protocol.Envelope, except ...domain.MemberID) int {
	sent := 0
	var slow []*member
	for _, m := range c.members.Others(except...) {
		if c.enqueue(m, env) {
			sent++
			continue
		}
		if m.fullStreak >= c.cfg.MaxQueueFullStreak {
			slow = append(slow, m)
		}
	}
	c.metrics.Relayed(string(env.Kind()), sent)
	if len(slow) > 0 {
		_ = c.evict(slow, errors.ErrSlowConsumer)
	}
	return sent
}

func (c *Coordinator) enqueue(m *member, env protocol.Envelope) bool {
	if m.link.trySend(env) {
		m.fullStreak = 0
		return true
	}
	m.fullStreak++
	c.log.Debug("Outbound queue full", "member_id", m.ID, "kind", env.Kind(), "streak", m.fullStreak)
	return false
}

// evict removes members and closes their links. For a client the only
// member is the host, so losing it ends the session.
func (c *Coordinator) evict(ms []*member, reason error) error {
	for _, m := range ms {
		c.members.Remove(m.ID)
		m.link.close()
		c.metrics.MemberDisconnected(disconnectLabel(reason))
		c.log.Info("Member removed", "member_id", m.ID, "name", m.Name, "reason", reason)
	}
	if c.session.Role == domain.RoleConnected {
		return fmt.Errorf("%w: host link lost: %v", errors.ErrMemberDisconnected, reason)
	}
	c.membershipChanged()
	return nil
}

// membershipChanged pushes the new member list to every member but the
// excluded ones, then to the local notifier.
func (c *Coordinator) membershipChanged(except ...domain.MemberID) {
	list := c.snapshot()
	env := protocol.New(c.self.ID, protocol.MemberList{Members: list})
	for _, m := range c.members.Others(except...) {
		c.enqueue(m, env)
	}
	c.metrics.MembersChanged(len(list))
	c.notifier.QueueMembers(c.views())
}

func (c *Coordinator) onHeartbeat() error {
	if c.members.Len() == 0 {
		return nil
	}
	ping := protocol.New(c.self.ID, protocol.Ping{})
	var dead, slow []*member
	for _, m := range c.members.All() {
		if m.missedPongs >= c.cfg.MaxMissedPongs {
			dead = append(dead, m)
			continue
		}
		m.missedPongs++
		if !c.enqueue(m, ping) && c.session.Role == domain.RoleHosting && m.fullStreak >= c.cfg.MaxQueueFullStreak {
			slow = append(slow, m)
		}
	}
	if len(dead) > 0 {
		if err := c.evict(dead, errHeartbeatMissed); err != nil {
			return err
		}
	}
	if len(slow) > 0 {
		return c.evict(slow, errors.ErrSlowConsumer)
	}
	return nil
}

func disconnectLabel(reason error) string {
	switch {
	case stderrors.Is(reason, errHeartbeatMissed):
		return "heartbeat"
	case stderrors.Is(reason, errors.ErrSlowConsumer):
		return "slow_consumer"
	case stderrors.Is(reason, errors.ErrFrameTooLarge), stderrors.Is(reason, errors.ErrMalformedEnvelope):
		return "protocol"
	default:
		return "closed"
	}
}

func frameErrorLabel(err error) (string, bool) {
	switch {
	case stderrors.Is(err, errors.ErrFrameTooLarge):
		return "frame_too_large", true
	case stderrors.Is(err, errors.ErrMalformedEnvelope):
		return "malformed", true
	case stderrors.Is(err, io.ErrUnexpectedEOF):
		return "truncated", true
	default:
		return "", false
	}
}
