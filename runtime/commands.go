package runtime

import (
	"clip-queue/domain"
	"clip-queue/protocol"
	"net"
)

// command is anything submitted to the coordinator loop.
// Connection goroutines only ever talk to shared state through these.
type command interface {
	name() string
}

// inbound is a decoded envelope read from an active link.
type inbound struct {
	from domain.MemberID
	env  protocol.Envelope
}

// linkClosed reports the end of a link's reader, whatever the cause.
type linkClosed struct {
	id   domain.MemberID
	link *link
	err  error
}

// admit hands an authenticated socket over to the coordinator.
type admit struct {
	conn       net.Conn
	proposed   domain.MemberID
	memberName string
}

type heartbeatTick struct{}

type publish struct {
	payload protocol.Payload
	reply   chan error
}

type statusQuery struct {
	reply chan domain.QueueStatus
}

type membersQuery struct {
	reply chan []domain.MemberView
}

func (inbound) name() string       { return "inbound" }
func (linkClosed) name() string    { return "link_closed" }
func (admit) name() string         { return "admit" }
func (heartbeatTick) name() string { return "heartbeat_tick" }
func (publish) name() string       { return "publish" }
func (statusQuery) name() string   { return "status_query" }
func (membersQuery) name() string  { return "members_query" }
