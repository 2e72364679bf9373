// Package protocol defines the queue wire messages and their framing.
//
// Every message is an Envelope whose Payload is exactly one of the kinds
// declared here. Payloads are decoded once at the codec boundary; the rest of
// the code switches on the concrete type.
package protocol

import (
	"clip-queue/domain"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindHello       Kind = "hello"
	KindHelloAck    Kind = "hello_ack"
	KindHelloReject Kind = "hello_reject"
	KindMemberList  Kind = "member_list"
	KindPing        Kind = "ping"
	KindPong        Kind = "pong"
	KindText        Kind = "text"
	KindImage       Kind = "image"
)

// RejectInvalidPassword is the only reject reason a host sends today.
const RejectInvalidPassword = "invalid_password"

type Payload interface {
	Kind() Kind
}

type Hello struct {
	Password   string `json:"password"`
	MemberName string `json:"member_name,omitempty"`
}

type HelloAck struct {
	SelfID    domain.MemberID `json:"self_id"`
	QueueName string          `json:"queue_name"`
	Members   []domain.Member `json:"members"`
}

type HelloReject struct {
	Reason string `json:"reason"`
}

type MemberList struct {
	Members []domain.Member `json:"members"`
}

type Ping struct{}

type Pong struct{}

type Text struct {
	Content string `json:"content"`
}

// Image carries raw bytes; JSON encodes them as base64 so the body stays UTF-8.
type Image struct {
	Content  []byte `json:"content_encoded"`
	MimeType string `json:"mime_type,omitempty"`
}

func (Hello) Kind() Kind       { return KindHello }
func (HelloAck) Kind() Kind    { return KindHelloAck }
func (HelloReject) Kind() Kind { return KindHelloReject }
func (MemberList) Kind() Kind  { return KindMemberList }
func (Ping) Kind() Kind        { return KindPing }
func (Pong) Kind() Kind        { return KindPong }
func (Text) Kind() Kind        { return KindText }
func (Image) Kind() Kind       { return KindImage }

// Envelope is one framed protocol message. Its identity for dedup is MessageID alone.
type Envelope struct {
	MessageID string
	SenderID  domain.MemberID
	CreatedAt time.Time
	Payload   Payload
}

// New stamps a payload with a fresh message id and the current UTC time.
func New(sender domain.MemberID, payload Payload) Envelope {
	return Envelope{
		MessageID: uuid.NewString(),
		SenderID:  sender,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
}

func (e Envelope) Kind() Kind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

// IsClipboard reports whether the envelope carries a clipboard event subject to dedup and relay.
func (e Envelope) IsClipboard() bool {
	switch e.Payload.(type) {
	case Text, Image:
		return true
	default:
		return false
	}
}
