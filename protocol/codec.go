package protocol

import (
	"bytes"
	"clip-queue/domain"
	"clip-queue/errors"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
)

// DefaultMaxFrameSize bounds a single frame body, large enough for a screenshot.
const DefaultMaxFrameSize = 16 << 20

// MaxHelloFrameSize bounds the first frame of an unauthenticated peer.
const MaxHelloFrameSize = 64 << 10

const headerSize = 4

type wireEnvelope struct {
	Kind      Kind            `json:"kind"`
	MessageID string          `json:"message_id"`
	SenderID  domain.MemberID `json:"sender_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Body      json.RawMessage `json:"body,omitempty"`
}

// Encode renders an envelope as the UTF-8 JSON body of a frame.
func Encode(env Envelope) ([]byte, error) {
	if env.Payload == nil {
		return nil, fmt.Errorf("%w: missing payload", errors.ErrMalformedEnvelope)
	}
	if !validUTF8(env) {
		return nil, fmt.Errorf("%w: %s carries invalid UTF-8", errors.ErrMalformedEnvelope, env.Payload.Kind())
	}
	body, err := json.Marshal(env.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{
		Kind:      env.Payload.Kind(),
		MessageID: env.MessageID,
		SenderID:  env.SenderID,
		CreatedAt: env.CreatedAt,
		Body:      body,
	})
}

// validUTF8 checks every string the envelope carries: json.Marshal would
// otherwise replace bad bytes with U+FFFD and peers would get altered text.
func validUTF8(env Envelope) bool {
	strs := []string{env.MessageID, string(env.SenderID)}
	switch p := env.Payload.(type) {
	case Hello:
		strs = append(strs, p.Password, p.MemberName)
	case HelloAck:
		strs = append(strs, string(p.SelfID), p.QueueName)
		strs = append(strs, memberStrings(p.Members)...)
	case HelloReject:
		strs = append(strs, p.Reason)
	case MemberList:
		strs = append(strs, memberStrings(p.Members)...)
	case Text:
		strs = append(strs, p.Content)
	case Image:
		strs = append(strs, p.MimeType)
	}
	return lo.EveryBy(strs, utf8.ValidString)
}

func memberStrings(members []domain.Member) []string {
	return lo.FlatMap(members, func(m domain.Member, _ int) []string {
		return []string{string(m.ID), m.Name, m.Addr}
	})
}

// Decode parses a frame body. Anything that is not a known, well-formed kind
// is reported as ErrMalformedEnvelope.
func Decode(data []byte) (Envelope, error) {
	if !utf8.Valid(data) {
		return Envelope{}, fmt.Errorf("%w: body is not UTF-8", errors.ErrMalformedEnvelope)
	}
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", errors.ErrMalformedEnvelope, err)
	}
	if wire.MessageID == "" {
		return Envelope{}, fmt.Errorf("%w: missing message_id", errors.ErrMalformedEnvelope)
	}

	payload, err := decodePayload(wire.Kind, wire.Body)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		MessageID: wire.MessageID,
		SenderID:  wire.SenderID,
		CreatedAt: wire.CreatedAt,
		Payload:   payload,
	}, nil
}

func decodePayload(kind Kind, body json.RawMessage) (Payload, error) {
	switch kind {
	case KindHello:
		return unmarshalBody[Hello](kind, body)
	case KindHelloAck:
		return unmarshalBody[HelloAck](kind, body)
	case KindHelloReject:
		return unmarshalBody[HelloReject](kind, body)
	case KindMemberList:
		return unmarshalBody[MemberList](kind, body)
	case KindPing:
		return unmarshalBody[Ping](kind, body)
	case KindPong:
		return unmarshalBody[Pong](kind, body)
	case KindText:
		return unmarshalBody[Text](kind, body)
	case KindImage:
		return unmarshalBody[Image](kind, body)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", errors.ErrMalformedEnvelope, kind)
	}
}

func unmarshalBody[T Payload](kind Kind, body json.RawMessage) (Payload, error) {
	var p T
	if len(body) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %s body: %v", errors.ErrMalformedEnvelope, kind, err)
	}
	return p, nil
}

// ReadFrame reads one length-prefixed frame. A clean close before the header yields io.EOF.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size == 0 {
		return nil, fmt.Errorf("%w: empty frame", errors.ErrMalformedEnvelope)
	}
	if uint64(size) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", errors.ErrFrameTooLarge, size, maxSize)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteFrame writes the header and body with a single Write call.
func WriteFrame(w io.Writer, body []byte, maxSize int) error {
	if len(body) > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", errors.ErrFrameTooLarge, len(body), maxSize)
	}
	var buf bytes.Buffer
	buf.Grow(headerSize + len(body))
	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	buf.Write(header[:])
	buf.Write(body)
	_, err := w.Write(buf.Bytes())
	return err
}

// Codec binds the framing helpers to a maximum frame size.
type Codec struct {
	MaxFrameSize int
}

func NewCodec(maxFrameSize int) Codec {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return Codec{MaxFrameSize: maxFrameSize}
}

func (c Codec) Read(r io.Reader) (Envelope, error) {
	body, err := ReadFrame(r, c.MaxFrameSize)
	if err != nil {
		return Envelope{}, err
	}
	return Decode(body)
}

func (c Codec) Write(w io.Writer, env Envelope) error {
	body, err := Encode(env)
	if err != nil {
		return err
	}
	return WriteFrame(w, body, c.MaxFrameSize)
}
