package errors

import "fmt"

// Handshake and lifecycle failures returned synchronously by the queue service.
var (
	ErrAuthenticationFailed = fmt.Errorf("authentication failed")
	ErrConnectionTimeout    = fmt.Errorf("connection timeout")
	ErrAddressInUse         = fmt.Errorf("address in use")
	ErrHostUnreachable      = fmt.Errorf("host unreachable")
	ErrQueueNotActive       = fmt.Errorf("queue not active")
	ErrQueueAlreadyActive   = fmt.Errorf("queue already active")
	ErrInvalidRequest       = fmt.Errorf("invalid request")
)

// Connection-local failures. They tear down one link and never reach the coordinator's caller.
var (
	ErrFrameTooLarge      = fmt.Errorf("frame too large")
	ErrMalformedEnvelope  = fmt.Errorf("malformed envelope")
	ErrMemberDisconnected = fmt.Errorf("member disconnected")
	ErrSlowConsumer       = fmt.Errorf("slow consumer")
)

var (
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrInvalidPassword = fmt.Errorf("invalid password hash")
)
