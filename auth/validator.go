package auth

import (
	"clip-queue/errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// MaxPasswordLength is the longest password a host accepts.
const MaxPasswordLength = 256

// HostRequest are the start_host arguments. Port 0 asks for an ephemeral port.
type HostRequest struct {
	Port       int    `validate:"gte=0,lte=65535"`
	Password   string `validate:"required,max=256"`
	QueueName  string `validate:"max=64"`
	MemberName string `validate:"max=64"`
}

// JoinRequest leaves Password unchecked: a wrong, empty or overlong one is an
// authentication failure, not an invalid request.
type JoinRequest struct {
	Host       string `validate:"required,hostname_rfc1123|ip"`
	Port       int    `validate:"required,gte=1,lte=65535"`
	Password   string
	MemberName string `validate:"max=64"`
}

func ValidateHost(req HostRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}
	return nil
}

func ValidateJoin(req JoinRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}
	return nil
}
