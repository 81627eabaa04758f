// Package notify delivers one-time codes and reset links out of band.
package notify

import (
	"context"
	"errors"
	"time"
)

// Kind selects the message template.
type Kind string

// Supported kinds.
const (
	KindOTP           Kind = "otp"
	KindPasswordReset Kind = "password_reset"
)

// Payload carries the values rendered into a message.
type Payload struct {
	Name      string
	Code      string
	Purpose   string
	Link      string
	ExpiresIn time.Duration
}

// ErrDeliveryFailed indicates the message could not be handed off.
var ErrDeliveryFailed = errors.New("notify: delivery failed")

// Notifier delivers a payload to an address.
type Notifier interface {
	Deliver(ctx context.Context, address string, kind Kind, payload Payload) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, address string, kind Kind, payload Payload) error

// Deliver calls f.
func (f NotifierFunc) Deliver(ctx context.Context, address string, kind Kind, payload Payload) error {
	return f(ctx, address, kind, payload)
}
