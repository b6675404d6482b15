package pn532

import (
	"context"

	"periph.io/x/conn/v3/gpio"
)

// Poll is the outcome of a non-blocking readiness check.
type Poll int

const (
	// Pending means the response is not available yet; check again later.
	Pending Poll = iota
	// Ready means the check completed. It is paired with a nil error when a
	// response is available and with the bus error when the check failed.
	Ready
)

func (p Poll) String() string {
	if p == Ready {
		return "ready"
	}
	return "pending"
}

// Interface exchanges opaque frames with the PN532.
//
// WaitReady never blocks beyond one bus transaction: callers own the retry
// cadence, timeouts and cancellation policy. Read fills buf with the payload
// that follows the framing byte.
type Interface interface {
	Write(ctx context.Context, frame []byte) error
	WaitReady(ctx context.Context) (Poll, error)
	Read(ctx context.Context, buf []byte) error
}

// AsyncInterface is the blocking flavour of Interface: WaitReady returns only
// once the device reported ready or the bus failed.
type AsyncInterface interface {
	Write(ctx context.Context, frame []byte) error
	WaitReady(ctx context.Context) error
	Read(ctx context.Context, buf []byte) error
}

// IRQPin is the PN532 interrupt line. It is active-low and has no error
// channel; periph gpio.PinIn satisfies it.
type IRQPin interface {
	Read() gpio.Level
}
