// Package transport implements the PN532 I2C links: status-byte polling,
// IRQ-pin sampling and a blocking poll loop. All three move frames the same
// way and differ only in how readiness is detected.
package transport

import (
	"context"

	"github.com/mklimuk/pn532"
)

var _ pn532.Interface = &I2CInterface{}

// I2CInterface detects readiness by reading the PN532 status byte.
type I2CInterface struct {
	bus pn532.I2CBus
}

func NewI2CInterface(bus pn532.I2CBus) *I2CInterface {
	return &I2CInterface{bus: bus}
}

func (i *I2CInterface) Write(ctx context.Context, frame []byte) error {
	return write(ctx, i.bus, frame)
}

// WaitReady reads one status byte. A bus failure is returned as Ready with the
// error so that callers stop polling.
func (i *I2CInterface) WaitReady(ctx context.Context) (pn532.Poll, error) {
	ready, err := pollStatus(ctx, i.bus)
	if err != nil {
		return pn532.Ready, err
	}
	if ready {
		return pn532.Ready, nil
	}
	return pn532.Pending, nil
}

func (i *I2CInterface) Read(ctx context.Context, buf []byte) error {
	return read(ctx, i.bus, buf)
}

func write(ctx context.Context, bus pn532.AddressableWriter, frame []byte) error {
	return bus.WriteToAddr(ctx, pn532.DeviceAddress, frame)
}

func pollStatus(ctx context.Context, bus pn532.AddressableReader) (bool, error) {
	var status [1]byte
	if err := bus.ReadFromAddr(ctx, pn532.DeviceAddress, status[:]); err != nil {
		return false, err
	}
	return status[0] == pn532.ReadySentinel, nil
}

// read runs the framing byte and the payload in one transaction so nothing
// else on the bus can get in between.
func read(ctx context.Context, bus pn532.Transactor, buf []byte) error {
	var framing [1]byte
	return bus.Exec(ctx, pn532.DeviceAddress, []pn532.Operation{
		pn532.ReadOp(framing[:]),
		pn532.ReadOp(buf),
	})
}
