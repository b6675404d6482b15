package transport

import (
	"context"

	"periph.io/x/conn/v3/gpio"

	"github.com/mklimuk/pn532"
)

var _ pn532.Interface = &I2CInterfaceWithIRQ{}

// I2CInterfaceWithIRQ detects readiness by sampling the active-low IRQ line.
// Frames still travel over the bus.
type I2CInterfaceWithIRQ struct {
	bus pn532.I2CBus
	irq pn532.IRQPin
}

func NewI2CInterfaceWithIRQ(bus pn532.I2CBus, irq pn532.IRQPin) *I2CInterfaceWithIRQ {
	return &I2CInterfaceWithIRQ{bus: bus, irq: irq}
}

func (i *I2CInterfaceWithIRQ) Write(ctx context.Context, frame []byte) error {
	return write(ctx, i.bus, frame)
}

func (i *I2CInterfaceWithIRQ) WaitReady(ctx context.Context) (pn532.Poll, error) {
	if i.irq.Read() == gpio.Low {
		return pn532.Ready, nil
	}
	return pn532.Pending, nil
}

func (i *I2CInterfaceWithIRQ) Read(ctx context.Context, buf []byte) error {
	return read(ctx, i.bus, buf)
}
