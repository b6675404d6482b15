package transport

import (
	"context"
	"runtime"

	"github.com/mklimuk/pn532"
)

var _ pn532.AsyncInterface = &AsyncI2CInterface{}

// AsyncI2CInterface absorbs the readiness loop: WaitReady keeps reading the
// status byte until the PN532 reports ready or the bus fails.
//
// The loop adds no delay and does not watch ctx itself. Cancellation only
// takes effect when the bus returns an error for a done context, and leaves
// the device mid-exchange.
type AsyncI2CInterface struct {
	bus pn532.I2CBus
}

func NewAsyncI2CInterface(bus pn532.I2CBus) *AsyncI2CInterface {
	return &AsyncI2CInterface{bus: bus}
}

func (i *AsyncI2CInterface) Write(ctx context.Context, frame []byte) error {
	return write(ctx, i.bus, frame)
}

func (i *AsyncI2CInterface) WaitReady(ctx context.Context) error {
	for {
		ready, err := pollStatus(ctx, i.bus)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		runtime.Gosched()
	}
}

func (i *AsyncI2CInterface) Read(ctx context.Context, buf []byte) error {
	return read(ctx, i.bus, buf)
}
