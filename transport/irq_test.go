package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/mklimuk/pn532"
)

func TestI2CInterfaceWithIRQ_WaitReady(t *testing.T) {
	bus := new(MockI2CBus)
	irq := &gpiotest.Pin{N: "IRQ", L: gpio.High}
	link := NewI2CInterfaceWithIRQ(bus, irq)
	ctx := context.Background()

	p, err := link.WaitReady(ctx)
	assert.NoError(t, err)
	assert.Equal(t, pn532.Pending, p)

	irq.L = gpio.Low
	p, err = link.WaitReady(ctx)
	assert.NoError(t, err)
	assert.Equal(t, pn532.Ready, p)

	// readiness never goes through the bus
	bus.AssertNotCalled(t, "ReadFromAddr", mock.Anything, mock.Anything, mock.Anything)
}

func TestI2CInterfaceWithIRQ_Exchange(t *testing.T) {
	frame := []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x02, 0x2A, 0x00}
	bus := new(MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, byte(pn532.DeviceAddress), frame).Return(nil).Once()
	bus.On("Exec", mock.Anything, byte(pn532.DeviceAddress), framedRead(4)).
		Return([]byte{0xFF, 0x01, 0x02, 0x03, 0x04}, nil).Once()
	link := NewI2CInterfaceWithIRQ(bus, &gpiotest.Pin{N: "IRQ", L: gpio.Low})
	ctx := context.Background()

	assert.NoError(t, link.Write(ctx, frame))
	buf := make([]byte, 4)
	assert.NoError(t, link.Read(ctx, buf))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf)
	bus.AssertExpectations(t)
}

func TestI2CInterfaceWithIRQ_ErrorIdentity(t *testing.T) {
	busErr := errors.New("i2c write failed")
	bus := new(MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, byte(pn532.DeviceAddress), mock.Anything).Return(busErr).Once()
	bus.On("Exec", mock.Anything, byte(pn532.DeviceAddress), mock.Anything).Return(nil, busErr).Once()
	link := NewI2CInterfaceWithIRQ(bus, &gpiotest.Pin{N: "IRQ", L: gpio.High})
	ctx := context.Background()

	assert.Same(t, busErr, link.Write(ctx, []byte{0x01}))
	assert.Same(t, busErr, link.Read(ctx, make([]byte, 1)))
	bus.AssertExpectations(t)
}
