package gpio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"periph.io/x/conn/v3/gpio"
)

type levelFunc func(ctx context.Context) (gpio.Level, error)

func (f levelFunc) ReadLevel(ctx context.Context) (gpio.Level, error) {
	return f(ctx)
}

func TestFailFast_Levels(t *testing.T) {
	level := gpio.High
	pin := NewFailFast("irq", levelFunc(func(ctx context.Context) (gpio.Level, error) { return level, nil }))
	assert.Equal(t, gpio.High, pin.Read())
	level = gpio.Low
	assert.Equal(t, gpio.Low, pin.Read())
}

func TestFailFast_PanicsOnError(t *testing.T) {
	pin := NewFailFast("irq", levelFunc(func(ctx context.Context) (gpio.Level, error) {
		return gpio.High, errors.New("adapter gone")
	}))
	assert.PanicsWithValue(t, "irq pin irq: read failed: adapter gone", func() { pin.Read() })
}

type fakeDigital map[string]int

func (f fakeDigital) DigitalRead(pin string) (int, error) {
	v, ok := f[pin]
	if !ok {
		return 0, errors.New("no such pin")
	}
	return v, nil
}

func TestDigitalPin(t *testing.T) {
	pins := fakeDigital{"7": 1}
	p := NewDigitalPin(pins, "7")
	l, err := p.ReadLevel(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, gpio.High, l)

	pins["7"] = 0
	l, err = p.ReadLevel(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, gpio.Low, l)

	_, err = NewDigitalPin(pins, "8").ReadLevel(context.Background())
	assert.Error(t, err)
}

func TestExpanderPin(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("Exec", mock.Anything, byte(DefaultMCP23017Address), mock.Anything).
		Return([]byte{0b00000100}, nil).Once()
	bus.On("Exec", mock.Anything, byte(DefaultMCP23017Address), mock.Anything).
		Return([]byte{0b11111011}, nil).Once()
	exp := NewMCP23017(bus, DefaultMCP23017Address)
	irq := NewFailFast("irq", exp.Pin(PortB, 2))

	assert.Equal(t, gpio.High, irq.Read())
	assert.Equal(t, gpio.Low, irq.Read())
	bus.AssertExpectations(t)
}
