package gpio

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/pn532"
)

// Open configures the named host pin (e.g. "GPIO17") as an input with pull-up,
// ready to be sampled as the PN532 IRQ line.
func Open(name string) (gpio.PinIn, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("unknown pin %q", name)
	}
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("could not configure %s as input: %w", name, err)
	}
	return pin, nil
}

// LevelReader is a pin whose reads can fail, such as an expander bit or a USB
// adapter GP pin.
type LevelReader interface {
	ReadLevel(ctx context.Context) (gpio.Level, error)
}

var _ pn532.IRQPin = &FailFast{}

// FailFast turns a fallible level source into an IRQ pin. A failed read is an
// unrecoverable condition and panics; it is never reported as "not ready".
type FailFast struct {
	src  LevelReader
	name string
}

func NewFailFast(name string, src LevelReader) *FailFast {
	return &FailFast{src: src, name: name}
}

func (p *FailFast) Read() gpio.Level {
	l, err := p.src.ReadLevel(context.Background())
	if err != nil {
		panic(fmt.Sprintf("irq pin %s: read failed: %v", p.name, err))
	}
	return l
}

func (p *FailFast) String() string {
	return p.name
}

// DigitalReader matches gobot adaptors with digital pins (e.g. NanoPi).
type DigitalReader interface {
	DigitalRead(pin string) (int, error)
}

// DigitalPin reads a gobot digital pin as a level.
type DigitalPin struct {
	reader DigitalReader
	pin    string
}

func NewDigitalPin(reader DigitalReader, pin string) *DigitalPin {
	return &DigitalPin{reader: reader, pin: pin}
}

func (p *DigitalPin) ReadLevel(ctx context.Context) (gpio.Level, error) {
	v, err := p.reader.DigitalRead(p.pin)
	if err != nil {
		return gpio.Low, err
	}
	return gpio.Level(v != 0), nil
}

func (p *DigitalPin) String() string {
	return "gobot/" + p.pin
}

// ExpanderPin is one input bit of an MCP23017 port.
type ExpanderPin struct {
	exp  *MCP23017
	port Port
	bit  uint
}

func (m *MCP23017) Pin(port Port, bit uint) *ExpanderPin {
	return &ExpanderPin{exp: m, port: port, bit: bit}
}

func (p *ExpanderPin) ReadLevel(ctx context.Context) (gpio.Level, error) {
	v, err := p.exp.ReadPort(ctx, p.port)
	if err != nil {
		return gpio.Low, err
	}
	return gpio.Level(v&(1<<p.bit) != 0), nil
}

func (p *ExpanderPin) String() string {
	return fmt.Sprintf("MCP23017@%#x/%s%d", p.exp.address, p.port, p.bit)
}
