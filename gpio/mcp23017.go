package gpio

import (
	"context"
	"errors"
	"fmt"

	"github.com/mklimuk/pn532"
)

const DefaultMCP23017Address = 0x21

type Port int

const (
	PortA Port = iota
	PortB
)

func (p Port) String() string {
	if p == PortB {
		return "B"
	}
	return "A"
}

type register int

const (
	regIODIR register = iota
	regIOCON
	regGPPU
	regGPIO
)

// register addresses per IOCON.BANK setting and port
var bankAddr = [2]map[register][2]byte{
	{
		regIODIR: {0x00, 0x01},
		regIOCON: {0x0A, 0x0B},
		regGPPU:  {0x0C, 0x0D},
		regGPIO:  {0x12, 0x13},
	},
	{
		regIODIR: {0x00, 0x10},
		regIOCON: {0x05, 0x15},
		regGPPU:  {0x06, 0x16},
		regGPIO:  {0x09, 0x19},
	},
}

// MCP23017 is a 16 bit I2C I/O expander. Used here to route the PN532 IRQ line
// when the host has no spare GPIO.
type MCP23017 struct {
	transport  pn532.I2CBus
	bank       int
	address    byte
	retryLimit int
}

func NewMCP23017(bus pn532.I2CBus, address byte) *MCP23017 {
	return &MCP23017{retryLimit: 2, transport: bus, address: address}
}

func (m *MCP23017) reg(r register, p Port) byte {
	return bankAddr[m.bank][r][p]
}

// InitPort sets the IODIR register of port (1 = input).
func (m *MCP23017) InitPort(ctx context.Context, port Port, inout byte) error {
	return m.writeRegister(ctx, m.reg(regIODIR, port), inout, "initialize gpio "+port.String())
}

// PullUp enables pull-up resistors on port.
func (m *MCP23017) PullUp(ctx context.Context, port Port, settings byte) error {
	return m.writeRegister(ctx, m.reg(regGPPU, port), settings, "set pull-up on gpio "+port.String())
}

// ConfigureInput turns bit of port into an input with pull-up. The other bits
// keep their direction and pull-up setting.
func (m *MCP23017) ConfigureInput(ctx context.Context, port Port, bit uint) error {
	dir, err := m.readRegister(ctx, m.reg(regIODIR, port), "read direction of gpio "+port.String())
	if err != nil {
		return err
	}
	if err := m.InitPort(ctx, port, dir|1<<bit); err != nil {
		return err
	}
	pu, err := m.readRegister(ctx, m.reg(regGPPU, port), "read pull-up of gpio "+port.String())
	if err != nil {
		return err
	}
	return m.PullUp(ctx, port, pu|1<<bit)
}

func (m *MCP23017) WriteSettings(ctx context.Context, port Port, settings byte) error {
	return m.writeRegister(ctx, m.reg(regIOCON, port), settings, "write settings on gpio "+port.String())
}

func (m *MCP23017) ReadPort(ctx context.Context, port Port) (byte, error) {
	return m.readRegister(ctx, m.reg(regGPIO, port), "read gpio "+port.String())
}

func (m *MCP23017) ReadSettings(ctx context.Context, port Port) (byte, error) {
	return m.readRegister(ctx, m.reg(regIOCON, port), "read settings of gpio "+port.String())
}

func (m *MCP23017) writeRegister(ctx context.Context, addr byte, value byte, what string) error {
	return m.retry(ctx, what, func() error {
		return m.transport.WriteToAddr(ctx, m.address, []byte{addr, value})
	})
}

func (m *MCP23017) readRegister(ctx context.Context, addr byte, what string) (byte, error) {
	var res [1]byte
	err := m.retry(ctx, what, func() error {
		return m.transport.Exec(ctx, m.address, []pn532.Operation{
			pn532.WriteOp([]byte{addr}),
			pn532.ReadOp(res[:]),
		})
	})
	return res[0], err
}

// retry repeats op while the adapter reports a busy engine, releasing the bus
// between attempts.
func (m *MCP23017) retry(ctx context.Context, what string, op func() error) error {
	var err error
	for i := m.retryLimit; i > 0; i-- {
		err = op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, pn532.ErrBusBusy) {
			return fmt.Errorf("could not %s: %w", what, err)
		}
		if r, ok := m.transport.(pn532.Releaser); ok {
			_ = r.Release(ctx)
		}
	}
	return fmt.Errorf("could not %s (retry limit reached): %w", what, err)
}
