package i2c

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gobot "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/pn532"
)

var _ pn532.I2CBus = &GobotBus{}

// GobotBus drives devices through a gobot I2C connector such as the NanoPi
// adaptor. Connections are opened per address on first use.
type GobotBus struct {
	mx        sync.Mutex
	connector gobot.Connector
	busNr     int
	conns     map[byte]gobot.Connection
}

// NewGobotBus binds the bus to connector. A negative busNr selects the
// connector's default bus.
func NewGobotBus(connector gobot.Connector, busNr int) *GobotBus {
	if busNr < 0 {
		busNr = connector.DefaultI2cBus()
	}
	return &GobotBus{
		connector: connector,
		busNr:     busNr,
		conns:     make(map[byte]gobot.Connection),
	}
}

func (b *GobotBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := b.read(ctx, address, buffer); err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := b.write(ctx, address, buffer); err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

// Exec supports transactions that are all writes or all reads; gobot
// connections have no repeated start so mixed transactions are rejected.
func (b *GobotBus) Exec(ctx context.Context, address byte, ops []pn532.Operation) error {
	w, r, err := pn532.Coalesce(ops)
	if err != nil {
		return err
	}
	switch {
	case len(w) > 0 && len(r) > 0:
		return fmt.Errorf("write and read on gobot connection: %w", pn532.ErrUnsupportedTx)
	case len(r) > 0:
		if err := b.read(ctx, address, r); err != nil {
			return fmt.Errorf("could not run i2c transaction on %x: %w", address, err)
		}
		pn532.Scatter(ops, r)
	default:
		if err := b.write(ctx, address, w); err != nil {
			return fmt.Errorf("could not run i2c transaction on %x: %w", address, err)
		}
	}
	return nil
}

func (b *GobotBus) read(ctx context.Context, address byte, buffer []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.conn(address)
	if err != nil {
		return err
	}
	n, err := conn.Read(buffer)
	if err != nil {
		return err
	}
	if n != len(buffer) {
		return fmt.Errorf("short read: %d of %d", n, len(buffer))
	}
	return nil
}

func (b *GobotBus) write(ctx context.Context, address byte, buffer []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.conn(address)
	if err != nil {
		return err
	}
	n, err := conn.Write(buffer)
	if err != nil {
		return err
	}
	if n != len(buffer) {
		return fmt.Errorf("short write: %d of %d", n, len(buffer))
	}
	return nil
}

func (b *GobotBus) conn(address byte) (gobot.Connection, error) {
	if c, ok := b.conns[address]; ok {
		return c, nil
	}
	c, err := b.connector.GetI2cConnection(int(address), b.busNr)
	if err != nil {
		return nil, fmt.Errorf("could not open connection on bus %d: %w", b.busNr, err)
	}
	b.conns[address] = c
	return c, nil
}

func (b *GobotBus) Release(ctx context.Context) error {
	return nil
}

func (b *GobotBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var errs []error
	for addr, c := range b.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %x: %w", addr, err))
		}
		delete(b.conns, addr)
	}
	return errors.Join(errs...)
}
