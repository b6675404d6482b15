package pn532

import (
	"context"
	"fmt"
)

// DeviceAddress is the 7-bit I2C address of the PN532.
const DeviceAddress = 0x24

// ReadySentinel is the status byte the PN532 returns once a response is available.
const ReadySentinel = 0x01

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

var ErrUnsupportedTx = fmt.Errorf("transaction cannot be executed atomically on this bus")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
}

// Transactor executes all ops against one device as a single bus transaction.
type Transactor interface {
	Exec(ctx context.Context, address byte, ops []Operation) error
}

type Releaser interface {
	Release(ctx context.Context) error
}

type I2CBus interface {
	AddressableReader
	AddressableWriter
	Transactor
}
