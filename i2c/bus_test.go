package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/mklimuk/pn532"
)

func TestGenericBus_ExecFramedRead(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: pn532.DeviceAddress, R: []byte{0xFF, 0x01, 0x02, 0x03, 0x04}},
		},
	}
	bus := NewBus(playback)
	framing := make([]byte, 1)
	payload := make([]byte, 4)

	err := bus.Exec(context.Background(), pn532.DeviceAddress, []pn532.Operation{
		pn532.ReadOp(framing),
		pn532.ReadOp(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF}, framing)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, payload)
	assert.NoError(t, bus.Close())
}

func TestGenericBus_ExecWriteRead(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x21, W: []byte{0x12}, R: []byte{0xA5}},
		},
	}
	bus := NewBus(playback)
	out := make([]byte, 1)

	err := bus.Exec(context.Background(), 0x21, []pn532.Operation{
		pn532.WriteOp([]byte{0x12}),
		pn532.ReadOp(out),
	})
	require.NoError(t, err)
	assert.Equal(t, byte(0xA5), out[0])
	assert.NoError(t, bus.Close())
}

func TestGenericBus_ExecUnsupported(t *testing.T) {
	bus := NewBus(&i2ctest.Playback{DontPanic: true})
	err := bus.Exec(context.Background(), pn532.DeviceAddress, []pn532.Operation{
		pn532.ReadOp(make([]byte, 1)),
		pn532.WriteOp([]byte{0x00}),
	})
	assert.True(t, errors.Is(err, pn532.ErrUnsupportedTx))
}

func TestGenericBus_ReadWrite(t *testing.T) {
	frame := []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x02, 0x2A, 0x00}
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: pn532.DeviceAddress, W: frame},
			{Addr: pn532.DeviceAddress, R: []byte{0x01}},
		},
	}
	bus := NewBus(playback)
	ctx := context.Background()

	require.NoError(t, bus.WriteToAddr(ctx, pn532.DeviceAddress, frame))
	status := make([]byte, 1)
	require.NoError(t, bus.ReadFromAddr(ctx, pn532.DeviceAddress, status))
	assert.Equal(t, byte(pn532.ReadySentinel), status[0])
	assert.NoError(t, bus.Close())
}

func TestGenericBus_ReadError(t *testing.T) {
	// no recorded I/O: every transfer is unexpected
	bus := NewBus(&i2ctest.Playback{DontPanic: true})
	err := bus.ReadFromAddr(context.Background(), pn532.DeviceAddress, make([]byte, 1))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "could not read from i2c bus 24")
}

func TestGenericBus_CancelledContext(t *testing.T) {
	bus := NewBus(&i2ctest.Playback{DontPanic: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := bus.WriteToAddr(ctx, pn532.DeviceAddress, []byte{0x00})
	assert.ErrorIs(t, err, context.Canceled)
}
