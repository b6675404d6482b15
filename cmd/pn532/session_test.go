package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/pn532"
	"github.com/mklimuk/pn532/adapter"
	"github.com/mklimuk/pn532/pkg/config"
)

type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	return m.Called(ctx, address, buffer).Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	return m.Called(ctx, address, buffer).Error(0)
}

func (m *MockI2CBus) Exec(ctx context.Context, address byte, ops []pn532.Operation) error {
	args := m.Called(ctx, address, ops)
	if data, ok := args.Get(0).([]byte); ok {
		pn532.Scatter(ops, data)
	}
	return args.Error(1)
}

// mockGPBus is a bus with GP pins of its own.
type mockGPBus struct {
	MockI2CBus
}

func (m *mockGPBus) SetGPIOInput(ctx context.Context, n int) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockGPBus) GPIOPin(n int) *adapter.GPPin {
	return adapter.NewMCP2221().GPIOPin(n)
}

func TestOpenIRQExpanderConfiguresInput(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("Exec", mock.Anything, byte(0x21), mock.Anything).Return([]byte{0x00}, nil).Twice()
	bus.On("WriteToAddr", mock.Anything, byte(0x21), []byte{0x01, 0x08}).Return(nil).Once()
	bus.On("WriteToAddr", mock.Anything, byte(0x21), []byte{0x0D, 0x08}).Return(nil).Once()
	cfg := config.Config{Adapter: config.AdapterGeneric, IRQ: "mcp23017:B3"}

	pin, err := openIRQ(context.Background(), cfg, bus, nil)
	require.NoError(t, err)
	assert.NotNil(t, pin)
	bus.AssertExpectations(t)
}

func TestOpenIRQExpanderFailure(t *testing.T) {
	bus := new(MockI2CBus)
	busErr := errors.New("nack")
	bus.On("Exec", mock.Anything, byte(0x21), mock.Anything).Return(nil, busErr).Once()
	cfg := config.Config{Adapter: config.AdapterGeneric, IRQ: "mcp23017:A0"}

	_, err := openIRQ(context.Background(), cfg, bus, nil)
	assert.ErrorIs(t, err, busErr)
}

func TestOpenIRQAdapterPinConfiguresInput(t *testing.T) {
	bus := new(mockGPBus)
	bus.On("SetGPIOInput", mock.Anything, 2).Return(nil).Once()
	cfg := config.Config{Adapter: config.AdapterMCP2221, IRQ: "gp2"}

	pin, err := openIRQ(context.Background(), cfg, bus, nil)
	require.NoError(t, err)
	assert.Equal(t, "gp2", pin.(fmt.Stringer).String())
	bus.AssertExpectations(t)
}

func TestOpenIRQInvalidPins(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"expander name too long", config.Config{Adapter: config.AdapterGeneric, IRQ: "mcp23017:B12"}},
		{"expander bit out of range", config.Config{Adapter: config.AdapterGeneric, IRQ: "mcp23017:A9"}},
		{"adapter pin out of range", config.Config{Adapter: config.AdapterMCP2221, IRQ: "GP4"}},
		{"adapter pin on plain bus", config.Config{Adapter: config.AdapterMCP2221, IRQ: "GP1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := new(MockI2CBus)
			_, err := openIRQ(context.Background(), tt.cfg, bus, nil)
			assert.Error(t, err)
			bus.AssertExpectations(t)
		})
	}
}

func TestPollUntilReady(t *testing.T) {
	polls := 0
	link := pn532.NewMockInterface(nil, func(ctx context.Context) (pn532.Poll, error) {
		polls++
		if polls < 3 {
			return pn532.Pending, nil
		}
		return pn532.Ready, nil
	}, nil)
	err := pollUntilReady(context.Background(), link, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, polls)
}

func TestPollUntilReadyError(t *testing.T) {
	busErr := errors.New("nack")
	link := pn532.NewMockInterface(nil, func(ctx context.Context) (pn532.Poll, error) {
		return pn532.Ready, busErr
	}, nil)
	err := pollUntilReady(context.Background(), link, time.Millisecond)
	assert.ErrorIs(t, err, busErr)
}

func TestPollUntilReadyTimeout(t *testing.T) {
	link := pn532.NewMockInterface(nil, func(ctx context.Context) (pn532.Poll, error) {
		return pn532.Pending, nil
	}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pollUntilReady(ctx, link, time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExchange(t *testing.T) {
	var written []byte
	s := &session{
		cfg: config.Config{Interval: time.Millisecond},
		link: pn532.NewMockInterface(
			func(ctx context.Context, frame []byte) error {
				written = frame
				return nil
			},
			func(ctx context.Context) (pn532.Poll, error) { return pn532.Ready, nil },
			func(ctx context.Context, buf []byte) error {
				copy(buf, []byte{0x00, 0x00, 0xff, 0x00, 0xff, 0x00})
				return nil
			},
		),
	}
	resp, err := s.exchange(context.Background(), []byte{0xd4, 0x02}, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xd4, 0x02}, written)
	assert.Equal(t, []byte{0x00, 0x00, 0xff, 0x00, 0xff, 0x00}, resp)
}

func TestExchangeAsync(t *testing.T) {
	waitErr := errors.New("bus gone")
	s := &session{
		async: pn532.NewMockAsyncInterface(
			func(ctx context.Context, frame []byte) error { return nil },
			func(ctx context.Context) error { return waitErr },
			nil,
		),
	}
	_, err := s.exchange(context.Background(), []byte{0xd4, 0x02}, 6)
	assert.ErrorIs(t, err, waitErr)
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		in  string
		exp []byte
		err bool
	}{
		{in: "d402", exp: []byte{0xd4, 0x02}},
		{in: "0xd402", exp: []byte{0xd4, 0x02}},
		{in: "00 00 ff 02 fe d4 02 2a 00", exp: []byte{0x00, 0x00, 0xff, 0x02, 0xfe, 0xd4, 0x02, 0x2a, 0x00}},
		{in: "d4:02", exp: []byte{0xd4, 0x02}},
		{in: "d4x", err: true},
	}
	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			b, err := decodeFrame(test.in)
			if test.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.exp, b)
		})
	}
}
