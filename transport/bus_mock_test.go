package transport

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mklimuk/pn532"
)

// MockI2CBus is a mock implementation of pn532.I2CBus using testify/mock
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
		copy(buffer, data)
	}
	return args.Error(1)
}

// Exec fills the read ops with the mocked wire bytes as a bus would after a
// coalesced transfer.
func (m *MockI2CBus) Exec(ctx context.Context, address byte, ops []pn532.Operation) error {
	args := m.Called(ctx, address, ops)
	if data, ok := args.Get(0).([]byte); ok {
		pn532.Scatter(ops, data)
	}
	return args.Error(1)
}

// framedRead matches the single transaction of a payload read of n bytes.
func framedRead(n int) interface{} {
	return mock.MatchedBy(func(ops []pn532.Operation) bool {
		return len(ops) == 2 &&
			ops[0].Kind == pn532.OpRead && len(ops[0].Buf) == 1 &&
			ops[1].Kind == pn532.OpRead && len(ops[1].Buf) == n
	})
}

func oneByte() interface{} {
	return mock.MatchedBy(func(buf []byte) bool { return len(buf) == 1 })
}
