package pn532

import (
	"context"
)

// WriteBehaviorFunc defines the function signature for frame write behavior.
type WriteBehaviorFunc func(ctx context.Context, frame []byte) error

// PollBehaviorFunc defines the function signature for a non-blocking readiness check.
type PollBehaviorFunc func(ctx context.Context) (Poll, error)

// WaitBehaviorFunc defines the function signature for a blocking readiness wait.
type WaitBehaviorFunc func(ctx context.Context) error

// ReadBehaviorFunc defines the function signature for payload read behavior.
// It fills buf with the payload or returns an error.
type ReadBehaviorFunc func(ctx context.Context, buf []byte) error

// MockInterface is a mock implementation of Interface that uses behavior functions
// so the protocol layer can be exercised without a PN532 attached.
//
// Example usage:
//
//	polls := 0
//	link := NewMockInterface(
//		func(ctx context.Context, frame []byte) error { return nil },
//		func(ctx context.Context) (Poll, error) {
//			polls++
//			if polls < 3 {
//				return Pending, nil
//			}
//			return Ready, nil
//		},
//		func(ctx context.Context, buf []byte) error { copy(buf, ack); return nil },
//	)
type MockInterface struct {
	write WriteBehaviorFunc
	poll  PollBehaviorFunc
	read  ReadBehaviorFunc
}

var _ Interface = &MockInterface{}

func NewMockInterface(write WriteBehaviorFunc, poll PollBehaviorFunc, read ReadBehaviorFunc) *MockInterface {
	return &MockInterface{write: write, poll: poll, read: read}
}

func (m *MockInterface) Write(ctx context.Context, frame []byte) error {
	return m.write(ctx, frame)
}

func (m *MockInterface) WaitReady(ctx context.Context) (Poll, error) {
	return m.poll(ctx)
}

func (m *MockInterface) Read(ctx context.Context, buf []byte) error {
	return m.read(ctx, buf)
}

// MockAsyncInterface is the AsyncInterface counterpart of MockInterface.
type MockAsyncInterface struct {
	write WriteBehaviorFunc
	wait  WaitBehaviorFunc
	read  ReadBehaviorFunc
}

var _ AsyncInterface = &MockAsyncInterface{}

func NewMockAsyncInterface(write WriteBehaviorFunc, wait WaitBehaviorFunc, read ReadBehaviorFunc) *MockAsyncInterface {
	return &MockAsyncInterface{write: write, wait: wait, read: read}
}

func (m *MockAsyncInterface) Write(ctx context.Context, frame []byte) error {
	return m.write(ctx, frame)
}

func (m *MockAsyncInterface) WaitReady(ctx context.Context) error {
	return m.wait(ctx)
}

func (m *MockAsyncInterface) Read(ctx context.Context, buf []byte) error {
	return m.read(ctx, buf)
}
