package coordinator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockDevice struct {
	updateCalls   atomic.Int64
	notifications chan struct{}
	updateErr     error
}

func newMockDevice() *mockDevice {
	return &mockDevice{notifications: make(chan struct{}, 1)}
}

func (m *mockDevice) SerialNumber() string { return "MOCKSERIAL01" }

func (m *mockDevice) Snapshot() map[string]any {
	return map[string]any{"state": "door_closed"}
}

func (m *mockDevice) RequestStateUpdate(ctx context.Context) error {
	m.updateCalls.Add(1)
	return m.updateErr
}

func (m *mockDevice) Notifications() <-chan struct{} { return m.notifications }

func TestCoordinator_TicksPollTheDevice(t *testing.T) {
	dev := newMockDevice()

	var published atomic.Int64
	c := New(dev, 20*time.Millisecond, func(ctx context.Context, snapshot map[string]any) error {
		published.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		return dev.updateCalls.Load() >= 2 && published.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestCoordinator_PushSkipsNextPoll(t *testing.T) {
	dev := newMockDevice()

	var published atomic.Int64
	c := New(dev, 50*time.Millisecond, func(ctx context.Context, snapshot map[string]any) error {
		published.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()

	// keep pushing faster than the tick: the poll round-trip stays skipped
	pushCtx, stopPushing := context.WithTimeout(context.Background(), 300*time.Millisecond)
	for pushCtx.Err() == nil {
		select {
		case dev.notifications <- struct{}{}:
		default:
		}
		time.Sleep(5 * time.Millisecond)
	}
	stopPushing()

	assert.Zero(t, dev.updateCalls.Load(), "a chatty device must not be polled")
	assert.Greater(t, published.Load(), int64(3), "pushes must publish immediately")

	cancel()
	<-done
}

func TestCoordinator_RequestRefreshPublishes(t *testing.T) {
	dev := newMockDevice()

	var published atomic.Int64
	c := New(dev, time.Hour, func(ctx context.Context, snapshot map[string]any) error {
		published.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()

	assert.Eventually(t, func() bool { return published.Load() >= 1 }, time.Second, 5*time.Millisecond)

	c.RequestRefresh()
	assert.Eventually(t, func() bool { return published.Load() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, dev.updateCalls.Load(), "manual refresh must not trigger a poll")

	cancel()
	<-done
}

func TestCoordinator_PublishErrorDoesNotStopTheLoop(t *testing.T) {
	dev := newMockDevice()

	var published atomic.Int64
	c := New(dev, 20*time.Millisecond, func(ctx context.Context, snapshot map[string]any) error {
		published.Add(1)
		return assert.AnError
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()

	assert.Eventually(t, func() bool { return published.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
