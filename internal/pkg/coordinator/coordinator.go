// Package coordinator drives the periodic refresh cycle: it publishes
// device snapshots on a fixed interval and immediately when the device
// pushes a change.
package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/petlibro-integration/internal/pkg/petlibro"
)

const stateUpdateTimeout = 10 * time.Second

type device interface {
	SerialNumber() string
	Snapshot() map[string]any
	RequestStateUpdate(ctx context.Context) error
	Notifications() <-chan struct{}
}

// PublishFunc delivers one snapshot downstream.
type PublishFunc func(ctx context.Context, snapshot map[string]any) error

type Coordinator struct {
	dev      device
	interval time.Duration
	publish  PublishFunc
	refresh  chan struct{}
	logger   *zap.Logger

	// set when the device pushed state since the last tick; a fresh push
	// means the scheduled round-trip can be skipped.
	stateChanged atomic.Bool
}

func New(dev device, interval time.Duration, publish PublishFunc) *Coordinator {
	return &Coordinator{
		dev:      dev,
		interval: interval,
		publish:  publish,
		refresh:  make(chan struct{}, 1),
		logger:   zap.L(),
	}
}

// RequestRefresh schedules an immediate publish without waiting for the
// next tick. Non-blocking; a refresh already pending is enough.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

// Run loops until ctx is cancelled. Ticks poll the device (unless it
// spoke recently), pushed notifications and manual refreshes publish
// straight away.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.publishSnapshot(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.dev.Notifications():
			c.stateChanged.Store(true)
			c.publishSnapshot(ctx)
		case <-c.refresh:
			c.publishSnapshot(ctx)
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Coordinator) tick(ctx context.Context) {
	if c.stateChanged.Swap(false) {
		c.logger.Debug("device pushed recently, skipping poll", zap.String("sn", c.dev.SerialNumber()))
	} else {
		updateCtx, cancel := context.WithTimeout(ctx, stateUpdateTimeout)
		err := c.dev.RequestStateUpdate(updateCtx)
		cancel()
		if err != nil {
			if errors.Is(err, petlibro.ErrTimeout) {
				c.logger.Warn("device did not answer state update", zap.String("sn", c.dev.SerialNumber()))
			} else if !errors.Is(err, context.Canceled) {
				c.logger.Error("state update failed", zap.String("sn", c.dev.SerialNumber()), zap.Error(err))
			}
		}
	}
	c.publishSnapshot(ctx)
}

func (c *Coordinator) publishSnapshot(ctx context.Context) {
	if err := c.publish(ctx, c.dev.Snapshot()); err != nil {
		c.logger.Error("failed to publish snapshot", zap.String("sn", c.dev.SerialNumber()), zap.Error(err))
	}
}
