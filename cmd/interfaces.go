package cmd

import (
	"context"

	"github.com/anicoll/petlibro-integration/internal/pkg/petlibro"
)

// DeviceService defines the interface that cmd.run expects from a device
// adapter.
type DeviceService interface {
	SerialNumber() string
	Name() string
	Model() string
	Start(ctx context.Context) error
	Cleanup()
	SyncTime(ctx context.Context) error
	Snapshot() map[string]any
	RequestStateUpdate(ctx context.Context) error
	Notifications() <-chan struct{}
	Feedings() <-chan petlibro.FeedingResult
	Dispense(portions int) error
	OpenDoor() error
	CloseDoor() error
	ToggleDoor() error
	StartPump() error
	StopPump() error
	TogglePump() error
	ResetFilterLife() error
	Schedule() (petlibro.FeedingSchedule, error)
	PushSchedule(plans []petlibro.FeedingPlan) error
	FetchSchedule(ctx context.Context) error
}
