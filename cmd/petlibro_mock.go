package cmd

import (
	"context"
	"errors"

	"github.com/anicoll/petlibro-integration/internal/pkg/petlibro"
)

// MockDeviceService is a mock implementation of the DeviceService interface.
type MockDeviceService struct {
	SerialNumberFunc       func() string
	NameFunc               func() string
	ModelFunc              func() string
	StartFunc              func(ctx context.Context) error
	CleanupFunc            func()
	SyncTimeFunc           func(ctx context.Context) error
	SnapshotFunc           func() map[string]any
	RequestStateUpdateFunc func(ctx context.Context) error
	NotificationsFunc      func() <-chan struct{}
	FeedingsFunc           func() <-chan petlibro.FeedingResult
	DispenseFunc           func(portions int) error
	OpenDoorFunc           func() error
	CloseDoorFunc          func() error
	ToggleDoorFunc         func() error
	StartPumpFunc          func() error
	StopPumpFunc           func() error
	TogglePumpFunc         func() error
	ResetFilterLifeFunc    func() error
	ScheduleFunc           func() (petlibro.FeedingSchedule, error)
	PushScheduleFunc       func(plans []petlibro.FeedingPlan) error
	FetchScheduleFunc      func(ctx context.Context) error
}

func (m *MockDeviceService) SerialNumber() string {
	if m.SerialNumberFunc != nil {
		return m.SerialNumberFunc()
	}
	return "MOCKSERIAL01"
}

func (m *MockDeviceService) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock device"
}

func (m *MockDeviceService) Model() string {
	if m.ModelFunc != nil {
		return m.ModelFunc()
	}
	return petlibro.ModelPLAF301
}

func (m *MockDeviceService) Start(ctx context.Context) error {
	if m.StartFunc != nil {
		return m.StartFunc(ctx)
	}
	return nil
}

func (m *MockDeviceService) Cleanup() {
	if m.CleanupFunc != nil {
		m.CleanupFunc()
	}
}

func (m *MockDeviceService) SyncTime(ctx context.Context) error {
	if m.SyncTimeFunc != nil {
		return m.SyncTimeFunc(ctx)
	}
	return nil
}

func (m *MockDeviceService) Snapshot() map[string]any {
	if m.SnapshotFunc != nil {
		return m.SnapshotFunc()
	}
	return map[string]any{}
}

func (m *MockDeviceService) RequestStateUpdate(ctx context.Context) error {
	if m.RequestStateUpdateFunc != nil {
		return m.RequestStateUpdateFunc(ctx)
	}
	return nil
}

func (m *MockDeviceService) Notifications() <-chan struct{} {
	if m.NotificationsFunc != nil {
		return m.NotificationsFunc()
	}
	return make(chan struct{})
}

func (m *MockDeviceService) Feedings() <-chan petlibro.FeedingResult {
	if m.FeedingsFunc != nil {
		return m.FeedingsFunc()
	}
	return make(chan petlibro.FeedingResult)
}

func (m *MockDeviceService) Dispense(portions int) error {
	if m.DispenseFunc != nil {
		return m.DispenseFunc(portions)
	}
	return errors.New("mocked Dispense not implemented")
}

func (m *MockDeviceService) OpenDoor() error {
	if m.OpenDoorFunc != nil {
		return m.OpenDoorFunc()
	}
	return errors.New("mocked OpenDoor not implemented")
}

func (m *MockDeviceService) CloseDoor() error {
	if m.CloseDoorFunc != nil {
		return m.CloseDoorFunc()
	}
	return errors.New("mocked CloseDoor not implemented")
}

func (m *MockDeviceService) ToggleDoor() error {
	if m.ToggleDoorFunc != nil {
		return m.ToggleDoorFunc()
	}
	return errors.New("mocked ToggleDoor not implemented")
}

func (m *MockDeviceService) StartPump() error {
	if m.StartPumpFunc != nil {
		return m.StartPumpFunc()
	}
	return errors.New("mocked StartPump not implemented")
}

func (m *MockDeviceService) StopPump() error {
	if m.StopPumpFunc != nil {
		return m.StopPumpFunc()
	}
	return errors.New("mocked StopPump not implemented")
}

func (m *MockDeviceService) TogglePump() error {
	if m.TogglePumpFunc != nil {
		return m.TogglePumpFunc()
	}
	return errors.New("mocked TogglePump not implemented")
}

func (m *MockDeviceService) ResetFilterLife() error {
	if m.ResetFilterLifeFunc != nil {
		return m.ResetFilterLifeFunc()
	}
	return errors.New("mocked ResetFilterLife not implemented")
}

func (m *MockDeviceService) Schedule() (petlibro.FeedingSchedule, error) {
	if m.ScheduleFunc != nil {
		return m.ScheduleFunc()
	}
	return petlibro.FeedingSchedule{}, nil
}

func (m *MockDeviceService) PushSchedule(plans []petlibro.FeedingPlan) error {
	if m.PushScheduleFunc != nil {
		return m.PushScheduleFunc(plans)
	}
	return errors.New("mocked PushSchedule not implemented")
}

func (m *MockDeviceService) FetchSchedule(ctx context.Context) error {
	if m.FetchScheduleFunc != nil {
		return m.FetchScheduleFunc(ctx)
	}
	return nil
}
