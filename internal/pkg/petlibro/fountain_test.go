package petlibro

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFountain(t *testing.T, ft *fakeTransport) *DeviceAdapter {
	t.Helper()
	dev, err := NewDevice(DeviceConfig{
		SerialNumber: "PLWF1167654321",
		Name:         "hallway fountain",
		Type:         DeviceTypeFountain,
	}, ft)
	require.NoError(t, err)
	return dev
}

func TestFountain_StartHasNoFetchRoundTrip(t *testing.T) {
	ft := newFakeTransport()
	dev := newTestFountain(t, ft)

	require.NoError(t, dev.Start(context.Background()))
	defer dev.Cleanup()

	assert.Equal(t, ModelPLWF116, dev.Model())
	cmds := ft.publishedCommands()
	require.Len(t, cmds, 1, "only the time sync should go out")
	assert.Equal(t, NTPSync, cmds[0])
}

func TestFountain_StatusThresholds(t *testing.T) {
	tests := map[string]struct {
		waterLevel   int
		filterLife   int
		pumpOn       bool
		state        string
		errorCode    string
		lowWater     bool
		filterChange bool
	}{
		"idle":               {waterLevel: 100, filterLife: 100, state: "idle", errorCode: ErrorNone},
		"running":            {waterLevel: 100, filterLife: 100, pumpOn: true, state: "running", errorCode: ErrorNone},
		"low water":          {waterLevel: 19, filterLife: 100, pumpOn: true, state: "error", errorCode: ErrorLowWater, lowWater: true},
		"water at threshold": {waterLevel: 20, filterLife: 100, state: "idle", errorCode: ErrorNone},
		"filter worn":        {waterLevel: 100, filterLife: 9, pumpOn: true, state: "warning", errorCode: ErrorFilterReplace, filterChange: true},
		"water beats filter": {waterLevel: 10, filterLife: 5, state: "error", errorCode: ErrorLowWater, lowWater: true, filterChange: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			dev := newTestFountain(t, newFakeTransport())
			c, err := dev.fountain()
			require.NoError(t, err)
			c.waterLevel = tc.waterLevel
			c.filterLife = tc.filterLife
			c.pumpRunning = tc.pumpOn

			snap := dev.Snapshot()
			assert.Equal(t, tc.state, snap["state"])
			assert.Equal(t, tc.errorCode, snap["error_code"])
			assert.Equal(t, tc.lowWater, snap["is_low_water"])
			assert.Equal(t, tc.filterChange, snap["needs_filter_change"])
		})
	}
}

func TestFountain_EventsUpdateLevels(t *testing.T) {
	ft := newFakeTransport()
	dev := newTestFountain(t, ft)
	require.NoError(t, dev.Start(context.Background()))
	defer dev.Cleanup()
	drainNotifications(dev)

	ft.deliver(dev.eventTopic(), []byte(`{"cmd":"PUMP_STATE_EVENT","pumpRunning":true}`))
	assertNotified(t, dev)
	ft.deliver(dev.eventTopic(), []byte(`{"cmd":"WATER_LEVEL_EVENT","waterLevel":42}`))
	ft.deliver(dev.eventTopic(), []byte(`{"cmd":"FILTER_STATUS_EVENT","filterLife":77}`))

	snap := dev.Snapshot()
	assert.Equal(t, true, snap["is_pump_running"])
	assert.Equal(t, 42, snap["water_level"])
	assert.Equal(t, 77, snap["filter_life"])
	assert.Equal(t, "running", snap["state"])

	ft.deliver(dev.eventTopic(), []byte(`{"cmd":"WATER_LEVEL_EVENT","waterLevel":15}`))
	snap = dev.Snapshot()
	assert.Equal(t, 15, snap["water_level"])
	assert.Equal(t, "error", snap["state"])
}

func TestFountain_PumpControl(t *testing.T) {
	ft := newFakeTransport()
	dev := newTestFountain(t, ft)

	require.NoError(t, dev.StartPump())
	snap := dev.Snapshot()
	assert.Equal(t, true, snap["is_pump_running"], "pump state is optimistic")

	require.NoError(t, dev.TogglePump())
	snap = dev.Snapshot()
	assert.Equal(t, false, snap["is_pump_running"])

	cmds := ft.publishedCommands()
	assert.Equal(t, []Command{PumpControlService, PumpControlService}, cmds)
}

func TestFountain_ControlResponsesConfirmState(t *testing.T) {
	ft := newFakeTransport()
	dev := newTestFountain(t, ft)
	require.NoError(t, dev.Start(context.Background()))
	defer dev.Cleanup()

	ft.deliver(dev.controlInTopic(), []byte(`{"cmd":"PUMP_CONTROL_RESPONSE","pumpRunning":true}`))
	assert.Equal(t, true, dev.Snapshot()["is_pump_running"])

	c, err := dev.fountain()
	require.NoError(t, err)
	c.mu.Lock()
	c.filterLife = 4
	c.mu.Unlock()

	ft.deliver(dev.controlInTopic(), []byte(`{"cmd":"FILTER_RESET_RESPONSE"}`))
	assert.Equal(t, 100, dev.Snapshot()["filter_life"])
}

func TestFountain_ResetFilterLife(t *testing.T) {
	ft := newFakeTransport()
	dev := newTestFountain(t, ft)
	c, err := dev.fountain()
	require.NoError(t, err)
	c.filterLife = 3

	require.NoError(t, dev.ResetFilterLife())
	assert.Equal(t, 100, dev.Snapshot()["filter_life"])
	cmds := ft.publishedCommands()
	require.Len(t, cmds, 1)
	assert.Equal(t, FilterResetService, cmds[0])
}

func TestFountain_FeederCommandsUnsupported(t *testing.T) {
	dev := newTestFountain(t, newFakeTransport())
	assert.ErrorIs(t, dev.Dispense(1), ErrUnsupported)
	assert.ErrorIs(t, dev.OpenDoor(), ErrUnsupported)
	assert.ErrorIs(t, dev.CloseDoor(), ErrUnsupported)
	assert.ErrorIs(t, dev.ToggleDoor(), ErrUnsupported)
	_, err := dev.Schedule()
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, dev.PushSchedule(nil), ErrUnsupported)
	assert.ErrorIs(t, dev.FetchSchedule(context.Background()), ErrUnsupported)
}
