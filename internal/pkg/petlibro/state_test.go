package petlibro

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceState_StatusPriority(t *testing.T) {
	tests := map[string]struct {
		surplusGrain bool
		outletClear  bool
		dispensing   bool
		doorOpen     bool
		status       FeederState
		errorCode    string
	}{
		"all good closed":          {surplusGrain: true, outletClear: true, status: StateDoorClosed, errorCode: ErrorNone},
		"all good open":            {surplusGrain: true, outletClear: true, doorOpen: true, status: StateDoorOpen, errorCode: ErrorNone},
		"dispensing":               {surplusGrain: true, outletClear: true, dispensing: true, status: StateDispensing, errorCode: ErrorNone},
		"empty":                    {outletClear: true, status: StateError, errorCode: ErrorEmpty},
		"clogged":                  {surplusGrain: true, status: StateError, errorCode: ErrorClogged},
		"empty wins over dispense": {outletClear: true, dispensing: true, status: StateError, errorCode: ErrorEmpty},
		"empty wins over clogged":  {status: StateError, errorCode: ErrorEmpty},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			s := NewDeviceState()
			payload := fmt.Sprintf(`{"surplusGrain":%t,"grainOutletState":%t,"barnDoorState":%t}`,
				tc.surplusGrain, tc.outletClear, tc.doorOpen)
			require.NoError(t, s.ApplyPushEvent([]byte(payload)))
			if tc.dispensing {
				_, err := s.ApplyGrainOutputEvent([]byte(`{"finished":false}`))
				require.NoError(t, err)
			}
			assert.Equal(t, tc.status, s.Status())
			assert.Equal(t, tc.errorCode, s.ErrorCode())
		})
	}
}

func TestDeviceState_DispensingEndsOnFinished(t *testing.T) {
	s := NewDeviceState()
	require.NoError(t, s.ApplyPushEvent([]byte(`{"surplusGrain":true,"grainOutletState":true}`)))

	_, err := s.ApplyGrainOutputEvent([]byte(`{"finished":false,"expectGrainNum":2}`))
	require.NoError(t, err)
	assert.True(t, s.IsDispensing())

	ev, err := s.ApplyGrainOutputEvent([]byte(`{"finished":true,"actualGrainNum":2,"expectGrainNum":2}`))
	require.NoError(t, err)
	assert.False(t, s.IsDispensing())
	assert.True(t, ev.finished())
	assert.Equal(t, 2, ev.ActualGrainNum)
}

func TestDeviceState_DoorTransition(t *testing.T) {
	s := NewDeviceState()

	// closed -> open arms the opening flag
	require.NoError(t, s.ApplyDoorEvent([]byte(`{"barnDoorState":true,"triggerType":"manual"}`)))
	assert.True(t, s.IsDoorOpen())
	assert.True(t, s.IsDoorOpening())
	assert.False(t, s.IsDoorClosing())

	// same position again confirms rest
	require.NoError(t, s.ApplyDoorEvent([]byte(`{"barnDoorState":true}`)))
	assert.True(t, s.IsDoorOpen())
	assert.False(t, s.IsDoorOpening())

	// open -> closed arms the closing flag
	require.NoError(t, s.ApplyDoorEvent([]byte(`{"barnDoorState":false}`)))
	assert.False(t, s.IsDoorOpen())
	assert.True(t, s.IsDoorClosing())

	s.CancelTimers()
}

func TestDeviceState_DoorTransitionFallbackTimer(t *testing.T) {
	s := NewDeviceState()
	s.transitionTimeout = 10 * time.Millisecond

	expired := make(chan struct{}, 1)
	s.SetTransitionExpiredFunc(func() { expired <- struct{}{} })

	require.NoError(t, s.ApplyDoorEvent([]byte(`{"barnDoorState":true}`)))
	assert.True(t, s.IsDoorOpening())

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("fallback timer did not fire")
	}
	assert.False(t, s.IsDoorOpening())
	assert.False(t, s.IsDoorClosing())
	assert.True(t, s.IsDoorOpen(), "position must survive the timeout")
}

func TestDeviceState_HeartbeatRecency(t *testing.T) {
	s := NewDeviceState()
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }

	assert.False(t, s.IsOnline())
	assert.Equal(t, -1, s.SecondsSinceHeartbeat())
	assert.True(t, s.LastSeen().IsZero())

	require.NoError(t, s.ApplyHeartbeat([]byte(`{"cmd":"NTP","ts":1700000000.1,"rssi":-55,"count":7}`)))
	assert.True(t, s.IsOnline())
	assert.Equal(t, -55, s.RSSI())
	assert.Equal(t, 1700000000.1, s.HeartbeatTs())

	now = now.Add(299 * time.Second)
	assert.True(t, s.IsOnline())
	assert.Equal(t, 299, s.SecondsSinceHeartbeat())

	now = now.Add(2 * time.Second)
	assert.False(t, s.IsOnline(), "device must be offline past the heartbeat timeout")
}

func TestDeviceState_ScheduleCopyIsolation(t *testing.T) {
	s := NewDeviceState()
	require.NoError(t, s.ApplySchedule([]byte(`{"ts":1.0,"plans":[{"grainNum":1,"executionTime":"06:00","planId":1}]}`)))

	sched := s.Schedule()
	sched.Plans[0].GrainNum = 99
	assert.Equal(t, 1, s.Schedule().Plans[0].GrainNum, "returned schedule must be a copy")
}
