package petlibro

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushState_MergeKeepsAbsentFields(t *testing.T) {
	s := PushState{}
	require.NoError(t, s.Merge([]byte(`{"cmd":"ATTR_PUSH_EVENT","surplusGrain":true,"barnDoorState":false,"volume":3}`)))
	assert.True(t, s.SurplusGrain)
	assert.Equal(t, 3, s.Volume)

	// second partial payload only touches the door
	require.NoError(t, s.Merge([]byte(`{"cmd":"ATTR_PUSH_EVENT","barnDoorState":true}`)))
	assert.True(t, s.BarnDoorState)
	assert.True(t, s.SurplusGrain, "field absent from payload must keep its value")
	assert.Equal(t, 3, s.Volume)
}

func TestPushState_MergeFalseOverwritesTrue(t *testing.T) {
	s := PushState{SurplusGrain: true}
	require.NoError(t, s.Merge([]byte(`{"surplusGrain":false}`)))
	assert.False(t, s.SurplusGrain, "an explicit false must overwrite, absence must not")
}

func TestPushState_MergeMalformed(t *testing.T) {
	s := PushState{SurplusGrain: true}
	err := s.Merge([]byte(`{"surplusGrain":`))
	assert.Error(t, err)
	assert.True(t, s.SurplusGrain, "failed merge must leave state untouched")
}

func TestGrainOutputEvent_FinishedDefaultsTrue(t *testing.T) {
	tests := map[string]struct {
		payload  string
		finished bool
	}{
		"absent":         {payload: `{"cmd":"GRAIN_OUTPUT_EVENT","actualGrainNum":2}`, finished: true},
		"explicit false": {payload: `{"cmd":"GRAIN_OUTPUT_EVENT","finished":false}`, finished: false},
		"explicit true":  {payload: `{"cmd":"GRAIN_OUTPUT_EVENT","finished":true}`, finished: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var ev grainOutputEvent
			require.NoError(t, json.Unmarshal([]byte(tc.payload), &ev))
			assert.Equal(t, tc.finished, ev.finished())
		})
	}
}

func TestNewNTPSync_CarriesTimezone(t *testing.T) {
	msg := newNTPSync(-5)
	assert.Equal(t, NTPSync, msg.Cmd)
	assert.Equal(t, -5, msg.Timezone)
	assert.NotEmpty(t, msg.MsgID)
	assert.Greater(t, msg.Ts, float64(0))

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(-5), decoded["timezone"])
	assert.Equal(t, "NTP_SYNC", decoded["cmd"])
}

func TestNewCoverSet(t *testing.T) {
	assert.Equal(t, coverKeepOpen, newCoverSet(true).CoverOpenMode)
	assert.Equal(t, coverKeepClosed, newCoverSet(false).CoverOpenMode)
}

func TestCommandOf(t *testing.T) {
	cmd, err := commandOf([]byte(`{"cmd":"WAREHOUSE_DOOR_EVENT","barnDoorState":true}`))
	require.NoError(t, err)
	assert.Equal(t, WarehouseDoorEvent, cmd)

	_, err = commandOf([]byte(`not json`))
	assert.Error(t, err)
}

func TestFeedingSchedule_MergeReplacesPlans(t *testing.T) {
	s := FeedingSchedule{Plans: []FeedingPlan{{GrainNum: 1, ExecutionTime: "06:00", PlanID: 1}}}

	require.NoError(t, s.Merge([]byte(`{"cmd":"DEVICE_FEEDING_PLAN_SERVICE","ts":1700000000.5,"plans":[
		{"grainNum":2,"executionTime":"07:30","planId":1},
		{"grainNum":1,"executionTime":"18:00","planId":2}
	]}`)))
	assert.Equal(t, 1700000000.5, s.Ts)
	require.Len(t, s.Plans, 2)
	assert.Equal(t, "07:30", s.Plans[0].ExecutionTime)
	assert.Equal(t, 2, s.Plans[0].GrainNum)

	// a payload without plans keeps the list but advances ts
	require.NoError(t, s.Merge([]byte(`{"ts":1700000050.0}`)))
	assert.Len(t, s.Plans, 2)
	assert.Equal(t, 1700000050.0, s.Ts)
}

func TestFeedingSchedule_AddPlanAssignsSequentialIDs(t *testing.T) {
	s := FeedingSchedule{}
	s.AddPlan(FeedingPlan{GrainNum: 1, ExecutionTime: "06:00"})
	s.AddPlan(FeedingPlan{GrainNum: 2, ExecutionTime: "18:00"})
	s.AddPlan(FeedingPlan{GrainNum: 1, ExecutionTime: "22:00", PlanID: 9})

	assert.Equal(t, 1, s.Plans[0].PlanID)
	assert.Equal(t, 2, s.Plans[1].PlanID)
	assert.Equal(t, 9, s.Plans[2].PlanID, "an existing id must be kept")
}
