package petlibro

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Every message on the wire is a JSON object with a "cmd" discriminator.
// Outbound commands additionally carry "ts" (ms since epoch) and "msgId".
type header struct {
	Cmd   Command `json:"cmd"`
	Ts    float64 `json:"ts"`
	MsgID string  `json:"msgId"`
}

func newHeader(cmd Command) header {
	return header{
		Cmd:   cmd,
		Ts:    float64(time.Now().UnixMilli()),
		MsgID: uuid.NewString(),
	}
}

type envelope struct {
	Cmd Command `json:"cmd"`
}

// commandOf extracts the cmd discriminator from an inbound payload.
func commandOf(payload []byte) (Command, error) {
	var e envelope
	if err := json.Unmarshal(payload, &e); err != nil {
		return "", err
	}
	return e.Cmd, nil
}

// ntpSyncMessage tells the device the current time and the signed
// timezone offset in hours. The offset comes from the caller so that a
// host timezone change only requires recomputing the provider, not
// reloading the package.
type ntpSyncMessage struct {
	header
	Timezone int `json:"timezone"`
}

func newNTPSync(tzOffsetHours int) ntpSyncMessage {
	return ntpSyncMessage{header: newHeader(NTPSync), Timezone: tzOffsetHours}
}

type ntpMessage struct {
	header
}

func newNTP() ntpMessage {
	return ntpMessage{header: newHeader(NTP)}
}

type manualFeedingMessage struct {
	header
	GrainNum int `json:"grainNum"`
}

func newManualFeeding(portions int) manualFeedingMessage {
	return manualFeedingMessage{header: newHeader(ManualFeedingService), GrainNum: portions}
}

const (
	coverKeepOpen   = "KEEP_OPEN"
	coverKeepClosed = "KEEP_CLOSED"
)

type attrSetMessage struct {
	header
	CoverOpenMode string `json:"coverOpenMode"`
}

func newCoverSet(open bool) attrSetMessage {
	mode := coverKeepClosed
	if open {
		mode = coverKeepOpen
	}
	return attrSetMessage{header: newHeader(AttrSetService), CoverOpenMode: mode}
}

type feedingPlanRequest struct {
	header
}

func newFeedingPlanRequest() feedingPlanRequest {
	return feedingPlanRequest{header: newHeader(DeviceFeedingPlanService)}
}

type feedingPlanMessage struct {
	header
	Plans []FeedingPlan `json:"plans"`
}

func newFeedingPlanMessage(plans []FeedingPlan) feedingPlanMessage {
	return feedingPlanMessage{header: newHeader(FeedingPlanService), Plans: plans}
}

type pumpControlMessage struct {
	header
	Running bool `json:"running"`
}

func newPumpControl(running bool) pumpControlMessage {
	return pumpControlMessage{header: newHeader(PumpControlService), Running: running}
}

type filterResetMessage struct {
	header
}

func newFilterReset() filterResetMessage {
	return filterResetMessage{header: newHeader(FilterResetService)}
}

// PushState is the accumulated attribute record of a device. Inbound
// ATTR_PUSH_EVENT payloads are partial: fields absent from a payload keep
// their previous value. The delta struct below states the full set of
// mergeable fields.
type PushState struct {
	PowerMode           int
	PowerType           int
	ElectricQuantity    int
	SurplusGrain        bool
	BarnDoorState       bool
	MotorState          int
	GrainOutletState    bool
	WifiSSID            string
	AudioURL            string
	EnableAudio         bool
	Volume              int
	CoverOpenMode       string
	CoverClosePosition  int
	ChildLockSwitch     bool
	CloseDoorTimeSec    int
	EnableScreenDisplay bool
	ScreenDisplaySwitch bool
	EnableSound         bool
	SoundSwitch         bool
	CoilState           bool
}

type pushStateDelta struct {
	PowerMode           *int    `json:"powerMode"`
	PowerType           *int    `json:"powerType"`
	ElectricQuantity    *int    `json:"electricQuantity"`
	SurplusGrain        *bool   `json:"surplusGrain"`
	BarnDoorState       *bool   `json:"barnDoorState"`
	MotorState          *int    `json:"motorState"`
	GrainOutletState    *bool   `json:"grainOutletState"`
	WifiSSID            *string `json:"wifiSsid"`
	AudioURL            *string `json:"audioUrl"`
	EnableAudio         *bool   `json:"enableAudio"`
	Volume              *int    `json:"volume"`
	CoverOpenMode       *string `json:"coverOpenMode"`
	CoverClosePosition  *int    `json:"coverClosePosition"`
	ChildLockSwitch     *bool   `json:"childLockSwitch"`
	CloseDoorTimeSec    *int    `json:"closeDoorTimeSec"`
	EnableScreenDisplay *bool   `json:"enableScreenDisplay"`
	ScreenDisplaySwitch *bool   `json:"screenDisplaySwitch"`
	EnableSound         *bool   `json:"enableSound"`
	SoundSwitch         *bool   `json:"soundSwitch"`
	CoilState           *bool   `json:"CoilState"`
}

func (s *PushState) apply(d pushStateDelta) {
	if d.PowerMode != nil {
		s.PowerMode = *d.PowerMode
	}
	if d.PowerType != nil {
		s.PowerType = *d.PowerType
	}
	if d.ElectricQuantity != nil {
		s.ElectricQuantity = *d.ElectricQuantity
	}
	if d.SurplusGrain != nil {
		s.SurplusGrain = *d.SurplusGrain
	}
	if d.BarnDoorState != nil {
		s.BarnDoorState = *d.BarnDoorState
	}
	if d.MotorState != nil {
		s.MotorState = *d.MotorState
	}
	if d.GrainOutletState != nil {
		s.GrainOutletState = *d.GrainOutletState
	}
	if d.WifiSSID != nil {
		s.WifiSSID = *d.WifiSSID
	}
	if d.AudioURL != nil {
		s.AudioURL = *d.AudioURL
	}
	if d.EnableAudio != nil {
		s.EnableAudio = *d.EnableAudio
	}
	if d.Volume != nil {
		s.Volume = *d.Volume
	}
	if d.CoverOpenMode != nil {
		s.CoverOpenMode = *d.CoverOpenMode
	}
	if d.CoverClosePosition != nil {
		s.CoverClosePosition = *d.CoverClosePosition
	}
	if d.ChildLockSwitch != nil {
		s.ChildLockSwitch = *d.ChildLockSwitch
	}
	if d.CloseDoorTimeSec != nil {
		s.CloseDoorTimeSec = *d.CloseDoorTimeSec
	}
	if d.EnableScreenDisplay != nil {
		s.EnableScreenDisplay = *d.EnableScreenDisplay
	}
	if d.ScreenDisplaySwitch != nil {
		s.ScreenDisplaySwitch = *d.ScreenDisplaySwitch
	}
	if d.EnableSound != nil {
		s.EnableSound = *d.EnableSound
	}
	if d.SoundSwitch != nil {
		s.SoundSwitch = *d.SoundSwitch
	}
	if d.CoilState != nil {
		s.CoilState = *d.CoilState
	}
}

// Merge applies the fields present in payload onto the record, leaving
// absent fields untouched.
func (s *PushState) Merge(payload []byte) error {
	var d pushStateDelta
	if err := json.Unmarshal(payload, &d); err != nil {
		return err
	}
	s.apply(d)
	return nil
}

// HeartbeatState is the accumulated heartbeat record of a device.
type HeartbeatState struct {
	Count    int
	RSSI     int
	WifiType int
	Ts       float64
}

type heartbeatDelta struct {
	Count    *int     `json:"count"`
	RSSI     *int     `json:"rssi"`
	WifiType *int     `json:"wifiType"`
	Ts       *float64 `json:"ts"`
}

func (h *HeartbeatState) Merge(payload []byte) error {
	var d heartbeatDelta
	if err := json.Unmarshal(payload, &d); err != nil {
		return err
	}
	if d.Count != nil {
		h.Count = *d.Count
	}
	if d.RSSI != nil {
		h.RSSI = *d.RSSI
	}
	if d.WifiType != nil {
		h.WifiType = *d.WifiType
	}
	if d.Ts != nil {
		h.Ts = *d.Ts
	}
	return nil
}

// StartupInfo holds what the device reports on DEVICE_START_EVENT.
type StartupInfo struct {
	Success         bool
	PID             string
	MAC             string
	HardwareVersion string
	SoftwareVersion string
	ChannelPlanNum  int
}

type startupInfoDelta struct {
	Success         *bool   `json:"success"`
	PID             *string `json:"pid"`
	MAC             *string `json:"mac"`
	HardwareVersion *string `json:"hardwareVersion"`
	SoftwareVersion *string `json:"softwareVersion"`
	ChannelPlanNum  *int    `json:"channelPlanNum"`
}

func (i *StartupInfo) Merge(payload []byte) error {
	var d startupInfoDelta
	if err := json.Unmarshal(payload, &d); err != nil {
		return err
	}
	if d.Success != nil {
		i.Success = *d.Success
	}
	if d.PID != nil {
		i.PID = *d.PID
	}
	if d.MAC != nil {
		i.MAC = *d.MAC
	}
	if d.HardwareVersion != nil {
		i.HardwareVersion = *d.HardwareVersion
	}
	if d.SoftwareVersion != nil {
		i.SoftwareVersion = *d.SoftwareVersion
	}
	if d.ChannelPlanNum != nil {
		i.ChannelPlanNum = *d.ChannelPlanNum
	}
	return nil
}

type doorEvent struct {
	BarnDoorState bool   `json:"barnDoorState"`
	TriggerType   string `json:"triggerType"`
	ExecTime      int64  `json:"execTime"`
}

// finished defaults to true when absent: an empty GRAIN_OUTPUT_EVENT means
// the dispense is over, not starting.
type grainOutputEvent struct {
	Finished       *bool  `json:"finished"`
	Type           string `json:"type"`
	ActualGrainNum int    `json:"actualGrainNum"`
	ExpectGrainNum int    `json:"expectGrainNum"`
	ExecTime       int64  `json:"execTime"`
	ExecStep       string `json:"execStep"`
}

func (e grainOutputEvent) finished() bool {
	if e.Finished == nil {
		return true
	}
	return *e.Finished
}

type pumpStateEvent struct {
	Running *bool `json:"pumpRunning"`
}

type waterLevelEvent struct {
	Level *int `json:"waterLevel"`
}

type filterStatusEvent struct {
	Life *int `json:"filterLife"`
}

// FeedingPlan is one scheduled feeding entry as the device represents it:
// executionTime is device-local, which is UTC.
type FeedingPlan struct {
	GrainNum      int    `json:"grainNum"`
	ExecutionTime string `json:"executionTime"`
	PlanID        int    `json:"planId,omitempty"`
	EnableAudio   bool   `json:"enableAudio"`
	AudioTimes    int    `json:"audioTimes"`
	SyncTime      int64  `json:"syncTime,omitempty"`
}

type feedingPlanDelta struct {
	GrainNum      *int    `json:"grainNum"`
	ExecutionTime *string `json:"executionTime"`
	PlanID        *int    `json:"planId"`
	EnableAudio   *bool   `json:"enableAudio"`
	AudioTimes    *int    `json:"audioTimes"`
	SyncTime      *int64  `json:"syncTime"`
}

func (p *FeedingPlan) apply(d feedingPlanDelta) {
	if d.GrainNum != nil {
		p.GrainNum = *d.GrainNum
	}
	if d.ExecutionTime != nil {
		p.ExecutionTime = *d.ExecutionTime
	}
	if d.PlanID != nil {
		p.PlanID = *d.PlanID
	}
	if d.EnableAudio != nil {
		p.EnableAudio = *d.EnableAudio
	}
	if d.AudioTimes != nil {
		p.AudioTimes = *d.AudioTimes
	}
	if d.SyncTime != nil {
		p.SyncTime = *d.SyncTime
	}
}

// FeedingSchedule is the ordered collection of feeding plans plus the
// protocol timestamp of the response that delivered it. The timestamp is
// what the fetch correlation loop watches.
type FeedingSchedule struct {
	Ts    float64       `json:"ts"`
	Plans []FeedingPlan `json:"plans"`
}

type feedingScheduleDelta struct {
	Ts    *float64          `json:"ts"`
	Plans []json.RawMessage `json:"plans"`
}

// Merge replaces the plan list when the payload carries one and merges the
// remaining fields.
func (s *FeedingSchedule) Merge(payload []byte) error {
	var d feedingScheduleDelta
	if err := json.Unmarshal(payload, &d); err != nil {
		return err
	}
	if len(d.Plans) > 0 {
		plans := make([]FeedingPlan, 0, len(d.Plans))
		for _, raw := range d.Plans {
			var pd feedingPlanDelta
			if err := json.Unmarshal(raw, &pd); err != nil {
				return err
			}
			var plan FeedingPlan
			plan.apply(pd)
			plans = append(plans, plan)
		}
		s.Plans = plans
	}
	if d.Ts != nil {
		s.Ts = *d.Ts
	}
	return nil
}

// AddPlan appends a plan, assigning the next sequential identifier
// (starting at 1) when the plan carries none.
func (s *FeedingSchedule) AddPlan(plan FeedingPlan) {
	if plan.PlanID == 0 {
		plan.PlanID = len(s.Plans) + 1
	}
	s.Plans = append(s.Plans, plan)
}
