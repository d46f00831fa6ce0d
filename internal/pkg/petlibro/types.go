package petlibro

type Command string

func (c Command) String() string {
	return string(c)
}

const (
	AttrPushEvent            Command = "ATTR_PUSH_EVENT"
	DeviceStartEvent         Command = "DEVICE_START_EVENT"
	WarehouseDoorEvent       Command = "WAREHOUSE_DOOR_EVENT"
	GrainOutputEvent         Command = "GRAIN_OUTPUT_EVENT"
	DeviceFeedingPlanService Command = "DEVICE_FEEDING_PLAN_SERVICE"
	ManualFeedingService     Command = "MANUAL_FEEDING_SERVICE"
	NTP                      Command = "NTP"
	NTPSync                  Command = "NTP_SYNC"
	AttrSetService           Command = "ATTR_SET_SERVICE"
	FeedingPlanService       Command = "FEEDING_PLAN_SERVICE"
	PumpStateEvent           Command = "PUMP_STATE_EVENT"
	WaterLevelEvent          Command = "WATER_LEVEL_EVENT"
	FilterStatusEvent        Command = "FILTER_STATUS_EVENT"
	PumpControlService       Command = "PUMP_CONTROL_SERVICE"
	FilterResetService       Command = "FILTER_RESET_SERVICE"
	PumpControlResponse      Command = "PUMP_CONTROL_RESPONSE"
	FilterResetResponse      Command = "FILTER_RESET_RESPONSE"
)

type DeviceType string

func (dt DeviceType) String() string {
	return string(dt)
}

const (
	DeviceTypeFeeder   DeviceType = "feeder"
	DeviceTypeFountain DeviceType = "fountain"
)

const (
	ModelPLAF301 = "PLAF301"
	ModelPLWF116 = "PLWF116"

	Manufacturer = "Petlibro"
)

// FeederState is the derived status of a feeder device.
type FeederState int

const (
	StateDispensing FeederState = iota
	StateError
	StateDoorClosed
	StateDoorOpen
	StateUnknown
)

func (s FeederState) String() string {
	switch s {
	case StateDispensing:
		return "dispensing"
	case StateError:
		return "error"
	case StateDoorClosed:
		return "door_closed"
	case StateDoorOpen:
		return "door_open"
	}
	return "unknown"
}

// Activity maps the feeder state onto the host activity vocabulary
// (cleaning/error/idle/docked).
func (s FeederState) Activity() string {
	switch s {
	case StateDispensing:
		return "cleaning"
	case StateDoorClosed:
		return "idle"
	case StateDoorOpen:
		return "docked"
	}
	return "error"
}

// FountainState is the derived status of a water fountain device.
type FountainState int

const (
	FountainIdle FountainState = iota
	FountainRunning
	FountainWarning
	FountainError
)

func (s FountainState) String() string {
	switch s {
	case FountainIdle:
		return "idle"
	case FountainRunning:
		return "running"
	case FountainWarning:
		return "warning"
	}
	return "error"
}

// Error codes exposed in state snapshots.
const (
	ErrorNone          = "none"
	ErrorEmpty         = "empty"
	ErrorClogged       = "clogged"
	ErrorUnknown       = "unknown"
	ErrorLowWater      = "low_water"
	ErrorFilterReplace = "filter_replace"
)
