package model

type NumericUnit string

const (
	NumericUnitPercent NumericUnit = "%"
	NumericUnitDBm     NumericUnit = "dBm"
	NumericUnitSeconds NumericUnit = "s"
)

// SensorUnits maps numeric sensor slugs to their unit of measurement.
// Slugs absent from the map publish without one.
var SensorUnits = map[string]NumericUnit{
	"rssi":                    NumericUnitDBm,
	"water_level":             NumericUnitPercent,
	"filter_life":             NumericUnitPercent,
	"seconds_since_heartbeat": NumericUnitSeconds,
}

type (
	TextSensor  string
	TextSensorz []TextSensor
)

const (
	StateTextSensor     TextSensor = "state"
	ActivityTextSensor  TextSensor = "activity"
	ErrorCodeTextSensor TextSensor = "error_code"
	LastSeenTextSensor  TextSensor = "last_seen"
)

func (t TextSensor) String() string {
	return string(t)
}

func (ts TextSensorz) HasSlug(slug string) bool {
	for _, t := range ts {
		if t.String() == slug {
			return true
		}
	}
	return false
}

var TextSensors TextSensorz = TextSensorz{
	StateTextSensor,
	ActivityTextSensor,
	ErrorCodeTextSensor,
	LastSeenTextSensor,
}
