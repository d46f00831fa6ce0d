package petlibro

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HeartbeatTimeout is the maximum allowed time between heartbeats before
// the device is considered offline.
const HeartbeatTimeout = 300 * time.Second

// defaultDoorTransitionTimeout bounds how long the door may be reported as
// opening/closing without a confirming event.
const defaultDoorTransitionTimeout = 5 * time.Second

// DeviceState accumulates everything a single device has told us. Merges
// are idempotent per field, so out-of-band refreshes racing event handling
// are harmless. All methods are safe for concurrent use.
type DeviceState struct {
	mu sync.Mutex

	push      PushState
	startup   StartupInfo
	heartbeat HeartbeatState
	schedule  FeedingSchedule

	lastHeartbeat time.Time

	dispensing  bool
	doorOpening bool
	doorClosing bool
	doorTimer   *time.Timer

	transitionTimeout time.Duration
	// invoked when the fallback timer clears the transition flags without a
	// confirming door event.
	onTransitionExpired func()

	now    func() time.Time
	logger *zap.Logger
}

func NewDeviceState() *DeviceState {
	return &DeviceState{
		transitionTimeout: defaultDoorTransitionTimeout,
		now:               time.Now,
		logger:            zap.L(),
	}
}

// SetTransitionExpiredFunc registers the notification fired when the door
// transition fallback timer elapses. Must be called before events arrive.
func (s *DeviceState) SetTransitionExpiredFunc(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTransitionExpired = fn
}

func (s *DeviceState) ApplyPushEvent(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.push.Merge(payload)
}

func (s *DeviceState) ApplyStartEvent(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startup.Merge(payload)
}

func (s *DeviceState) ApplyHeartbeat(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.heartbeat.Merge(payload); err != nil {
		return err
	}
	s.lastHeartbeat = s.now()
	return nil
}

// ApplyDoorEvent compares the reported door position against the stored
// one. An unchanged position means the door reached rest: clear any
// in-flight transition. A changed position arms exactly one of the
// opening/closing flags plus a fallback timer that forces both flags back
// to idle if no confirming event arrives in time.
func (s *DeviceState) ApplyDoorEvent(payload []byte) error {
	var ev doorEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("door event",
		zap.Bool("door_open", ev.BarnDoorState),
		zap.String("trigger", ev.TriggerType),
		zap.Bool("stored_door_open", s.push.BarnDoorState))

	if s.doorTimer != nil {
		s.doorTimer.Stop()
		s.doorTimer = nil
	}

	if ev.BarnDoorState != s.push.BarnDoorState {
		s.doorOpening = ev.BarnDoorState
		s.doorClosing = !ev.BarnDoorState
		s.doorTimer = time.AfterFunc(s.transitionTimeout, s.expireDoorTransition)
	} else {
		s.doorOpening = false
		s.doorClosing = false
	}

	s.push.BarnDoorState = ev.BarnDoorState
	return nil
}

func (s *DeviceState) expireDoorTransition() {
	s.mu.Lock()
	s.logger.Debug("door transition timed out, clearing flags")
	s.doorOpening = false
	s.doorClosing = false
	s.doorTimer = nil
	notify := s.onTransitionExpired
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}

func (s *DeviceState) ApplyGrainOutputEvent(payload []byte) (grainOutputEvent, error) {
	var ev grainOutputEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, err
	}
	s.mu.Lock()
	s.dispensing = !ev.finished()
	s.mu.Unlock()
	return ev, nil
}

func (s *DeviceState) ApplySchedule(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule.Merge(payload)
}

// SetDoorTransition records an optimistic transition after a door command
// was published, before the device confirms.
func (s *DeviceState) SetDoorTransition(opening bool) {
	s.mu.Lock()
	s.doorOpening = opening
	s.doorClosing = !opening
	s.mu.Unlock()
}

// ReplaceSchedule swaps the full plan list, e.g. after pushing a new
// schedule to the device.
func (s *DeviceState) ReplaceSchedule(plans []FeedingPlan) {
	s.mu.Lock()
	s.schedule.Plans = plans
	s.mu.Unlock()
}

func (s *DeviceState) Schedule() FeedingSchedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	plans := make([]FeedingPlan, len(s.schedule.Plans))
	copy(plans, s.schedule.Plans)
	return FeedingSchedule{Ts: s.schedule.Ts, Plans: plans}
}

func (s *DeviceState) ScheduleTs() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule.Ts
}

func (s *DeviceState) HeartbeatTs() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeat.Ts
}

func (s *DeviceState) Startup() StartupInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startup
}

func (s *DeviceState) IsOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastHeartbeat.IsZero() {
		return false
	}
	return s.now().Sub(s.lastHeartbeat) < HeartbeatTimeout
}

// LastSeen returns the receive time of the last heartbeat; zero when none
// has arrived yet.
func (s *DeviceState) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeat
}

// SecondsSinceHeartbeat returns -1 when no heartbeat has arrived yet.
func (s *DeviceState) SecondsSinceHeartbeat() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastHeartbeat.IsZero() {
		return -1
	}
	return int(s.now().Sub(s.lastHeartbeat).Seconds())
}

func (s *DeviceState) IsDoorOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.push.BarnDoorState
}

func (s *DeviceState) IsDoorOpening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doorOpening
}

func (s *DeviceState) IsDoorClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doorClosing
}

func (s *DeviceState) IsDispensing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispensing
}

func (s *DeviceState) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.push.SurplusGrain
}

func (s *DeviceState) IsClogged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.push.GrainOutletState
}

func (s *DeviceState) RSSI() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeat.RSSI
}

// Status derives the feeder state. Empty storage and a clogged outlet are
// errors regardless of anything else; dispensing outranks the door states.
func (s *DeviceState) Status() FeederState {
	if s.IsEmpty() || s.IsClogged() {
		return StateError
	}
	if s.IsDispensing() {
		return StateDispensing
	}
	if s.IsDoorOpen() {
		return StateDoorOpen
	}
	return StateDoorClosed
}

// ErrorCode derives the error code with the same priority as Status.
func (s *DeviceState) ErrorCode() string {
	if s.IsEmpty() {
		return ErrorEmpty
	}
	if s.IsClogged() {
		return ErrorClogged
	}
	if s.Status() == StateError {
		return ErrorUnknown
	}
	return ErrorNone
}

// CancelTimers stops any armed fallback timer. Used at cleanup.
func (s *DeviceState) CancelTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doorTimer != nil {
		s.doorTimer.Stop()
		s.doorTimer = nil
	}
}
