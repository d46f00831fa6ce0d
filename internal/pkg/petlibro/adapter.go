package petlibro

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Transport is the pub/sub surface the adapter needs from the broker
// client. Handlers are invoked from the client's delivery goroutine and
// must not block.
type Transport interface {
	Subscribe(topic string, handler func(topic string, payload []byte)) error
	Unsubscribe(topics ...string) error
	Publish(topic string, qos byte, payload []byte) error
}

const (
	topicEventTemplate     = "dl/%s/%s/device/event/post"
	topicControlTemplate   = "dl/%s/%s/device/service/sub"
	topicControlInTemplate = "dl/%s/%s/device/service/post"
	topicHeartbeatTemplate = "dl/%s/%s/device/heart/post"

	commandQoS byte = 1

	timeSyncSettleDelay        = 300 * time.Millisecond
	scheduleFetchRetryInterval = 300 * time.Millisecond
	stateUpdateRetryInterval   = 100 * time.Millisecond
)

var serialNumberPattern = regexp.MustCompile(`^[A-Z0-9]{10,}$`)

type lifecycle int

const (
	lifecycleCreated lifecycle = iota
	lifecycleStarting
	lifecycleRunning
	lifecycleCleaningUp
	lifecycleStopped
)

// capability is the device-variant extension point: feeder and fountain
// behaviour behind one interface, selected by DeviceType at construction.
type capability interface {
	// handleEvent consumes a variant-specific event. The bool reports
	// whether the event was recognized (and should notify the coordinator).
	handleEvent(cmd Command, payload []byte) (bool, error)
	handleControlResponse(cmd Command, payload []byte) bool
	start(ctx context.Context) error
	cleanup()
	snapshot(out map[string]any)
}

// FeedingResult reports a completed dispense, solicited or scheduled.
type FeedingResult struct {
	Actual   int
	Expected int
	ExecTime time.Time
	Step     string
}

type DeviceConfig struct {
	SerialNumber string
	Name         string
	Type         DeviceType
	// TimezoneOffset supplies the signed hour offset used in time-sync
	// commands and schedule conversion. Re-evaluated per call so a host
	// timezone change takes effect without a restart.
	TimezoneOffset func() int
}

// DeviceAdapter binds one device's state machine and codec to a topic
// namespace on the transport.
type DeviceAdapter struct {
	sn         string
	name       string
	model      string
	deviceType DeviceType
	tzOffset   func() int

	transport Transport
	state     *DeviceState
	cap       capability
	logger    *zap.Logger

	mu         sync.Mutex
	phase      lifecycle
	subscribed []string

	notifications chan struct{}
	feedings      chan FeedingResult
}

func NewDevice(cfg DeviceConfig, transport Transport) (*DeviceAdapter, error) {
	sn := strings.ToUpper(strings.TrimSpace(cfg.SerialNumber))
	if !serialNumberPattern.MatchString(sn) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSerial, cfg.SerialNumber)
	}

	tzOffset := cfg.TimezoneOffset
	if tzOffset == nil {
		tzOffset = HostTimezoneOffset
	}

	d := &DeviceAdapter{
		sn:            sn,
		name:          cfg.Name,
		deviceType:    cfg.Type,
		tzOffset:      tzOffset,
		transport:     transport,
		state:         NewDeviceState(),
		logger:        zap.L(),
		phase:         lifecycleCreated,
		notifications: make(chan struct{}, 1),
		feedings:      make(chan FeedingResult, 16),
	}
	d.state.SetTransitionExpiredFunc(d.notifyStateChange)

	switch cfg.Type {
	case DeviceTypeFeeder:
		d.model = ModelPLAF301
		d.cap = &feederCapability{adapter: d}
	case DeviceTypeFountain:
		d.model = ModelPLWF116
		d.cap = &fountainCapability{adapter: d}
	default:
		return nil, fmt.Errorf("unknown device type: %q", cfg.Type)
	}
	return d, nil
}

// HostTimezoneOffset is the default timezone provider: the host clock's
// current offset in whole hours.
func HostTimezoneOffset() int {
	_, offset := time.Now().Zone()
	return offset / 3600
}

func (d *DeviceAdapter) SerialNumber() string { return d.sn }
func (d *DeviceAdapter) Name() string         { return d.name }
func (d *DeviceAdapter) Model() string        { return d.model }
func (d *DeviceAdapter) Type() DeviceType     { return d.deviceType }

func (d *DeviceAdapter) eventTopic() string {
	return fmt.Sprintf(topicEventTemplate, d.model, d.sn)
}

func (d *DeviceAdapter) controlTopic() string {
	return fmt.Sprintf(topicControlTemplate, d.model, d.sn)
}

func (d *DeviceAdapter) controlInTopic() string {
	return fmt.Sprintf(topicControlInTemplate, d.model, d.sn)
}

func (d *DeviceAdapter) heartbeatTopic() string {
	return fmt.Sprintf(topicHeartbeatTemplate, d.model, d.sn)
}

// Notifications delivers state-changed signals. Event handlers enqueue
// here without blocking; the coordinator is the consumer.
func (d *DeviceAdapter) Notifications() <-chan struct{} {
	return d.notifications
}

// Feedings delivers completed dispense results for recording.
func (d *DeviceAdapter) Feedings() <-chan FeedingResult {
	return d.feedings
}

func (d *DeviceAdapter) notifyStateChange() {
	select {
	case d.notifications <- struct{}{}:
	default:
	}
}

func (d *DeviceAdapter) recordFeeding(fr FeedingResult) {
	select {
	case d.feedings <- fr:
	default:
		d.logger.Warn("feeding result dropped, consumer not keeping up")
	}
}

// Start subscribes to the device's topics, syncs time, and runs the
// variant-specific initial fetch. Any failure aborts the whole start and
// is surfaced wrapped in ErrNotReady so the caller can retry later.
func (d *DeviceAdapter) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.phase != lifecycleCreated && d.phase != lifecycleStopped {
		d.mu.Unlock()
		return fmt.Errorf("%w: start from invalid lifecycle phase", ErrNotReady)
	}
	d.phase = lifecycleStarting
	d.mu.Unlock()

	d.logger.Info("starting device", zap.String("model", d.model), zap.String("sn", d.sn))

	if err := d.startup(ctx); err != nil {
		d.teardown()
		d.mu.Lock()
		d.phase = lifecycleStopped
		d.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}

	d.mu.Lock()
	d.phase = lifecycleRunning
	d.mu.Unlock()
	d.logger.Info("device started", zap.String("model", d.model), zap.String("sn", d.sn))
	return nil
}

func (d *DeviceAdapter) startup(ctx context.Context) error {
	if err := d.subscribe(d.eventTopic(), d.handleEventMessage); err != nil {
		return err
	}
	if err := d.subscribe(d.heartbeatTopic(), d.handleHeartbeatMessage); err != nil {
		return err
	}
	if err := d.subscribe(d.controlInTopic(), d.handleControlResponse); err != nil {
		return err
	}
	if err := d.SyncTime(ctx); err != nil {
		return err
	}
	return d.cap.start(ctx)
}

func (d *DeviceAdapter) subscribe(topic string, handler func(string, []byte)) error {
	if err := d.transport.Subscribe(topic, handler); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	d.mu.Lock()
	d.subscribed = append(d.subscribed, topic)
	d.mu.Unlock()
	return nil
}

// Cleanup cancels pending timers and unsubscribes. Safe to call more than
// once; the external lifecycle owner invokes it before connection
// teardown.
func (d *DeviceAdapter) Cleanup() {
	d.mu.Lock()
	if d.phase == lifecycleCleaningUp || d.phase == lifecycleStopped {
		d.mu.Unlock()
		return
	}
	d.phase = lifecycleCleaningUp
	d.mu.Unlock()

	d.logger.Info("cleaning up device", zap.String("model", d.model), zap.String("sn", d.sn))
	d.cap.cleanup()
	d.teardown()

	d.mu.Lock()
	d.phase = lifecycleStopped
	d.mu.Unlock()
}

func (d *DeviceAdapter) teardown() {
	d.state.CancelTimers()

	d.mu.Lock()
	topics := d.subscribed
	d.subscribed = nil
	d.mu.Unlock()

	if len(topics) == 0 {
		return
	}
	if err := d.transport.Unsubscribe(topics...); err != nil {
		d.logger.Warn("unsubscribe failed", zap.Strings("topics", topics), zap.Error(err))
	}
}

// handleEventMessage routes inbound events by their cmd discriminator.
// Runs on the transport's delivery goroutine: decode, merge, enqueue a
// notification, return. Malformed payloads are logged and dropped.
func (d *DeviceAdapter) handleEventMessage(topic string, payload []byte) {
	cmd, err := commandOf(payload)
	if err != nil {
		d.logger.Error("malformed event payload", zap.String("topic", topic), zap.Error(err))
		return
	}

	notify := true
	switch cmd {
	case AttrPushEvent:
		if err := d.state.ApplyPushEvent(payload); err != nil {
			d.logger.Error("failed to apply push event", zap.Error(err))
			return
		}
		d.logger.Debug("updated device attributes", zap.String("sn", d.sn))
	case DeviceStartEvent:
		if err := d.state.ApplyStartEvent(payload); err != nil {
			d.logger.Error("failed to apply start event", zap.Error(err))
			return
		}
		d.logger.Info("device started up",
			zap.String("sn", d.sn),
			zap.String("software_version", d.state.Startup().SoftwareVersion))
	default:
		handled, err := d.cap.handleEvent(cmd, payload)
		if err != nil {
			d.logger.Error("failed to handle event", zap.String("cmd", cmd.String()), zap.Error(err))
			return
		}
		if !handled {
			d.logger.Warn("unknown event command", zap.String("cmd", cmd.String()))
			notify = false
		}
	}

	if notify {
		d.notifyStateChange()
	}
}

func (d *DeviceAdapter) handleHeartbeatMessage(topic string, payload []byte) {
	if err := d.state.ApplyHeartbeat(payload); err != nil {
		d.logger.Error("malformed heartbeat payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	d.logger.Debug("received heartbeat",
		zap.String("sn", d.sn),
		zap.Float64("ts", d.state.HeartbeatTs()),
		zap.Int("rssi", d.state.RSSI()))
	d.notifyStateChange()
}

func (d *DeviceAdapter) handleControlResponse(topic string, payload []byte) {
	cmd, err := commandOf(payload)
	if err != nil {
		d.logger.Error("malformed control response", zap.String("topic", topic), zap.Error(err))
		return
	}
	d.logger.Info("received control response", zap.String("cmd", cmd.String()))
	if !d.cap.handleControlResponse(cmd, payload) {
		d.logger.Warn("unknown control response", zap.String("cmd", cmd.String()))
	}
}

// publishCommand encodes and publishes one command on the control topic.
// Failures are logged and returned: the caller needs to know the command
// did not go out.
func (d *DeviceAdapter) publishCommand(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := d.transport.Publish(d.controlTopic(), commandQoS, payload); err != nil {
		d.logger.Error("failed to publish command", zap.String("topic", d.controlTopic()), zap.Error(err))
		return err
	}
	d.logger.Debug("published command", zap.String("topic", d.controlTopic()), zap.ByteString("payload", payload))
	return nil
}

// SyncTime pushes the current time and timezone offset to the device and
// gives it a moment to settle.
func (d *DeviceAdapter) SyncTime(ctx context.Context) error {
	d.logger.Debug("syncing device time", zap.String("sn", d.sn))
	if err := d.publishCommand(newNTPSync(d.tzOffset())); err != nil {
		return err
	}
	select {
	case <-time.After(timeSyncSettleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestStateUpdate pings the device and waits for its heartbeat
// timestamp to advance. The wait is bounded by ctx; expiry maps to
// ErrTimeout rather than hanging forever like the protocol would allow.
func (d *DeviceAdapter) RequestStateUpdate(ctx context.Context) error {
	before := d.state.HeartbeatTs()
	if err := d.publishCommand(newNTP()); err != nil {
		return err
	}
	for d.state.HeartbeatTs() == before {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: state update", ErrTimeout)
		case <-time.After(stateUpdateRetryInterval):
		}
	}
	d.logger.Debug("state update done", zap.String("sn", d.sn))
	return nil
}

// Snapshot returns the flat state mapping consumed by the coordinator.
func (d *DeviceAdapter) Snapshot() map[string]any {
	out := map[string]any{
		"rssi":                    d.state.RSSI(),
		"is_online":               d.state.IsOnline(),
		"last_seen":               d.state.LastSeen(),
		"seconds_since_heartbeat": d.state.SecondsSinceHeartbeat(),
	}
	d.cap.snapshot(out)
	return out
}
