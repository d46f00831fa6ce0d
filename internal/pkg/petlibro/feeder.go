package petlibro

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// scheduleFetchTimeout bounds the initial schedule fetch at start.
const scheduleFetchTimeout = 10 * time.Second

// feederCapability implements the PLAF301 granary feeder behaviour:
// door events, grain output tracking and the feeding schedule.
type feederCapability struct {
	adapter *DeviceAdapter
}

func (c *feederCapability) handleEvent(cmd Command, payload []byte) (bool, error) {
	d := c.adapter
	switch cmd {
	case WarehouseDoorEvent:
		if err := d.state.ApplyDoorEvent(payload); err != nil {
			return true, err
		}
		d.logger.Debug("door state changed",
			zap.String("sn", d.sn),
			zap.Bool("open", d.state.IsDoorOpen()))
		return true, nil
	case GrainOutputEvent:
		ev, err := d.state.ApplyGrainOutputEvent(payload)
		if err != nil {
			return true, err
		}
		if ev.finished() {
			d.logger.Info("feeding finished",
				zap.String("sn", d.sn),
				zap.Int("actual", ev.ActualGrainNum),
				zap.Int("expected", ev.ExpectGrainNum))
			d.recordFeeding(FeedingResult{
				Actual:   ev.ActualGrainNum,
				Expected: ev.ExpectGrainNum,
				ExecTime: time.UnixMilli(ev.ExecTime),
				Step:     ev.ExecStep,
			})
		}
		return true, nil
	default:
		return false, nil
	}
}

func (c *feederCapability) handleControlResponse(cmd Command, payload []byte) bool {
	d := c.adapter
	if cmd != DeviceFeedingPlanService {
		return false
	}
	if err := d.state.ApplySchedule(payload); err != nil {
		d.logger.Error("malformed feeding plan response", zap.Error(err))
		return true
	}
	d.logger.Info("received feeding schedule",
		zap.String("sn", d.sn),
		zap.Int("plans", len(d.state.Schedule().Plans)))
	return true
}

func (c *feederCapability) start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, scheduleFetchTimeout)
	defer cancel()
	return c.fetchSchedule(ctx)
}

func (c *feederCapability) cleanup() {}

// fetchSchedule requests the device's feeding plans and waits for the
// response to land, re-sending the request each poll. The wait is bounded
// by ctx; expiry maps to ErrTimeout.
func (c *feederCapability) fetchSchedule(ctx context.Context) error {
	d := c.adapter
	before := d.state.ScheduleTs()
	for d.state.ScheduleTs() == before {
		if err := d.publishCommand(newFeedingPlanRequest()); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: schedule fetch", ErrTimeout)
		case <-time.After(scheduleFetchRetryInterval):
		}
	}
	return nil
}

func (c *feederCapability) snapshot(out map[string]any) {
	s := c.adapter.state
	out["state"] = s.Status().String()
	out["activity"] = s.Status().Activity()
	out["is_door_open"] = s.IsDoorOpen()
	out["is_door_opening"] = s.IsDoorOpening()
	out["is_door_closing"] = s.IsDoorClosing()
	out["is_dispensing"] = s.IsDispensing()
	out["is_empty"] = s.IsEmpty()
	out["is_clogged"] = s.IsClogged()
	out["error_code"] = s.ErrorCode()
}

func (d *DeviceAdapter) feeder() (*feederCapability, error) {
	c, ok := d.cap.(*feederCapability)
	if !ok {
		return nil, fmt.Errorf("%w: feeder operation on %s device", ErrUnsupported, d.deviceType)
	}
	return c, nil
}

// Dispense asks the feeder to dispense the given number of portions.
// Non-positive portion counts are dropped with a warning rather than sent.
func (d *DeviceAdapter) Dispense(portions int) error {
	if _, err := d.feeder(); err != nil {
		return err
	}
	if portions < 1 {
		d.logger.Warn("ignoring dispense with no portions", zap.Int("portions", portions))
		return nil
	}
	d.logger.Info("dispensing", zap.String("sn", d.sn), zap.Int("portions", portions))
	return d.publishCommand(newManualFeeding(portions))
}

// OpenDoor commands the barn door open and marks the transition as in
// flight so the state reads "opening" until the device confirms.
func (d *DeviceAdapter) OpenDoor() error {
	return d.setDoor(true)
}

// CloseDoor commands the barn door closed.
func (d *DeviceAdapter) CloseDoor() error {
	return d.setDoor(false)
}

// ToggleDoor flips the barn door based on the last confirmed state.
func (d *DeviceAdapter) ToggleDoor() error {
	return d.setDoor(!d.state.IsDoorOpen())
}

func (d *DeviceAdapter) setDoor(open bool) error {
	if _, err := d.feeder(); err != nil {
		return err
	}
	d.state.SetDoorTransition(open)
	d.notifyStateChange()
	d.logger.Info("setting door", zap.String("sn", d.sn), zap.Bool("open", open))
	return d.publishCommand(newCoverSet(open))
}

// Schedule returns the last known feeding schedule.
func (d *DeviceAdapter) Schedule() (FeedingSchedule, error) {
	if _, err := d.feeder(); err != nil {
		return FeedingSchedule{}, err
	}
	return d.state.Schedule(), nil
}

// FetchSchedule re-requests the feeding plans from the device and waits
// for the fresh response.
func (d *DeviceAdapter) FetchSchedule(ctx context.Context) error {
	c, err := d.feeder()
	if err != nil {
		return err
	}
	return c.fetchSchedule(ctx)
}

// PushSchedule replaces the device's feeding plans. Plans without an
// identifier get sequential ones starting at 1. The local record is
// updated optimistically; the device echoes the plans back on its next
// fetch.
func (d *DeviceAdapter) PushSchedule(plans []FeedingPlan) error {
	if _, err := d.feeder(); err != nil {
		return err
	}
	next := 1
	for i := range plans {
		if plans[i].PlanID == 0 {
			plans[i].PlanID = next
		}
		next = plans[i].PlanID + 1
	}
	d.logger.Info("pushing feeding schedule", zap.String("sn", d.sn), zap.Int("plans", len(plans)))
	if err := d.publishCommand(newFeedingPlanMessage(plans)); err != nil {
		return err
	}
	d.state.ReplaceSchedule(plans)
	d.notifyStateChange()
	return nil
}
