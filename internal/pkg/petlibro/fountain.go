package petlibro

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	lowWaterThreshold      = 20
	filterReplaceThreshold = 10
	fullLevel              = 100
)

// fountainCapability implements the PLWF116 water fountain behaviour:
// pump control, water level and filter life tracking. Levels start at
// full and track downward as the device reports; there is no initial
// fetch round-trip for fountains.
type fountainCapability struct {
	adapter *DeviceAdapter

	mu          sync.Mutex
	pumpRunning bool
	waterLevel  int
	filterLife  int
}

func (c *fountainCapability) start(ctx context.Context) error {
	c.mu.Lock()
	c.waterLevel = fullLevel
	c.filterLife = fullLevel
	c.mu.Unlock()
	return nil
}

func (c *fountainCapability) cleanup() {}

func (c *fountainCapability) handleEvent(cmd Command, payload []byte) (bool, error) {
	d := c.adapter
	switch cmd {
	case PumpStateEvent:
		var ev pumpStateEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return true, err
		}
		if ev.Running != nil {
			c.mu.Lock()
			c.pumpRunning = *ev.Running
			c.mu.Unlock()
			d.logger.Debug("pump state changed", zap.String("sn", d.sn), zap.Bool("running", *ev.Running))
		}
		return true, nil
	case WaterLevelEvent:
		var ev waterLevelEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return true, err
		}
		if ev.Level != nil {
			c.mu.Lock()
			c.waterLevel = *ev.Level
			c.mu.Unlock()
			if *ev.Level < lowWaterThreshold {
				d.logger.Warn("water level low", zap.String("sn", d.sn), zap.Int("level", *ev.Level))
			}
		}
		return true, nil
	case FilterStatusEvent:
		var ev filterStatusEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return true, err
		}
		if ev.Life != nil {
			c.mu.Lock()
			c.filterLife = *ev.Life
			c.mu.Unlock()
			if *ev.Life < filterReplaceThreshold {
				d.logger.Warn("filter needs replacing", zap.String("sn", d.sn), zap.Int("life", *ev.Life))
			}
		}
		return true, nil
	default:
		return false, nil
	}
}

func (c *fountainCapability) handleControlResponse(cmd Command, payload []byte) bool {
	d := c.adapter
	switch cmd {
	case PumpControlResponse:
		var ev pumpStateEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			d.logger.Error("malformed pump control response", zap.Error(err))
			return true
		}
		if ev.Running != nil {
			c.mu.Lock()
			c.pumpRunning = *ev.Running
			c.mu.Unlock()
		}
		d.notifyStateChange()
		return true
	case FilterResetResponse:
		c.mu.Lock()
		c.filterLife = fullLevel
		c.mu.Unlock()
		d.logger.Info("filter life reset", zap.String("sn", d.sn))
		d.notifyStateChange()
		return true
	default:
		return false
	}
}

// status derives the overall fountain state. Depleted consumables win
// over a running pump so problems are never masked.
func (c *fountainCapability) status() (FountainState, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.waterLevel < lowWaterThreshold:
		return FountainError, ErrorLowWater
	case c.filterLife < filterReplaceThreshold:
		return FountainWarning, ErrorFilterReplace
	case c.pumpRunning:
		return FountainRunning, ErrorNone
	default:
		return FountainIdle, ErrorNone
	}
}

func (c *fountainCapability) snapshot(out map[string]any) {
	state, errorCode := c.status()
	c.mu.Lock()
	out["is_pump_running"] = c.pumpRunning
	out["water_level"] = c.waterLevel
	out["filter_life"] = c.filterLife
	out["is_low_water"] = c.waterLevel < lowWaterThreshold
	out["needs_filter_change"] = c.filterLife < filterReplaceThreshold
	c.mu.Unlock()
	out["state"] = state.String()
	out["error_code"] = errorCode
}

func (d *DeviceAdapter) fountain() (*fountainCapability, error) {
	c, ok := d.cap.(*fountainCapability)
	if !ok {
		return nil, fmt.Errorf("%w: fountain operation on %s device", ErrUnsupported, d.deviceType)
	}
	return c, nil
}

// StartPump turns the fountain pump on.
func (d *DeviceAdapter) StartPump() error {
	return d.setPump(true)
}

// StopPump turns the fountain pump off.
func (d *DeviceAdapter) StopPump() error {
	return d.setPump(false)
}

// TogglePump flips the pump based on the last known state.
func (d *DeviceAdapter) TogglePump() error {
	c, err := d.fountain()
	if err != nil {
		return err
	}
	c.mu.Lock()
	running := c.pumpRunning
	c.mu.Unlock()
	return d.setPump(!running)
}

func (d *DeviceAdapter) setPump(running bool) error {
	c, err := d.fountain()
	if err != nil {
		return err
	}
	d.logger.Info("setting pump", zap.String("sn", d.sn), zap.Bool("running", running))
	if err := d.publishCommand(newPumpControl(running)); err != nil {
		return err
	}
	c.mu.Lock()
	c.pumpRunning = running
	c.mu.Unlock()
	d.notifyStateChange()
	return nil
}

// ResetFilterLife tells the fountain a fresh filter was installed.
func (d *DeviceAdapter) ResetFilterLife() error {
	c, err := d.fountain()
	if err != nil {
		return err
	}
	d.logger.Info("resetting filter life", zap.String("sn", d.sn))
	if err := d.publishCommand(newFilterReset()); err != nil {
		return err
	}
	c.mu.Lock()
	c.filterLife = fullLevel
	c.mu.Unlock()
	d.notifyStateChange()
	return nil
}
