package publisher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/petlibro-integration/internal/pkg/model"
)

var errAlreadyRegistered = errors.New("publisher already registered")

var (
	registeredPublishers = make(map[string]publisher)
	sensors              sync.Map
)

type publisher interface {
	// Write publishes the device status data to the registered adapters
	Write(ctx context.Context, data []map[string]any) error
	RegisterDevice(device *model.Device) error
}

func RegisterPublisher(name string, publisher publisher) error {
	if _, ok := registeredPublishers[name]; ok {
		return errAlreadyRegistered
	}
	registeredPublishers[name] = publisher
	return nil
}

// PublishSnapshot fans a device state snapshot out to every registered
// publisher. Sensors whose value has not changed since the last publish
// are skipped.
func PublishSnapshot(ctx context.Context, device model.Device, snapshot map[string]any) error {
	identifier := device.Identifier()

	slugs := make([]string, 0, len(snapshot))
	for s := range snapshot {
		slugs = append(slugs, s)
	}
	sort.Strings(slugs)

	count := 0
	data := make([]map[string]any, 0)
	for _, s := range slugs {
		val := formatValue(snapshot[s])
		if !shouldUpdate(identifier, s, val) {
			continue
		}
		count++
		payload := map[string]any{
			"value":      val,
			"slug":       s,
			"timestamp":  time.Now(),
			"identifier": identifier,
		}
		if unit, ok := model.SensorUnits[s]; ok {
			payload["unit_of_measurement"] = string(unit)
		}
		data = append(data, payload)
	}
	if len(data) == 0 {
		return nil
	}

	for name, publisher := range registeredPublishers {
		if err := publisher.Write(ctx, data); err != nil {
			zap.L().Error("failed to publish data", zap.Error(err), zap.String("publisher", name))
			continue
		}
		zap.L().Debug("updated sensors", zap.Int("count", count), zap.String("publisher", name))
	}
	return nil
}

func RegisterDevice(device *model.Device) error {
	for name, publisher := range registeredPublishers {
		if err := publisher.RegisterDevice(device); err != nil {
			zap.L().Error("failed to register device", zap.Error(err), zap.String("publisher", name))
			continue
		}
		zap.L().Debug("registered device", zap.String("device", device.SerialNumber), zap.String("publisher", name))
	}
	return nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "on"
		}
		return "off"
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		if val.IsZero() {
			return "never"
		}
		return val.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func shouldUpdate(identifier, sensorSlug, newValue string) bool {
	key := fmt.Sprintf("%s_%s", identifier, sensorSlug)
	oldValue, exists := sensors.Load(key)
	if exists && newValue == oldValue.(string) {
		return false
	}
	if !exists {
		zap.L().Info("configured sensor",
			zap.String("device", identifier),
			zap.String("sensor", sensorSlug),
			zap.String("value", newValue))
	}
	sensors.Store(key, newValue)
	return true
}
