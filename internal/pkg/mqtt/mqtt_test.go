package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/petlibro-integration/internal/pkg/model"
)

type publishedMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	paho_mqtt.Client
	published []publishedMessage
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho_mqtt.Token {
	c.published = append(c.published, publishedMessage{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return doneToken{}
}

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

func TestPublishData_UnitOnlyOnNumericSensors(t *testing.T) {
	tests := map[string]struct {
		slug     string
		unit     string
		wantUnit bool
	}{
		"numeric sensor keeps unit": {slug: "water_level", unit: "%", wantUnit: true},
		"text sensor drops unit":    {slug: "state", unit: "%", wantUnit: false},
		"no unit at all":            {slug: "activity", wantUnit: false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			client := &fakeClient{}
			svc := New(client)

			data := map[string]any{
				"identifier": "plaf301-plaf3011234567",
				"slug":       tc.slug,
				"value":      "42",
			}
			if tc.unit != "" {
				data["unit_of_measurement"] = tc.unit
			}
			require.NoError(t, svc.PublishData(data))

			require.Len(t, client.published, 1)
			assert.Equal(t, "homeassistant/sensor/plaf301-plaf3011234567/"+tc.slug+"/state", client.published[0].topic)

			var payload map[string]string
			require.NoError(t, json.Unmarshal(client.published[0].payload, &payload))
			assert.Equal(t, "42", payload["value"])
			unit, present := payload["unit_of_measurement"]
			assert.Equal(t, tc.wantUnit, present)
			if tc.wantUnit {
				assert.Equal(t, tc.unit, unit)
			}
		})
	}
}

func TestRegisterDevice_PublishesDiscoveryOnce(t *testing.T) {
	client := &fakeClient{}
	svc := New(client)
	device := &model.Device{
		ID:           "UNIQUE0000001",
		Name:         "kitchen feeder",
		Model:        "PLAF301",
		SerialNumber: "UNIQUE0000001",
	}

	require.NoError(t, svc.RegisterDevice(device))
	require.NoError(t, svc.RegisterDevice(device))

	require.Len(t, client.published, 1, "discovery config is retained, publish once")
	assert.True(t, client.published[0].retained)

	var msg model.RegisterMessage
	require.NoError(t, json.Unmarshal(client.published[0].payload, &msg))
	assert.Equal(t, "kitchen feeder", msg.Name)
	assert.Equal(t, "Petlibro", msg.Device.Manufacturer)
}
