package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "alert.sensor-9", RoutingKey(AlertEvent{SensorID: "sensor-9"}))
}

func TestAlertEventJSONFields(t *testing.T) {
	event := AlertEvent{AlertID: "a1", SensorID: "s1", RiskLevel: "UNSTABLE", PH: 6.1, CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	body, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "a1", decoded["alertId"])
	assert.Equal(t, "s1", decoded["sensorId"])
	assert.Equal(t, "UNSTABLE", decoded["riskLevel"])
	assert.Equal(t, "2026-01-02T03:04:05Z", decoded["createdAt"])
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	assert.NoError(t, n.PublishAlert(context.Background(), AlertEvent{}))
}
