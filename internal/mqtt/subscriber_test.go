package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AquaSenseApp/aquasense/internal/apperr"
	"github.com/AquaSenseApp/aquasense/internal/memstore"
	"github.com/AquaSenseApp/aquasense/internal/telemetry"
)

func newTestSubscriber(t *testing.T) (*Subscriber, string, string) {
	t.Helper()
	services := telemetry.New(telemetry.Config{JWTSecret: "s", JWTIssuer: "i", AccessTokenTTL: time.Hour}, telemetry.Deps{Store: memstore.New()})
	ctx := context.Background()
	account, err := services.Accounts.Register(ctx, telemetry.RegisterAccountInput{
		Username: "ops", FullName: "Ops", Email: "ops@plant.example", Password: "correct-horse", OrganizationType: "SME",
	})
	require.NoError(t, err)
	sensor, err := services.Sensors.Register(ctx, account.ID, telemetry.RegisterSensorInput{Name: "intake"})
	require.NoError(t, err)

	// The client is built but never connected.
	s := NewSubscriber(Options{Broker: "localhost:1883", ClientID: "test", Topic: "aquasense/readings"}, services, nil, zap.NewNop())
	return s, sensor.ID, sensor.APIKey
}

func TestProcessStoresReading(t *testing.T) {
	s, sensorID, apiKey := newTestSubscriber(t)

	result, err := s.Process(context.Background(), []byte(`{"api_key":"`+apiKey+`","ph":5.9,"turbidity":3,"flow_rate":0.8}`))
	require.NoError(t, err)
	assert.Equal(t, sensorID, result.Reading.SensorID)
	assert.Equal(t, "UNSTABLE", result.Reading.RiskLevel)
	assert.NotNil(t, result.Alert)
}

func TestProcessRejects(t *testing.T) {
	s, _, apiKey := newTestSubscriber(t)
	ctx := context.Background()

	cases := map[string]struct {
		payload string
		kind    apperr.Kind
	}{
		"garbage":       {`not json`, apperr.KindValidation},
		"no key":        {`{"ph":7,"turbidity":1,"flow_rate":1}`, apperr.KindAuth},
		"unknown key":   {`{"api_key":"AQ-nope","ph":7,"turbidity":1,"flow_rate":1}`, apperr.KindAuth},
		"missing field": {`{"api_key":"` + apiKey + `","ph":7}`, apperr.KindValidation},
		"negative flow": {`{"api_key":"` + apiKey + `","ph":7,"turbidity":1,"flow_rate":-2}`, apperr.KindValidation},
	}
	for name, tc := range cases {
		_, err := s.Process(ctx, []byte(tc.payload))
		require.Errorf(t, err, name)
		assert.Truef(t, apperr.Is(err, tc.kind), "%s: expected %s, got %v", name, tc.kind, err)
	}
}

func TestBrokerURL(t *testing.T) {
	assert.Equal(t, "tcp://localhost:1883", BrokerURL("localhost:1883"))
	assert.Equal(t, "ssl://broker.example:8883", BrokerURL("ssl://broker.example:8883"))
}
