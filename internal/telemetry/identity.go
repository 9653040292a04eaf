package telemetry

import (
	"context"
	"errors"
	"strings"

	"github.com/AquaSenseApp/aquasense/internal/apperr"
	"github.com/AquaSenseApp/aquasense/internal/model"
	"github.com/AquaSenseApp/aquasense/internal/repository"
)

// Identity resolves device credentials to sensors.
type Identity struct {
	sensors repository.Sensors
}

// ResolveSensor returns the active sensor holding apiKey. Missing, unknown
// and deactivated keys are all authentication failures.
func (i *Identity) ResolveSensor(ctx context.Context, apiKey string) (model.Sensor, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return model.Sensor{}, apperr.Auth("missing_api_key")
	}
	sensor, err := i.sensors.GetSensorByAPIKey(ctx, apiKey)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Sensor{}, apperr.Auth("invalid_api_key")
	}
	if err != nil {
		return model.Sensor{}, storeFailure(err)
	}
	if !sensor.Active() {
		return model.Sensor{}, apperr.Auth("sensor_inactive")
	}
	return sensor, nil
}
