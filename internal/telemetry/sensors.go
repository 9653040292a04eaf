package telemetry

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/AquaSenseApp/aquasense/internal/apperr"
	"github.com/AquaSenseApp/aquasense/internal/model"
	"github.com/AquaSenseApp/aquasense/internal/repository"
)

const apiKeyAttempts = 3

type RegisterSensorInput struct {
	Name     string
	Location *string
}

type SensorRegistry struct {
	deps Deps
}

// Register creates an active sensor owned by the caller with a fresh API
// key. A key collision is retried with a new key; the unique index in the
// store is what guarantees no two sensors ever share one.
func (r *SensorRegistry) Register(ctx context.Context, callerID string, in RegisterSensorInput) (model.Sensor, error) {
	if callerID == "" {
		return model.Sensor{}, apperr.Auth("unauthenticated")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Sensor{}, apperr.Validation("missing_sensor_name")
	}
	var location *string
	if in.Location != nil {
		if trimmed := strings.TrimSpace(*in.Location); trimmed != "" {
			location = &trimmed
		}
	}

	var lastErr error
	for attempt := 0; attempt < apiKeyAttempts; attempt++ {
		apiKey, err := r.deps.NewAPIKey()
		if err != nil {
			return model.Sensor{}, apperr.Store("server_error", err)
		}
		now := r.deps.Now()
		sensor := model.Sensor{
			ID:        r.deps.NewID(),
			AccountID: callerID,
			Name:      name,
			Location:  location,
			APIKey:    apiKey,
			Status:    model.SensorActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err = r.deps.Store.CreateSensor(ctx, sensor)
		switch {
		case err == nil:
			r.deps.Logger.Info("sensor registered", zap.String("sensor_id", sensor.ID), zap.String("account_id", callerID))
			return sensor, nil
		case errors.Is(err, repository.ErrDuplicate):
			lastErr = err
			r.deps.Logger.Warn("api key collision", zap.Int("attempt", attempt+1))
		case errors.Is(err, repository.ErrNotFound):
			// The token outlived its account.
			return model.Sensor{}, apperr.Auth("unknown_account")
		default:
			return model.Sensor{}, storeFailure(err)
		}
	}
	return model.Sensor{}, apperr.Conflict("api_key_conflict", lastErr)
}

func (r *SensorRegistry) List(ctx context.Context, callerID, accountID string) ([]model.Sensor, error) {
	if err := authorizeAccount(callerID, accountID); err != nil {
		return nil, err
	}
	sensors, err := r.deps.Store.ListSensorsByAccount(ctx, callerID)
	if err != nil {
		return nil, storeFailure(err)
	}
	return sensors, nil
}

// SetStatus activates or deactivates a sensor. Deactivated sensors keep
// their data but can no longer submit readings.
func (r *SensorRegistry) SetStatus(ctx context.Context, callerID, sensorID, status string) (model.Sensor, error) {
	next := model.SensorStatus(strings.TrimSpace(status))
	if !next.Valid() {
		return model.Sensor{}, apperr.Validation("invalid_status")
	}

	var updated model.Sensor
	err := r.deps.Store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := ownedSensor(ctx, tx, callerID, sensorID); err != nil {
			return err
		}
		var err error
		updated, err = tx.UpdateSensorStatus(ctx, sensorID, next, r.deps.Now())
		return err
	})
	if err != nil {
		return model.Sensor{}, storeFailure(err)
	}
	return updated, nil
}

// Delete removes the sensor with its readings and alerts.
func (r *SensorRegistry) Delete(ctx context.Context, callerID, sensorID string) error {
	err := r.deps.Store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := ownedSensor(ctx, tx, callerID, sensorID); err != nil {
			return err
		}
		_, err := tx.DeleteSensor(ctx, sensorID)
		return err
	})
	if err != nil {
		return storeFailure(err)
	}
	r.deps.Logger.Info("sensor deleted", zap.String("sensor_id", sensorID), zap.String("account_id", callerID))
	return nil
}
