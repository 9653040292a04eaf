package telemetry

import (
	"context"
	"errors"

	"github.com/AquaSenseApp/aquasense/internal/apperr"
	"github.com/AquaSenseApp/aquasense/internal/model"
	"github.com/AquaSenseApp/aquasense/internal/repository"
)

var errForbidden = apperr.Authorization("forbidden")

// authorizeAccount validates an account id taken from a path against the
// caller. It never substitutes one for the other.
func authorizeAccount(callerID, accountID string) error {
	if callerID == "" {
		return apperr.Auth("unauthenticated")
	}
	if accountID != callerID {
		return errForbidden
	}
	return nil
}

// ownedSensor loads the sensor only if the caller owns it. A missing sensor
// and someone else's sensor produce the same error.
func ownedSensor(ctx context.Context, sensors repository.Sensors, callerID, sensorID string) (model.Sensor, error) {
	if callerID == "" {
		return model.Sensor{}, apperr.Auth("unauthenticated")
	}
	sensor, err := sensors.GetSensorByID(ctx, sensorID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Sensor{}, errForbidden
	}
	if err != nil {
		return model.Sensor{}, storeFailure(err)
	}
	if sensor.AccountID != callerID {
		return model.Sensor{}, errForbidden
	}
	return sensor, nil
}

func ownedAlert(ctx context.Context, alerts repository.Alerts, callerID, alertID string) (model.AlertRecord, error) {
	if callerID == "" {
		return model.AlertRecord{}, apperr.Auth("unauthenticated")
	}
	record, err := alerts.GetAlertRecord(ctx, alertID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.AlertRecord{}, errForbidden
	}
	if err != nil {
		return model.AlertRecord{}, storeFailure(err)
	}
	if record.AccountID != callerID {
		return model.AlertRecord{}, errForbidden
	}
	return record, nil
}
