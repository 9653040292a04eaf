package telemetry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/AquaSenseApp/aquasense/internal/apperr"
	"github.com/AquaSenseApp/aquasense/internal/model"
	"github.com/AquaSenseApp/aquasense/internal/notify"
	"github.com/AquaSenseApp/aquasense/internal/repository"
	"github.com/AquaSenseApp/aquasense/internal/risk"
)

const notifyTimeout = 5 * time.Second

type ReadingInput struct {
	PH        float64
	Turbidity float64
	FlowRate  float64
}

type IngestResult struct {
	Reading model.Reading
	// Alert is set when the reading was classified unstable.
	Alert *model.Alert
}

type Ingestor struct {
	deps Deps
}

// Ingest classifies the reading and stores it under sensor together with
// its alert, if any, in one transaction. The sensor is re-read inside the
// transaction so a sensor deactivated or deleted after it was resolved
// cannot accept the reading.
//
// Identical values submitted twice are two readings.
func (i *Ingestor) Ingest(ctx context.Context, sensor model.Sensor, in ReadingInput) (IngestResult, error) {
	result, err := i.ingest(ctx, sensor, in)
	if err != nil {
		i.deps.Metrics.ObserveIngestFailure(apperr.KindOf(err).String())
		return IngestResult{}, err
	}

	i.deps.Metrics.ObserveReading(result.Reading.RiskLevel)
	if result.Alert != nil {
		i.deps.Metrics.ObserveAlert()
		i.publish(ctx, sensor, result)
	}
	return result, nil
}

func (i *Ingestor) ingest(ctx context.Context, sensor model.Sensor, in ReadingInput) (IngestResult, error) {
	assessment, err := risk.Classify(in.PH, in.Turbidity, in.FlowRate)
	if err != nil {
		return IngestResult{}, err
	}

	now := i.deps.Now()
	reading := model.Reading{
		ID:            i.deps.NewID(),
		SensorID:      sensor.ID,
		PH:            in.PH,
		Turbidity:     in.Turbidity,
		FlowRate:      in.FlowRate,
		RiskLevel:     string(assessment.Level),
		AIExplanation: assessment.Explanation,
		CreatedAt:     now,
	}
	var alert *model.Alert
	if assessment.Unstable() {
		alert = &model.Alert{
			ID:        i.deps.NewID(),
			ReadingID: reading.ID,
			Message:   alertMessage(sensor, assessment),
			Status:    model.AlertActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	err = i.deps.Store.WithTx(ctx, func(tx repository.Tx) error {
		current, err := tx.GetSensorByID(ctx, sensor.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Auth("invalid_api_key")
		}
		if err != nil {
			return err
		}
		if !current.Active() {
			return apperr.Auth("sensor_inactive")
		}
		// A sensor deleted concurrently fails the reading's foreign key.
		if err := tx.CreateReading(ctx, reading); errors.Is(err, repository.ErrNotFound) {
			return apperr.Auth("invalid_api_key")
		} else if err != nil {
			return err
		}
		if alert != nil {
			return tx.CreateAlert(ctx, *alert)
		}
		return nil
	})
	if err != nil {
		return IngestResult{}, storeFailure(err)
	}
	return IngestResult{Reading: reading, Alert: alert}, nil
}

// publish runs after commit. The event may be lost; the alert row is not.
func (i *Ingestor) publish(ctx context.Context, sensor model.Sensor, result IngestResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	event := notify.AlertEvent{
		AlertID:   result.Alert.ID,
		ReadingID: result.Reading.ID,
		SensorID:  sensor.ID,
		AccountID: sensor.AccountID,
		RiskLevel: result.Reading.RiskLevel,
		Message:   result.Alert.Message,
		PH:        result.Reading.PH,
		Turbidity: result.Reading.Turbidity,
		FlowRate:  result.Reading.FlowRate,
		CreatedAt: result.Alert.CreatedAt,
	}
	if err := i.deps.Notifier.PublishAlert(ctx, event); err != nil {
		i.deps.Logger.Warn("alert event not published",
			zap.String("alert_id", event.AlertID),
			zap.String("sensor_id", event.SensorID),
			zap.Error(err))
	}
}

func alertMessage(sensor model.Sensor, assessment risk.Assessment) string {
	return "Sensor " + sensor.Name + ": " + assessment.Explanation
}
