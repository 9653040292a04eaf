package telemetry

import (
	"context"

	"go.uber.org/zap"

	"github.com/AquaSenseApp/aquasense/internal/model"
	"github.com/AquaSenseApp/aquasense/internal/repository"
)

type AlertQuery struct {
	deps Deps
}

// List returns the alerts of every sensor the caller owns, newest first.
// accountID comes from the request path and must equal the caller.
func (q *AlertQuery) List(ctx context.Context, callerID, accountID string) ([]model.AlertRecord, error) {
	if err := authorizeAccount(callerID, accountID); err != nil {
		return nil, err
	}
	records, err := q.deps.Store.ListAlertRecordsByAccount(ctx, callerID)
	if err != nil {
		return nil, storeFailure(err)
	}
	return records, nil
}

// Resolve marks the alert resolved. Resolving a resolved alert is a no-op.
func (q *AlertQuery) Resolve(ctx context.Context, callerID, alertID string) (model.AlertRecord, error) {
	var record model.AlertRecord
	err := q.deps.Store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		record, err = ownedAlert(ctx, tx, callerID, alertID)
		if err != nil {
			return err
		}
		if record.Status == model.AlertResolved {
			return nil
		}
		now := q.deps.Now()
		if err := tx.UpdateAlertStatus(ctx, alertID, model.AlertResolved, now); err != nil {
			return err
		}
		record.Status = model.AlertResolved
		record.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.AlertRecord{}, storeFailure(err)
	}
	q.deps.Logger.Info("alert resolved", zap.String("alert_id", alertID), zap.String("account_id", callerID))
	return record, nil
}
