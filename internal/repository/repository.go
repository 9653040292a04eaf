// Package repository declares the storage contracts of the telemetry
// services. Entities stay plain data; the implementations (internal/db for
// PostgreSQL, internal/memstore for tests and local runs) own all storage
// logic, including the explicit cascade deletes along the ownership chain
// Account -> Sensor -> Reading -> Alert.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AquaSenseApp/aquasense/internal/model"
)

var (
	ErrNotFound  = errors.New("repository: not found")
	ErrDuplicate = errors.New("repository: duplicate key")
)

type Accounts interface {
	CreateAccount(ctx context.Context, account model.Account) error
	GetAccountByID(ctx context.Context, accountID string) (model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (model.Account, error)
	// DeleteAccount removes the account and every sensor, reading and alert
	// beneath it. It reports false when the account did not exist.
	DeleteAccount(ctx context.Context, accountID string) (bool, error)
}

type Sensors interface {
	CreateSensor(ctx context.Context, sensor model.Sensor) error
	GetSensorByID(ctx context.Context, sensorID string) (model.Sensor, error)
	GetSensorByAPIKey(ctx context.Context, apiKey string) (model.Sensor, error)
	ListSensorsByAccount(ctx context.Context, accountID string) ([]model.Sensor, error)
	UpdateSensorStatus(ctx context.Context, sensorID string, status model.SensorStatus, updatedAt time.Time) (model.Sensor, error)
	DeleteSensor(ctx context.Context, sensorID string) (bool, error)
}

type Readings interface {
	CreateReading(ctx context.Context, reading model.Reading) error
	// ListReadingsSince returns the sensor's readings created at or after
	// since, oldest first.
	ListReadingsSince(ctx context.Context, sensorID string, since time.Time) ([]model.Reading, error)
	// DeleteReadingsBefore removes readings created before cutoff together
	// with their alerts and returns the number of readings removed.
	DeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Alerts interface {
	CreateAlert(ctx context.Context, alert model.Alert) error
	GetAlertRecord(ctx context.Context, alertID string) (model.AlertRecord, error)
	// ListAlertRecordsByAccount returns alerts of every sensor owned by the
	// account, newest first. Alerts sharing a created_at come in reverse
	// insertion order, so the latest insert is always listed first.
	ListAlertRecordsByAccount(ctx context.Context, accountID string) ([]model.AlertRecord, error)
	UpdateAlertStatus(ctx context.Context, alertID string, status model.AlertStatus, updatedAt time.Time) error
}

// Tx is the set of repositories bound to one transaction.
type Tx interface {
	Accounts
	Sensors
	Readings
	Alerts
}

// Store exposes the repositories outside any transaction and runs fn
// atomically: either every write made through the Tx commits or none does.
type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(Tx) error) error
	Ping(ctx context.Context) error
}
