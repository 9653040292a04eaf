package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/AquaSenseApp/aquasense/internal/model"
	"github.com/AquaSenseApp/aquasense/internal/repository"
)

const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgInvalidTextRepresent = "22P02"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

var _ repository.Tx = (*Queries)(nil)

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// mapError turns driver errors into the repository sentinels. Ids that are
// not valid UUIDs can never match a row and a missing parent row reads the
// same way, so both are reported as not found.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", repository.ErrDuplicate, pgErr.ConstraintName)
		case pgForeignKeyViolation, pgInvalidTextRepresent:
			return repository.ErrNotFound
		}
	}
	return err
}

func (q *Queries) CreateAccount(ctx context.Context, account model.Account) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO accounts (id, username, full_name, email, password_hash, organization_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, account.ID, account.Username, account.FullName, account.Email, account.PasswordHash,
		string(account.OrganizationType), account.CreatedAt, account.UpdatedAt)
	return mapError(err)
}

func (q *Queries) GetAccountByID(ctx context.Context, accountID string) (model.Account, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, username, full_name, email, password_hash, organization_type, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, accountID)
	return scanAccount(row)
}

func (q *Queries) GetAccountByEmail(ctx context.Context, email string) (model.Account, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, username, full_name, email, password_hash, organization_type, created_at, updated_at
		FROM accounts
		WHERE email = $1
	`, email)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (model.Account, error) {
	var account model.Account
	var orgType string
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.FullName,
		&account.Email,
		&account.PasswordHash,
		&orgType,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return model.Account{}, mapError(err)
	}
	account.OrganizationType = model.OrganizationType(orgType)
	return account, nil
}

// DeleteAccount walks the ownership chain leaf first. Callers outside a
// transaction should use Store.DeleteAccount.
func (q *Queries) DeleteAccount(ctx context.Context, accountID string) (bool, error) {
	steps := []string{
		`DELETE FROM alerts WHERE reading_id IN (
			SELECT r.id FROM readings r JOIN sensors s ON s.id = r.sensor_id WHERE s.account_id = $1
		)`,
		`DELETE FROM readings WHERE sensor_id IN (SELECT id FROM sensors WHERE account_id = $1)`,
		`DELETE FROM sensors WHERE account_id = $1`,
	}
	for _, stmt := range steps {
		if _, err := q.db.Exec(ctx, stmt, accountID); err != nil {
			return false, mapError(err)
		}
	}
	tag, err := q.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() > 0, nil
}

const sensorColumns = `id, account_id, sensor_name, location, api_key, status, created_at, updated_at`

func (q *Queries) CreateSensor(ctx context.Context, sensor model.Sensor) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO sensors (id, account_id, sensor_name, location, api_key, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sensor.ID, sensor.AccountID, sensor.Name, sensor.Location, sensor.APIKey,
		string(sensor.Status), sensor.CreatedAt, sensor.UpdatedAt)
	return mapError(err)
}

func (q *Queries) GetSensorByID(ctx context.Context, sensorID string) (model.Sensor, error) {
	row := q.db.QueryRow(ctx, `SELECT `+sensorColumns+` FROM sensors WHERE id = $1`, sensorID)
	return scanSensor(row)
}

func (q *Queries) GetSensorByAPIKey(ctx context.Context, apiKey string) (model.Sensor, error) {
	row := q.db.QueryRow(ctx, `SELECT `+sensorColumns+` FROM sensors WHERE api_key = $1`, apiKey)
	return scanSensor(row)
}

func (q *Queries) ListSensorsByAccount(ctx context.Context, accountID string) ([]model.Sensor, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+sensorColumns+`
		FROM sensors
		WHERE account_id = $1
		ORDER BY created_at ASC, id ASC
	`, accountID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	sensors := []model.Sensor{}
	for rows.Next() {
		sensor, err := scanSensor(rows)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, sensor)
	}
	return sensors, mapError(rows.Err())
}

func (q *Queries) UpdateSensorStatus(ctx context.Context, sensorID string, status model.SensorStatus, updatedAt time.Time) (model.Sensor, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE sensors
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+sensorColumns, sensorID, string(status), updatedAt)
	return scanSensor(row)
}

func (q *Queries) DeleteSensor(ctx context.Context, sensorID string) (bool, error) {
	steps := []string{
		`DELETE FROM alerts WHERE reading_id IN (SELECT id FROM readings WHERE sensor_id = $1)`,
		`DELETE FROM readings WHERE sensor_id = $1`,
	}
	for _, stmt := range steps {
		if _, err := q.db.Exec(ctx, stmt, sensorID); err != nil {
			return false, mapError(err)
		}
	}
	tag, err := q.db.Exec(ctx, `DELETE FROM sensors WHERE id = $1`, sensorID)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanSensor(row pgx.Row) (model.Sensor, error) {
	var sensor model.Sensor
	var status string
	err := row.Scan(
		&sensor.ID,
		&sensor.AccountID,
		&sensor.Name,
		&sensor.Location,
		&sensor.APIKey,
		&status,
		&sensor.CreatedAt,
		&sensor.UpdatedAt,
	)
	if err != nil {
		return model.Sensor{}, mapError(err)
	}
	sensor.Status = model.SensorStatus(status)
	return sensor, nil
}

func (q *Queries) CreateReading(ctx context.Context, reading model.Reading) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO readings (id, sensor_id, ph, turbidity, flow_rate, risk_level, ai_explanation, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, reading.ID, reading.SensorID, reading.PH, reading.Turbidity, reading.FlowRate,
		reading.RiskLevel, reading.AIExplanation, reading.CreatedAt)
	return mapError(err)
}

func (q *Queries) ListReadingsSince(ctx context.Context, sensorID string, since time.Time) ([]model.Reading, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, sensor_id, ph, turbidity, flow_rate, risk_level, ai_explanation, created_at
		FROM readings
		WHERE sensor_id = $1 AND created_at >= $2
		ORDER BY created_at ASC
	`, sensorID, since)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	readings := []model.Reading{}
	for rows.Next() {
		var r model.Reading
		if err := rows.Scan(&r.ID, &r.SensorID, &r.PH, &r.Turbidity, &r.FlowRate, &r.RiskLevel, &r.AIExplanation, &r.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		readings = append(readings, r)
	}
	return readings, mapError(rows.Err())
}

func (q *Queries) DeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if _, err := q.db.Exec(ctx, `
		DELETE FROM alerts WHERE reading_id IN (SELECT id FROM readings WHERE created_at < $1)
	`, cutoff); err != nil {
		return 0, mapError(err)
	}
	tag, err := q.db.Exec(ctx, `DELETE FROM readings WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) CreateAlert(ctx context.Context, alert model.Alert) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO alerts (id, reading_id, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, alert.ID, alert.ReadingID, alert.Message, string(alert.Status), alert.CreatedAt, alert.UpdatedAt)
	return mapError(err)
}

const alertRecordSelect = `
	SELECT a.id, a.reading_id, a.message, a.status, a.created_at, a.updated_at,
		s.id, s.sensor_name, s.location, s.account_id,
		r.ph, r.turbidity, r.flow_rate, r.risk_level, r.created_at
	FROM alerts a
	JOIN readings r ON r.id = a.reading_id
	JOIN sensors s ON s.id = r.sensor_id
`

func (q *Queries) GetAlertRecord(ctx context.Context, alertID string) (model.AlertRecord, error) {
	row := q.db.QueryRow(ctx, alertRecordSelect+` WHERE a.id = $1`, alertID)
	return scanAlertRecord(row)
}

func (q *Queries) ListAlertRecordsByAccount(ctx context.Context, accountID string) ([]model.AlertRecord, error) {
	rows, err := q.db.Query(ctx, alertRecordSelect+`
		WHERE s.account_id = $1
		ORDER BY a.created_at DESC, a.seq DESC
	`, accountID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	records := []model.AlertRecord{}
	for rows.Next() {
		record, err := scanAlertRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, mapError(rows.Err())
}

func (q *Queries) UpdateAlertStatus(ctx context.Context, alertID string, status model.AlertStatus, updatedAt time.Time) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE alerts SET status = $2, updated_at = $3 WHERE id = $1
	`, alertID, string(status), updatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanAlertRecord(row pgx.Row) (model.AlertRecord, error) {
	var rec model.AlertRecord
	var status string
	err := row.Scan(
		&rec.ID,
		&rec.ReadingID,
		&rec.Message,
		&status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.SensorID,
		&rec.SensorName,
		&rec.SensorLocation,
		&rec.AccountID,
		&rec.PH,
		&rec.Turbidity,
		&rec.FlowRate,
		&rec.RiskLevel,
		&rec.ReadingAt,
	)
	if err != nil {
		return model.AlertRecord{}, mapError(err)
	}
	rec.Status = model.AlertStatus(status)
	return rec, nil
}
