// Package memstore is an in-memory repository.Store. It backs the service
// and HTTP tests and lets the server run without PostgreSQL.
//
// Transactions work on a copy of the dataset that replaces the live one
// only when fn succeeds, so a failed transaction leaves no trace.
package memstore

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/AquaSenseApp/aquasense/internal/model"
	"github.com/AquaSenseApp/aquasense/internal/repository"
)

type storedAlert struct {
	model.Alert
	seq int64
}

type dataset struct {
	accounts map[string]model.Account
	sensors  map[string]model.Sensor
	readings map[string]model.Reading
	alerts   map[string]storedAlert
	seq      int64
}

func (d *dataset) clone() *dataset {
	return &dataset{
		accounts: maps.Clone(d.accounts),
		sensors:  maps.Clone(d.sensors),
		readings: maps.Clone(d.readings),
		alerts:   maps.Clone(d.alerts),
		seq:      d.seq,
	}
}

type Store struct {
	mu     sync.Mutex
	data   *dataset
	faults map[string]error
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		data: &dataset{
			accounts: map[string]model.Account{},
			sensors:  map[string]model.Sensor{},
			readings: map[string]model.Reading{},
			alerts:   map[string]storedAlert{},
		},
		faults: map[string]error{},
	}
}

// FailOn makes every later call of the named repository method return err.
// A nil err clears the fault.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) WithTx(ctx context.Context, fn func(repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	draft := s.data.clone()
	if err := fn(&view{data: draft, faults: s.faults}); err != nil {
		return err
	}
	s.data = draft
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().fault(ctx, "Ping")
}

// live returns a view over the committed dataset. Callers hold s.mu.
func (s *Store) live() *view {
	return &view{data: s.data, faults: s.faults}
}

func (s *Store) CreateAccount(ctx context.Context, account model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().CreateAccount(ctx, account)
}

func (s *Store) GetAccountByID(ctx context.Context, accountID string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().GetAccountByID(ctx, accountID)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().GetAccountByEmail(ctx, email)
}

func (s *Store) DeleteAccount(ctx context.Context, accountID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().DeleteAccount(ctx, accountID)
}

func (s *Store) CreateSensor(ctx context.Context, sensor model.Sensor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().CreateSensor(ctx, sensor)
}

func (s *Store) GetSensorByID(ctx context.Context, sensorID string) (model.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().GetSensorByID(ctx, sensorID)
}

func (s *Store) GetSensorByAPIKey(ctx context.Context, apiKey string) (model.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().GetSensorByAPIKey(ctx, apiKey)
}

func (s *Store) ListSensorsByAccount(ctx context.Context, accountID string) ([]model.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().ListSensorsByAccount(ctx, accountID)
}

func (s *Store) UpdateSensorStatus(ctx context.Context, sensorID string, status model.SensorStatus, updatedAt time.Time) (model.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().UpdateSensorStatus(ctx, sensorID, status, updatedAt)
}

func (s *Store) DeleteSensor(ctx context.Context, sensorID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().DeleteSensor(ctx, sensorID)
}

func (s *Store) CreateReading(ctx context.Context, reading model.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().CreateReading(ctx, reading)
}

func (s *Store) ListReadingsSince(ctx context.Context, sensorID string, since time.Time) ([]model.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().ListReadingsSince(ctx, sensorID, since)
}

func (s *Store) DeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().DeleteReadingsBefore(ctx, cutoff)
}

func (s *Store) CreateAlert(ctx context.Context, alert model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().CreateAlert(ctx, alert)
}

func (s *Store) GetAlertRecord(ctx context.Context, alertID string) (model.AlertRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().GetAlertRecord(ctx, alertID)
}

func (s *Store) ListAlertRecordsByAccount(ctx context.Context, accountID string) ([]model.AlertRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().ListAlertRecordsByAccount(ctx, accountID)
}

func (s *Store) UpdateAlertStatus(ctx context.Context, alertID string, status model.AlertStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().UpdateAlertStatus(ctx, alertID, status, updatedAt)
}

// view implements repository.Tx over one dataset without locking.
type view struct {
	data   *dataset
	faults map[string]error
}

func (v *view) fault(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return v.faults[op]
}

func (v *view) CreateAccount(ctx context.Context, account model.Account) error {
	if err := v.fault(ctx, "CreateAccount"); err != nil {
		return err
	}
	if _, ok := v.data.accounts[account.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, existing := range v.data.accounts {
		if existing.Email == account.Email {
			return repository.ErrDuplicate
		}
	}
	v.data.accounts[account.ID] = account
	return nil
}

func (v *view) GetAccountByID(ctx context.Context, accountID string) (model.Account, error) {
	if err := v.fault(ctx, "GetAccountByID"); err != nil {
		return model.Account{}, err
	}
	account, ok := v.data.accounts[accountID]
	if !ok {
		return model.Account{}, repository.ErrNotFound
	}
	return account, nil
}

func (v *view) GetAccountByEmail(ctx context.Context, email string) (model.Account, error) {
	if err := v.fault(ctx, "GetAccountByEmail"); err != nil {
		return model.Account{}, err
	}
	for _, account := range v.data.accounts {
		if account.Email == email {
			return account, nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

func (v *view) DeleteAccount(ctx context.Context, accountID string) (bool, error) {
	if err := v.fault(ctx, "DeleteAccount"); err != nil {
		return false, err
	}
	for id, sensor := range v.data.sensors {
		if sensor.AccountID == accountID {
			v.deleteSensorTree(id)
		}
	}
	if _, ok := v.data.accounts[accountID]; !ok {
		return false, nil
	}
	delete(v.data.accounts, accountID)
	return true, nil
}

func (v *view) CreateSensor(ctx context.Context, sensor model.Sensor) error {
	if err := v.fault(ctx, "CreateSensor"); err != nil {
		return err
	}
	if _, ok := v.data.accounts[sensor.AccountID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := v.data.sensors[sensor.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, existing := range v.data.sensors {
		if existing.APIKey == sensor.APIKey {
			return repository.ErrDuplicate
		}
	}
	sensor.Location = cloneString(sensor.Location)
	v.data.sensors[sensor.ID] = sensor
	return nil
}

func (v *view) GetSensorByID(ctx context.Context, sensorID string) (model.Sensor, error) {
	if err := v.fault(ctx, "GetSensorByID"); err != nil {
		return model.Sensor{}, err
	}
	sensor, ok := v.data.sensors[sensorID]
	if !ok {
		return model.Sensor{}, repository.ErrNotFound
	}
	sensor.Location = cloneString(sensor.Location)
	return sensor, nil
}

func (v *view) GetSensorByAPIKey(ctx context.Context, apiKey string) (model.Sensor, error) {
	if err := v.fault(ctx, "GetSensorByAPIKey"); err != nil {
		return model.Sensor{}, err
	}
	for _, sensor := range v.data.sensors {
		if sensor.APIKey == apiKey {
			sensor.Location = cloneString(sensor.Location)
			return sensor, nil
		}
	}
	return model.Sensor{}, repository.ErrNotFound
}

func (v *view) ListSensorsByAccount(ctx context.Context, accountID string) ([]model.Sensor, error) {
	if err := v.fault(ctx, "ListSensorsByAccount"); err != nil {
		return nil, err
	}
	sensors := []model.Sensor{}
	for _, sensor := range v.data.sensors {
		if sensor.AccountID == accountID {
			sensor.Location = cloneString(sensor.Location)
			sensors = append(sensors, sensor)
		}
	}
	sort.Slice(sensors, func(i, j int) bool {
		if !sensors[i].CreatedAt.Equal(sensors[j].CreatedAt) {
			return sensors[i].CreatedAt.Before(sensors[j].CreatedAt)
		}
		return sensors[i].ID < sensors[j].ID
	})
	return sensors, nil
}

func (v *view) UpdateSensorStatus(ctx context.Context, sensorID string, status model.SensorStatus, updatedAt time.Time) (model.Sensor, error) {
	if err := v.fault(ctx, "UpdateSensorStatus"); err != nil {
		return model.Sensor{}, err
	}
	sensor, ok := v.data.sensors[sensorID]
	if !ok {
		return model.Sensor{}, repository.ErrNotFound
	}
	sensor.Status = status
	sensor.UpdatedAt = updatedAt
	v.data.sensors[sensorID] = sensor
	sensor.Location = cloneString(sensor.Location)
	return sensor, nil
}

func (v *view) DeleteSensor(ctx context.Context, sensorID string) (bool, error) {
	if err := v.fault(ctx, "DeleteSensor"); err != nil {
		return false, err
	}
	if _, ok := v.data.sensors[sensorID]; !ok {
		return false, nil
	}
	v.deleteSensorTree(sensorID)
	return true, nil
}

func (v *view) deleteSensorTree(sensorID string) {
	for id, reading := range v.data.readings {
		if reading.SensorID == sensorID {
			v.deleteReading(id)
		}
	}
	delete(v.data.sensors, sensorID)
}

func (v *view) deleteReading(readingID string) {
	for id, alert := range v.data.alerts {
		if alert.ReadingID == readingID {
			delete(v.data.alerts, id)
		}
	}
	delete(v.data.readings, readingID)
}

func (v *view) CreateReading(ctx context.Context, reading model.Reading) error {
	if err := v.fault(ctx, "CreateReading"); err != nil {
		return err
	}
	if _, ok := v.data.sensors[reading.SensorID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := v.data.readings[reading.ID]; ok {
		return repository.ErrDuplicate
	}
	v.data.readings[reading.ID] = reading
	return nil
}

func (v *view) ListReadingsSince(ctx context.Context, sensorID string, since time.Time) ([]model.Reading, error) {
	if err := v.fault(ctx, "ListReadingsSince"); err != nil {
		return nil, err
	}
	readings := []model.Reading{}
	for _, reading := range v.data.readings {
		if reading.SensorID == sensorID && !reading.CreatedAt.Before(since) {
			readings = append(readings, reading)
		}
	}
	sort.Slice(readings, func(i, j int) bool {
		return readings[i].CreatedAt.Before(readings[j].CreatedAt)
	})
	return readings, nil
}

func (v *view) DeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := v.fault(ctx, "DeleteReadingsBefore"); err != nil {
		return 0, err
	}
	var removed int64
	for id, reading := range v.data.readings {
		if reading.CreatedAt.Before(cutoff) {
			v.deleteReading(id)
			removed++
		}
	}
	return removed, nil
}

func (v *view) CreateAlert(ctx context.Context, alert model.Alert) error {
	if err := v.fault(ctx, "CreateAlert"); err != nil {
		return err
	}
	if _, ok := v.data.readings[alert.ReadingID]; !ok {
		return repository.ErrNotFound
	}
	for id, existing := range v.data.alerts {
		if id == alert.ID || existing.ReadingID == alert.ReadingID {
			return repository.ErrDuplicate
		}
	}
	v.data.seq++
	v.data.alerts[alert.ID] = storedAlert{Alert: alert, seq: v.data.seq}
	return nil
}

func (v *view) GetAlertRecord(ctx context.Context, alertID string) (model.AlertRecord, error) {
	if err := v.fault(ctx, "GetAlertRecord"); err != nil {
		return model.AlertRecord{}, err
	}
	alert, ok := v.data.alerts[alertID]
	if !ok {
		return model.AlertRecord{}, repository.ErrNotFound
	}
	return v.record(alert), nil
}

func (v *view) ListAlertRecordsByAccount(ctx context.Context, accountID string) ([]model.AlertRecord, error) {
	if err := v.fault(ctx, "ListAlertRecordsByAccount"); err != nil {
		return nil, err
	}
	var matched []storedAlert
	for _, alert := range v.data.alerts {
		reading := v.data.readings[alert.ReadingID]
		if v.data.sensors[reading.SensorID].AccountID == accountID {
			matched = append(matched, alert)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].seq > matched[j].seq
	})
	records := make([]model.AlertRecord, 0, len(matched))
	for _, alert := range matched {
		records = append(records, v.record(alert))
	}
	return records, nil
}

func (v *view) record(alert storedAlert) model.AlertRecord {
	reading := v.data.readings[alert.ReadingID]
	sensor := v.data.sensors[reading.SensorID]
	return model.AlertRecord{
		Alert:          alert.Alert,
		SensorID:       sensor.ID,
		SensorName:     sensor.Name,
		SensorLocation: cloneString(sensor.Location),
		AccountID:      sensor.AccountID,
		PH:             reading.PH,
		Turbidity:      reading.Turbidity,
		FlowRate:       reading.FlowRate,
		RiskLevel:      reading.RiskLevel,
		ReadingAt:      reading.CreatedAt,
	}
}

func (v *view) UpdateAlertStatus(ctx context.Context, alertID string, status model.AlertStatus, updatedAt time.Time) error {
	if err := v.fault(ctx, "UpdateAlertStatus"); err != nil {
		return err
	}
	alert, ok := v.data.alerts[alertID]
	if !ok {
		return repository.ErrNotFound
	}
	alert.Status = status
	alert.UpdatedAt = updatedAt
	v.data.alerts[alertID] = alert
	return nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
