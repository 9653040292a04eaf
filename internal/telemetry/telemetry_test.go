package telemetry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AquaSenseApp/aquasense/internal/apperr"
	"github.com/AquaSenseApp/aquasense/internal/auth"
	"github.com/AquaSenseApp/aquasense/internal/memstore"
	"github.com/AquaSenseApp/aquasense/internal/metrics"
	"github.com/AquaSenseApp/aquasense/internal/model"
	"github.com/AquaSenseApp/aquasense/internal/notify"
	"github.com/AquaSenseApp/aquasense/internal/repository"
	"github.com/AquaSenseApp/aquasense/internal/risk"
)

const testSecret = "test-secret"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.AlertEvent
	err    error
}

func (n *recordingNotifier) PublishAlert(_ context.Context, event notify.AlertEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

type fixture struct {
	svc      *Services
	store    *memstore.Store
	clock    *fakeClock
	notifier *recordingNotifier
	registry *prometheus.Registry
}

func newFixture(t *testing.T, mutate ...func(*Deps)) *fixture {
	t.Helper()
	f := &fixture{
		store:    memstore.New(),
		clock:    &fakeClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
		registry: prometheus.NewRegistry(),
	}
	deps := Deps{
		Store:    f.store,
		Metrics:  metrics.New(f.registry),
		Notifier: f.notifier,
		Now:      f.clock.Now,
	}
	for _, m := range mutate {
		m(&deps)
	}
	f.svc = New(Config{
		JWTSecret:      testSecret,
		JWTIssuer:      "aquasense-test",
		AccessTokenTTL: time.Hour,
		DefaultWindow:  24 * time.Hour,
		MaxWindow:      7 * 24 * time.Hour,
	}, deps)
	return f
}

func (f *fixture) account(t *testing.T, email string) model.Account {
	t.Helper()
	account, err := f.svc.Accounts.Register(context.Background(), RegisterAccountInput{
		Username:         "ops",
		FullName:         "Plant Operator",
		Email:            email,
		Password:         "correct-horse",
		OrganizationType: "Hospital",
	})
	require.NoError(t, err)
	return account
}

func (f *fixture) sensor(t *testing.T, accountID, name string) model.Sensor {
	t.Helper()
	sensor, err := f.svc.Sensors.Register(context.Background(), accountID, RegisterSensorInput{Name: name})
	require.NoError(t, err)
	return sensor
}

func (f *fixture) ingest(t *testing.T, sensor model.Sensor, ph, turbidity float64) IngestResult {
	t.Helper()
	result, err := f.svc.Ingestor.Ingest(context.Background(), sensor, ReadingInput{PH: ph, Turbidity: turbidity, FlowRate: 1.5})
	require.NoError(t, err)
	return result
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, apperr.Is(err, kind), "expected %s error, got %v", kind, err)
}

func TestIngestUnstableRaisesOneAlert(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	sensor := f.sensor(t, account.ID, "intake")

	result := f.ingest(t, sensor, 6.0, 2)
	assert.Equal(t, string(risk.Unstable), result.Reading.RiskLevel)
	assert.NotEmpty(t, result.Reading.AIExplanation)
	require.NotNil(t, result.Alert)
	assert.Equal(t, model.AlertActive, result.Alert.Status)
	assert.Equal(t, result.Reading.ID, result.Alert.ReadingID)

	alerts, err := f.svc.Alerts.List(context.Background(), account.ID, account.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, result.Alert.ID, alerts[0].ID)
	assert.Equal(t, sensor.ID, alerts[0].SensorID)
	assert.Equal(t, "intake", alerts[0].SensorName)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, result.Alert.ID, f.notifier.events[0].AlertID)
	assert.Equal(t, account.ID, f.notifier.events[0].AccountID)

	expected := `
# HELP aquasense_alerts_raised_total Alerts created by ingestion.
# TYPE aquasense_alerts_raised_total counter
aquasense_alerts_raised_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.registry, strings.NewReader(expected), "aquasense_alerts_raised_total"))
}

func TestIngestStableRaisesNoAlert(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	sensor := f.sensor(t, account.ID, "intake")

	result := f.ingest(t, sensor, 7.0, 1)
	assert.Equal(t, string(risk.Stable), result.Reading.RiskLevel)
	assert.Nil(t, result.Alert)

	alerts, err := f.svc.Alerts.List(context.Background(), account.ID, account.ID)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Empty(t, f.notifier.events)
}

func TestIngestDoesNotDeduplicate(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	sensor := f.sensor(t, account.ID, "intake")

	first := f.ingest(t, sensor, 6.0, 2)
	second := f.ingest(t, sensor, 6.0, 2)
	assert.NotEqual(t, first.Reading.ID, second.Reading.ID)
	assert.NotEqual(t, first.Alert.ID, second.Alert.ID)

	alerts, err := f.svc.Alerts.List(context.Background(), account.ID, account.ID)
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
}

func TestIngestRollsBackReadingWhenAlertInsertFails(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	sensor := f.sensor(t, account.ID, "intake")
	ctx := context.Background()

	f.store.FailOn("CreateAlert", errors.New("disk full"))
	_, err := f.svc.Ingestor.Ingest(ctx, sensor, ReadingInput{PH: 5.5, Turbidity: 9, FlowRate: 1})
	requireKind(t, err, apperr.KindStore)
	assert.Equal(t, "server_error", apperr.CodeOf(err))

	readings, err := f.store.ListReadingsSince(ctx, sensor.ID, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, readings, "reading must not survive without its alert")
	assert.Empty(t, f.notifier.events)
}

func TestIngestValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	sensor := f.sensor(t, account.ID, "intake")
	ctx := context.Background()

	inputs := []ReadingInput{
		{PH: math.NaN(), Turbidity: 1},
		{PH: 7, Turbidity: math.Inf(1)},
		{PH: 7, Turbidity: 1, FlowRate: math.NaN()},
		{PH: 15, Turbidity: 1},
	}
	for _, in := range inputs {
		_, err := f.svc.Ingestor.Ingest(ctx, sensor, in)
		requireKind(t, err, apperr.KindValidation)
	}
	readings, err := f.store.ListReadingsSince(ctx, sensor.ID, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, readings)
}

func TestIngestRejectsInactiveOrDeletedSensor(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	sensor := f.sensor(t, account.ID, "intake")
	ctx := context.Background()

	_, err := f.svc.Sensors.SetStatus(ctx, account.ID, sensor.ID, "inactive")
	require.NoError(t, err)
	_, err = f.svc.Ingestor.Ingest(ctx, sensor, ReadingInput{PH: 7, Turbidity: 1})
	requireKind(t, err, apperr.KindAuth)

	_, err = f.svc.Identity.ResolveSensor(ctx, sensor.APIKey)
	requireKind(t, err, apperr.KindAuth)

	require.NoError(t, f.svc.Sensors.Delete(ctx, account.ID, sensor.ID))
	_, err = f.svc.Ingestor.Ingest(ctx, sensor, ReadingInput{PH: 7, Turbidity: 1})
	requireKind(t, err, apperr.KindAuth)
}

func TestResolveSensor(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	sensor := f.sensor(t, account.ID, "intake")
	ctx := context.Background()

	resolved, err := f.svc.Identity.ResolveSensor(ctx, " "+sensor.APIKey+" ")
	require.NoError(t, err)
	assert.Equal(t, sensor.ID, resolved.ID)

	_, err = f.svc.Identity.ResolveSensor(ctx, "")
	requireKind(t, err, apperr.KindAuth)
	_, err = f.svc.Identity.ResolveSensor(ctx, "AQ-unknown")
	requireKind(t, err, apperr.KindAuth)
}

func TestNotifierFailureDoesNotFailIngest(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")
	account := f.account(t, "a@plant.example")
	sensor := f.sensor(t, account.ID, "intake")

	result := f.ingest(t, sensor, 6.0, 2)
	require.NotNil(t, result.Alert)
	alerts, err := f.svc.Alerts.List(context.Background(), account.ID, account.ID)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestAnalyzeAveragesAcrossReadings(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	sensor := f.sensor(t, account.ID, "intake")

	f.ingest(t, sensor, 6.0, 2)
	f.ingest(t, sensor, 8.0, 1)

	report, err := f.svc.Analytics.Analyze(context.Background(), account.ID, sensor.ID, 0)
	require.NoError(t, err)
	assert.False(t, report.NoData())
	assert.Equal(t, sensor.ID, report.SensorID)
	assert.Equal(t, "Last 24 Hours", report.Period)
	assert.Equal(t, 2, report.ReadingCount)
	require.NotNil(t, report.Averages)
	assert.Equal(t, 7.00, report.Averages.PH)
	assert.Equal(t, 1.50, report.Averages.Turbidity)
	assert.Equal(t, risk.Stable, report.Status)
}

func TestAnalyzeRoundsAverages(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	sensor := f.sensor(t, account.ID, "intake")

	f.ingest(t, sensor, 7.0, 1)
	f.ingest(t, sensor, 7.0, 1)
	f.ingest(t, sensor, 7.1, 8)

	report, err := f.svc.Analytics.Analyze(context.Background(), account.ID, sensor.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 7.03, report.Averages.PH)
	assert.Equal(t, 3.33, report.Averages.Turbidity)
	assert.Equal(t, risk.Stable, report.Status)
}

func TestAnalyzeNoData(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	sensor := f.sensor(t, account.ID, "intake")

	f.ingest(t, sensor, 6.0, 9)
	f.clock.Advance(25 * time.Hour)

	report, err := f.svc.Analytics.Analyze(context.Background(), account.ID, sensor.ID, 0)
	require.NoError(t, err)
	assert.True(t, report.NoData())
	assert.Nil(t, report.Averages)
	assert.Equal(t, "No data for the last 24 hours", report.Message)

	report, err = f.svc.Analytics.Analyze(context.Background(), account.ID, sensor.ID, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ReadingCount)
	assert.Equal(t, "Last 48 Hours", report.Period)
	assert.Equal(t, risk.Unstable, report.Status)
}

func TestAnalyzeWindowBounds(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	sensor := f.sensor(t, account.ID, "intake")
	ctx := context.Background()

	_, err := f.svc.Analytics.Analyze(ctx, account.ID, sensor.ID, -time.Hour)
	requireKind(t, err, apperr.KindValidation)
	_, err = f.svc.Analytics.Analyze(ctx, account.ID, sensor.ID, 8*24*time.Hour)
	requireKind(t, err, apperr.KindValidation)

	report, err := f.svc.Analytics.Analyze(ctx, account.ID, sensor.ID, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "Last 1 Hour", report.Period)
	assert.Equal(t, "No data for the last hour", report.Message)

	for _, hours := range []int{0, -1, 7*24 + 1, 5124096, math.MaxInt} {
		_, err := f.svc.Analytics.WindowHours(hours)
		requireKind(t, err, apperr.KindValidation)
		assert.Equal(t, "invalid_window", apperr.CodeOf(err), "hours=%d", hours)
	}
	window, err := f.svc.Analytics.WindowHours(7 * 24)
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, window)
}

func TestAnalyzeWindowIncludesLowerBound(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	sensor := f.sensor(t, account.ID, "intake")
	ctx := context.Background()

	f.ingest(t, sensor, 7.0, 1)
	f.clock.Advance(24 * time.Hour)

	report, err := f.svc.Analytics.Analyze(ctx, account.ID, sensor.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ReadingCount)

	f.clock.Advance(time.Microsecond)
	report, err = f.svc.Analytics.Analyze(ctx, account.ID, sensor.ID, 0)
	require.NoError(t, err)
	assert.True(t, report.NoData())
}

func TestIngestSensorDeletedMidTransaction(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	sensor := f.sensor(t, account.ID, "intake")

	f.store.FailOn("CreateReading", repository.ErrNotFound)
	_, err := f.svc.Ingestor.Ingest(context.Background(), sensor, ReadingInput{PH: 7, Turbidity: 1, FlowRate: 1})
	requireKind(t, err, apperr.KindAuth)
	assert.Equal(t, "invalid_api_key", apperr.CodeOf(err))
}

func TestAnalyzeHidesOtherTenantsSensors(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice@plant.example")
	bob := f.account(t, "bob@plant.example")
	bobSensor := f.sensor(t, bob.ID, "bob intake")
	ctx := context.Background()

	_, foreign := f.svc.Analytics.Analyze(ctx, alice.ID, bobSensor.ID, 0)
	_, missing := f.svc.Analytics.Analyze(ctx, alice.ID, "no-such-sensor", 0)
	requireKind(t, foreign, apperr.KindAuthorization)
	requireKind(t, missing, apperr.KindAuthorization)
	assert.Equal(t, foreign.Error(), missing.Error())
}

func TestListAlertsIsolatesTenants(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice@plant.example")
	bob := f.account(t, "bob@plant.example")
	aliceSensor := f.sensor(t, alice.ID, "alice intake")
	bobSensor := f.sensor(t, bob.ID, "bob intake")

	for i := 0; i < 3; i++ {
		f.ingest(t, aliceSensor, 6.0, 2)
		f.ingest(t, bobSensor, 5.0, 7)
		f.clock.Advance(time.Minute)
	}

	ctx := context.Background()
	for _, tc := range []struct {
		account model.Account
		sensor  model.Sensor
	}{{alice, aliceSensor}, {bob, bobSensor}} {
		alerts, err := f.svc.Alerts.List(ctx, tc.account.ID, tc.account.ID)
		require.NoError(t, err)
		require.Len(t, alerts, 3)
		for i, alert := range alerts {
			assert.Equal(t, tc.account.ID, alert.AccountID)
			assert.Equal(t, tc.sensor.ID, alert.SensorID)
			if i > 0 {
				assert.False(t, alert.CreatedAt.After(alerts[i-1].CreatedAt), "alerts must be newest first")
			}
		}
	}

	_, err := f.svc.Alerts.List(ctx, alice.ID, bob.ID)
	requireKind(t, err, apperr.KindAuthorization)
	_, err = f.svc.Alerts.List(ctx, "", alice.ID)
	requireKind(t, err, apperr.KindAuth)
}

func TestListAlertsTiesKeepInsertionOrder(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	sensor := f.sensor(t, account.ID, "intake")

	first := f.ingest(t, sensor, 6.0, 2)
	second := f.ingest(t, sensor, 6.1, 2)

	alerts, err := f.svc.Alerts.List(context.Background(), account.ID, account.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, second.Alert.ID, alerts[0].ID)
	assert.Equal(t, first.Alert.ID, alerts[1].ID)
}

func TestListAlertsEmpty(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")

	alerts, err := f.svc.Alerts.List(context.Background(), account.ID, account.ID)
	require.NoError(t, err)
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)
}

func TestResolveAlert(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice@plant.example")
	bob := f.account(t, "bob@plant.example")
	sensor := f.sensor(t, alice.ID, "intake")
	result := f.ingest(t, sensor, 6.0, 2)
	ctx := context.Background()

	_, err := f.svc.Alerts.Resolve(ctx, bob.ID, result.Alert.ID)
	requireKind(t, err, apperr.KindAuthorization)

	f.clock.Advance(time.Minute)
	record, err := f.svc.Alerts.Resolve(ctx, alice.ID, result.Alert.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AlertResolved, record.Status)
	assert.True(t, record.UpdatedAt.After(record.CreatedAt))

	again, err := f.svc.Alerts.Resolve(ctx, alice.ID, result.Alert.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AlertResolved, again.Status)
	assert.Equal(t, record.UpdatedAt, again.UpdatedAt)
}

func TestDeleteAccountCascades(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice@plant.example")
	bob := f.account(t, "bob@plant.example")
	ctx := context.Background()

	var aliceSensors []model.Sensor
	for i := 0; i < 2; i++ {
		sensor := f.sensor(t, alice.ID, fmt.Sprintf("tank %d", i))
		aliceSensors = append(aliceSensors, sensor)
		f.ingest(t, sensor, 6.0, 2)
		f.ingest(t, sensor, 7.0, 1)
	}
	bobSensor := f.sensor(t, bob.ID, "bob intake")
	f.ingest(t, bobSensor, 6.0, 2)

	require.NoError(t, f.svc.Accounts.DeleteAccount(ctx, alice.ID))

	for _, sensor := range aliceSensors {
		_, err := f.store.GetSensorByID(ctx, sensor.ID)
		assert.Error(t, err)
		readings, err := f.store.ListReadingsSince(ctx, sensor.ID, time.Time{})
		require.NoError(t, err)
		assert.Empty(t, readings)
	}
	alerts, err := f.store.ListAlertRecordsByAccount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	bobAlerts, err := f.svc.Alerts.List(ctx, bob.ID, bob.ID)
	require.NoError(t, err)
	assert.Len(t, bobAlerts, 1)

	err = f.svc.Accounts.DeleteAccount(ctx, alice.ID)
	requireKind(t, err, apperr.KindNotFound)
}

func TestSensorRegistration(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	ctx := context.Background()

	location := "  Building C  "
	sensor, err := f.svc.Sensors.Register(ctx, account.ID, RegisterSensorInput{Name: " intake ", Location: &location})
	require.NoError(t, err)
	assert.Equal(t, "intake", sensor.Name)
	require.NotNil(t, sensor.Location)
	assert.Equal(t, "Building C", *sensor.Location)
	assert.Equal(t, model.SensorActive, sensor.Status)
	assert.Regexp(t, `^AQ-[0-9a-f]{32}$`, sensor.APIKey)

	_, err = f.svc.Sensors.Register(ctx, account.ID, RegisterSensorInput{Name: "  "})
	requireKind(t, err, apperr.KindValidation)

	_, err = f.svc.Sensors.Register(ctx, "deleted-account", RegisterSensorInput{Name: "ghost"})
	requireKind(t, err, apperr.KindAuth)

	listed, err := f.svc.Sensors.List(ctx, account.ID, account.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, sensor.ID, listed[0].ID)
}

func TestSensorListRejectsOtherAccounts(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice@plant.example")
	bob := f.account(t, "bob@plant.example")
	f.sensor(t, bob.ID, "bob intake")

	_, err := f.svc.Sensors.List(context.Background(), alice.ID, bob.ID)
	requireKind(t, err, apperr.KindAuthorization)
}

func TestSensorMutationsCheckOwnership(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice@plant.example")
	bob := f.account(t, "bob@plant.example")
	sensor := f.sensor(t, bob.ID, "bob intake")
	ctx := context.Background()

	_, err := f.svc.Sensors.SetStatus(ctx, alice.ID, sensor.ID, "inactive")
	requireKind(t, err, apperr.KindAuthorization)
	err = f.svc.Sensors.Delete(ctx, alice.ID, sensor.ID)
	requireKind(t, err, apperr.KindAuthorization)
	_, err = f.svc.Sensors.SetStatus(ctx, bob.ID, sensor.ID, "broken")
	requireKind(t, err, apperr.KindValidation)

	still, err := f.store.GetSensorByID(ctx, sensor.ID)
	require.NoError(t, err)
	assert.True(t, still.Active())
}

func TestAPIKeyCollisionIsRetried(t *testing.T) {
	keys := []string{"AQ-taken", "AQ-taken", "AQ-fresh"}
	var mu sync.Mutex
	next := func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		key := keys[0]
		if len(keys) > 1 {
			keys = keys[1:]
		}
		return key, nil
	}
	f := newFixture(t, func(d *Deps) { d.NewAPIKey = next })
	account := f.account(t, "a@plant.example")
	ctx := context.Background()

	first := f.sensor(t, account.ID, "one")
	assert.Equal(t, "AQ-taken", first.APIKey)
	second := f.sensor(t, account.ID, "two")
	assert.Equal(t, "AQ-fresh", second.APIKey)

	_, err := f.svc.Sensors.Register(ctx, account.ID, RegisterSensorInput{Name: "three"})
	requireKind(t, err, apperr.KindConflict)
}

func TestConcurrentRegistrationKeepsKeysUnique(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Sensors.Register(ctx, account.ID, RegisterSensorInput{Name: fmt.Sprintf("sensor %d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	sensors, err := f.svc.Sensors.List(ctx, account.ID, account.ID)
	require.NoError(t, err)
	require.Len(t, sensors, 32)
	seen := map[string]bool{}
	for _, sensor := range sensors {
		assert.False(t, seen[sensor.APIKey], "duplicate key %s", sensor.APIKey)
		seen[sensor.APIKey] = true
	}
}

func TestAccountRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	account := f.account(t, " Ops@Plant.Example ")
	assert.Equal(t, "ops@plant.example", account.Email)
	assert.NotEqual(t, "correct-horse", account.PasswordHash)

	_, err := f.svc.Accounts.Register(ctx, RegisterAccountInput{
		Username: "dup", FullName: "Dup", Email: "ops@plant.example", Password: "correct-horse", OrganizationType: "SME",
	})
	requireKind(t, err, apperr.KindConflict)

	login, err := f.svc.Accounts.Login(ctx, "OPS@plant.example", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, account.ID, login.AccountID)
	claims, err := auth.ParseToken(testSecret, "aquasense-test", login.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.AccountID)

	_, wrongPassword := f.svc.Accounts.Login(ctx, "ops@plant.example", "wrong-horse")
	_, unknownEmail := f.svc.Accounts.Login(ctx, "nobody@plant.example", "correct-horse")
	requireKind(t, wrongPassword, apperr.KindAuth)
	requireKind(t, unknownEmail, apperr.KindAuth)
	assert.Equal(t, apperr.CodeOf(wrongPassword), apperr.CodeOf(unknownEmail))
}

func TestAccountRegisterValidation(t *testing.T) {
	f := newFixture(t)
	valid := RegisterAccountInput{Username: "ops", FullName: "Ops", Email: "ops@plant.example", Password: "correct-horse", OrganizationType: "School"}

	cases := map[string]func(*RegisterAccountInput){
		"missing_fields":            func(in *RegisterAccountInput) { in.Username = "" },
		"invalid_email":             func(in *RegisterAccountInput) { in.Email = "not-an-email" },
		"password_too_short":        func(in *RegisterAccountInput) { in.Password = "short" },
		"invalid_organization_type": func(in *RegisterAccountInput) { in.OrganizationType = "Factory" },
	}
	for code, mutate := range cases {
		in := valid
		mutate(&in)
		_, err := f.svc.Accounts.Register(context.Background(), in)
		requireKind(t, err, apperr.KindValidation)
		assert.Equal(t, code, apperr.CodeOf(err))
	}
}

func TestStoreFailuresAreGeneric(t *testing.T) {
	f := newFixture(t)
	account := f.account(t, "a@plant.example")
	f.store.FailOn("ListAlertRecordsByAccount", errors.New("connection reset by peer"))

	_, err := f.svc.Alerts.List(context.Background(), account.ID, account.ID)
	requireKind(t, err, apperr.KindStore)
	assert.Equal(t, "server_error", apperr.CodeOf(err))
}
