// Package telemetry implements the write path (resolve device, classify,
// persist, alert) and the tenant-scoped read paths of the service.
//
// Every operation that takes a resource id checks that the resource's
// ownership chain ends at the caller's account id before acting. The caller
// id always comes from verified credentials, never from a request body.
package telemetry

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AquaSenseApp/aquasense/internal/apperr"
	"github.com/AquaSenseApp/aquasense/internal/crypto"
	"github.com/AquaSenseApp/aquasense/internal/metrics"
	"github.com/AquaSenseApp/aquasense/internal/notify"
	"github.com/AquaSenseApp/aquasense/internal/repository"
)

type Config struct {
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration

	DefaultWindow time.Duration
	MaxWindow     time.Duration
}

// Deps are the collaborators shared by the services. Only Store is
// required.
type Deps struct {
	Store     repository.Store
	Metrics   *metrics.Metrics
	Notifier  notify.Notifier
	Logger    *zap.Logger
	Now       func() time.Time
	NewID     func() string
	NewAPIKey func() (string, error)
}

type Services struct {
	Identity  *Identity
	Accounts  *AccountService
	Sensors   *SensorRegistry
	Ingestor  *Ingestor
	Analytics *Analyzer
	Alerts    *AlertQuery
}

func New(cfg Config, deps Deps) *Services {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.NewAPIKey == nil {
		deps.NewAPIKey = crypto.NewAPIKey
	}
	if cfg.DefaultWindow <= 0 {
		cfg.DefaultWindow = 24 * time.Hour
	}
	if cfg.MaxWindow < cfg.DefaultWindow {
		cfg.MaxWindow = cfg.DefaultWindow
	}

	return &Services{
		Identity:  &Identity{sensors: deps.Store},
		Accounts:  &AccountService{cfg: cfg, deps: deps},
		Sensors:   &SensorRegistry{deps: deps},
		Ingestor:  &Ingestor{deps: deps},
		Analytics: &Analyzer{cfg: cfg, deps: deps},
		Alerts:    &AlertQuery{deps: deps},
	}
}

// now matches the microsecond precision of the PostgreSQL timestamps so
// both stores hand back identical values.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// storeFailure passes classified errors through and hides everything else
// behind a generic store error.
func storeFailure(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Store("server_error", err)
}
