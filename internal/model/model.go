package model

import "time"

type OrganizationType string

const (
	OrganizationSME         OrganizationType = "SME"
	OrganizationSchool      OrganizationType = "School"
	OrganizationHospital    OrganizationType = "Hospital"
	OrganizationResidential OrganizationType = "Residential"
)

func (o OrganizationType) Valid() bool {
	switch o {
	case OrganizationSME, OrganizationSchool, OrganizationHospital, OrganizationResidential:
		return true
	default:
		return false
	}
}

type SensorStatus string

const (
	SensorActive   SensorStatus = "active"
	SensorInactive SensorStatus = "inactive"
)

func (s SensorStatus) Valid() bool {
	return s == SensorActive || s == SensorInactive
}

type AlertStatus string

const (
	AlertActive   AlertStatus = "active"
	AlertResolved AlertStatus = "resolved"
)

type Account struct {
	ID               string
	Username         string
	FullName         string
	Email            string
	PasswordHash     string
	OrganizationType OrganizationType
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Sensor belongs to exactly one account for its whole lifetime.
type Sensor struct {
	ID        string
	AccountID string
	Name      string
	Location  *string
	APIKey    string
	Status    SensorStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s Sensor) Active() bool {
	return s.Status == SensorActive
}

// Reading is immutable once stored.
type Reading struct {
	ID            string
	SensorID      string
	PH            float64
	Turbidity     float64
	FlowRate      float64
	RiskLevel     string
	AIExplanation string
	CreatedAt     time.Time
}

// Alert has at most one row per reading.
type Alert struct {
	ID        string
	ReadingID string
	Message   string
	Status    AlertStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AlertRecord is an alert joined with the reading and sensor that raised it.
type AlertRecord struct {
	Alert
	SensorID       string
	SensorName     string
	SensorLocation *string
	AccountID      string
	PH             float64
	Turbidity      float64
	FlowRate       float64
	RiskLevel      string
	ReadingAt      time.Time
}
