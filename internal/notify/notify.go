// Package notify publishes alert events once the ingestion that raised them
// has committed. The stored alert stays the source of truth; a lost event is
// logged and never undoes the ingestion.
package notify

import (
	"context"
	"time"
)

type AlertEvent struct {
	AlertID   string    `json:"alertId"`
	ReadingID string    `json:"readingId"`
	SensorID  string    `json:"sensorId"`
	AccountID string    `json:"accountId"`
	RiskLevel string    `json:"riskLevel"`
	Message   string    `json:"message"`
	PH        float64   `json:"ph"`
	Turbidity float64   `json:"turbidity"`
	FlowRate  float64   `json:"flowRate"`
	CreatedAt time.Time `json:"createdAt"`
}

type Notifier interface {
	PublishAlert(ctx context.Context, event AlertEvent) error
}

type Nop struct{}

func (Nop) PublishAlert(context.Context, AlertEvent) error {
	return nil
}

func RoutingKey(event AlertEvent) string {
	return "alert." + event.SensorID
}
