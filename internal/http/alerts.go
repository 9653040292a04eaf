package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AquaSenseApp/aquasense/internal/model"
)

type alertSensor struct {
	ID         string  `json:"id"`
	SensorName string  `json:"sensor_name"`
	Location   *string `json:"location"`
	UserID     string  `json:"userId"`
}

type alertReading struct {
	ID        string      `json:"id"`
	PH        float64     `json:"ph"`
	Turbidity float64     `json:"turbidity"`
	FlowRate  float64     `json:"flow_rate"`
	RiskLevel string      `json:"risk_level"`
	CreatedAt time.Time   `json:"createdAt"`
	Sensor    alertSensor `json:"sensor"`
}

type alertResponse struct {
	ID        string       `json:"id"`
	Message   string       `json:"message"`
	Status    string       `json:"status"`
	ReadingID string       `json:"readingId"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Reading   alertReading `json:"reading"`
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	records, err := s.services.Alerts.List(r.Context(), callerID(r), chi.URLParam(r, "userId"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	resp := make([]alertResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, mapAlertRecord(record))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	record, err := s.services.Alerts.Resolve(r.Context(), callerID(r), chi.URLParam(r, "alertId"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapAlertRecord(record))
}

func mapAlertRecord(record model.AlertRecord) alertResponse {
	return alertResponse{
		ID:        record.ID,
		Message:   record.Message,
		Status:    string(record.Status),
		ReadingID: record.ReadingID,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
		Reading: alertReading{
			ID:        record.ReadingID,
			PH:        record.PH,
			Turbidity: record.Turbidity,
			FlowRate:  record.FlowRate,
			RiskLevel: record.RiskLevel,
			CreatedAt: record.ReadingAt,
			Sensor: alertSensor{
				ID:         record.SensorID,
				SensorName: record.SensorName,
				Location:   record.SensorLocation,
				UserID:     record.AccountID,
			},
		},
	}
}
