package http

import (
	"net/http"
	"time"

	"github.com/AquaSenseApp/aquasense/internal/model"
	"github.com/AquaSenseApp/aquasense/internal/telemetry"
)

type submitReadingRequest struct {
	PH        *float64 `json:"ph"`
	Turbidity *float64 `json:"turbidity"`
	FlowRate  *float64 `json:"flow_rate"`
}

type readingResponse struct {
	ID            string    `json:"id"`
	SensorID      string    `json:"sensorId"`
	PH            float64   `json:"ph"`
	Turbidity     float64   `json:"turbidity"`
	FlowRate      float64   `json:"flow_rate"`
	RiskLevel     string    `json:"risk_level"`
	AIExplanation string    `json:"ai_explanation"`
	CreatedAt     time.Time `json:"createdAt"`
}

type alertSummary struct {
	ID        string    `json:"id"`
	ReadingID string    `json:"readingId"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type submitReadingResponse struct {
	Reading      readingResponse `json:"reading"`
	AlertCreated bool            `json:"alertCreated"`
	Alert        *alertSummary   `json:"alert"`
}

func (s *Server) handleSubmitReading(w http.ResponseWriter, r *http.Request) {
	sensor, ok := sensorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_api_key")
		return
	}

	var req submitReadingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.PH == nil || req.Turbidity == nil || req.FlowRate == nil {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	result, err := s.services.Ingestor.Ingest(r.Context(), sensor, telemetry.ReadingInput{
		PH:        *req.PH,
		Turbidity: *req.Turbidity,
		FlowRate:  *req.FlowRate,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	resp := submitReadingResponse{Reading: mapReading(result.Reading)}
	if result.Alert != nil {
		resp.AlertCreated = true
		resp.Alert = mapAlertSummary(*result.Alert)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func mapReading(reading model.Reading) readingResponse {
	return readingResponse{
		ID:            reading.ID,
		SensorID:      reading.SensorID,
		PH:            reading.PH,
		Turbidity:     reading.Turbidity,
		FlowRate:      reading.FlowRate,
		RiskLevel:     reading.RiskLevel,
		AIExplanation: reading.AIExplanation,
		CreatedAt:     reading.CreatedAt,
	}
}

func mapAlertSummary(alert model.Alert) *alertSummary {
	return &alertSummary{
		ID:        alert.ID,
		ReadingID: alert.ReadingID,
		Message:   alert.Message,
		Status:    string(alert.Status),
		CreatedAt: alert.CreatedAt,
	}
}
