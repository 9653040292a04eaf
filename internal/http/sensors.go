package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AquaSenseApp/aquasense/internal/model"
	"github.com/AquaSenseApp/aquasense/internal/telemetry"
)

type registerSensorRequest struct {
	SensorName string  `json:"sensor_name"`
	Location   *string `json:"location"`
	// UserID is accepted for older clients and must match the token.
	UserID string `json:"userId,omitempty"`
}

type updateSensorRequest struct {
	Status string `json:"status"`
}

type sensorResponse struct {
	ID         string    `json:"id"`
	SensorName string    `json:"sensor_name"`
	Location   *string   `json:"location"`
	APIKey     string    `json:"api_key"`
	Status     string    `json:"status"`
	UserID     string    `json:"userId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// fixed2 renders as a JSON number with exactly two decimals.
type fixed2 float64

func (f fixed2) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(f), 'f', 2, 64)), nil
}

type averagesResponse struct {
	PH        fixed2 `json:"ph"`
	Turbidity fixed2 `json:"turbidity"`
}

type analyticsResponse struct {
	SensorID     string            `json:"sensorId"`
	Period       string            `json:"period"`
	ReadingCount int               `json:"readingCount"`
	Averages     *averagesResponse `json:"averages,omitempty"`
	Status       string            `json:"status,omitempty"`
	Message      string            `json:"message,omitempty"`
}

func (s *Server) handleRegisterSensor(w http.ResponseWriter, r *http.Request) {
	var req registerSensorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	caller := callerID(r)
	if req.UserID != "" && req.UserID != caller {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	sensor, err := s.services.Sensors.Register(r.Context(), caller, telemetry.RegisterSensorInput{
		Name:     req.SensorName,
		Location: req.Location,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message":  "Sensor registered successfully!",
		"sensorId": sensor.ID,
		"apiKey":   sensor.APIKey,
	})
}

func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := s.services.Sensors.List(r.Context(), callerID(r), chi.URLParam(r, "userId"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	resp := make([]sensorResponse, 0, len(sensors))
	for _, sensor := range sensors {
		resp = append(resp, mapSensor(sensor))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSensorAnalytics(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := strings.TrimSpace(r.URL.Query().Get("hours")); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_window")
			return
		}
		window, err = s.services.Analytics.WindowHours(hours)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
	}

	report, err := s.services.Analytics.Analyze(r.Context(), callerID(r), chi.URLParam(r, "sensorId"), window)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	resp := analyticsResponse{
		SensorID:     report.SensorID,
		Period:       report.Period,
		ReadingCount: report.ReadingCount,
	}
	if report.NoData() {
		resp.Message = report.Message
	} else {
		resp.Averages = &averagesResponse{
			PH:        fixed2(report.Averages.PH),
			Turbidity: fixed2(report.Averages.Turbidity),
		}
		resp.Status = string(report.Status)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateSensor(w http.ResponseWriter, r *http.Request) {
	var req updateSensorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	sensor, err := s.services.Sensors.SetStatus(r.Context(), callerID(r), chi.URLParam(r, "sensorId"), req.Status)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSensor(sensor))
}

func (s *Server) handleDeleteSensor(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Sensors.Delete(r.Context(), callerID(r), chi.URLParam(r, "sensorId")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func mapSensor(sensor model.Sensor) sensorResponse {
	return sensorResponse{
		ID:         sensor.ID,
		SensorName: sensor.Name,
		Location:   sensor.Location,
		APIKey:     sensor.APIKey,
		Status:     string(sensor.Status),
		UserID:     sensor.AccountID,
		CreatedAt:  sensor.CreatedAt,
		UpdatedAt:  sensor.UpdatedAt,
	}
}
