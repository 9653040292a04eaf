package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/AquaSenseApp/aquasense/internal/apperr"
	"github.com/AquaSenseApp/aquasense/internal/config"
	"github.com/AquaSenseApp/aquasense/internal/metrics"
	"github.com/AquaSenseApp/aquasense/internal/telemetry"
)

type Options struct {
	// Limiter is optional; without it requests are not rate limited.
	Limiter  Limiter
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

type Server struct {
	cfg      config.Config
	services *telemetry.Services
	limiter  Limiter
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

func NewServer(cfg config.Config, services *telemetry.Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		cfg:      cfg,
		services: services,
		limiter:  opts.Limiter,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		logger:   opts.Logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Route("/users", func(r chi.Router) {
			r.Post("/register", s.handleRegisterAccount)
			r.Post("/login", s.handleLogin)
			r.With(s.authMiddleware).Delete("/me", s.handleDeleteAccount)
		})

		r.Route("/sensors", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/register", s.handleRegisterSensor)
			r.Get("/user/{userId}", s.handleListSensors)
			r.Get("/analytics/{sensorId}", s.handleSensorAnalytics)
			r.Patch("/{sensorId}", s.handleUpdateSensor)
			r.Delete("/{sensorId}", s.handleDeleteSensor)
		})

		r.With(s.deviceMiddleware).Post("/readings/submit", s.handleSubmitReading)

		r.Route("/alerts", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/user/{userId}", s.handleListAlerts)
			r.Patch("/{alertId}/resolve", s.handleResolveAlert)
		})
	})

	return r
}

// writeAppError maps a service error to its status. Store failures are
// logged with their cause; the caller only ever sees the code.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if kind == apperr.KindStore {
		s.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeError(w, status, apperr.CodeOf(err))
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
