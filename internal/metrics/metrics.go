// Package metrics holds the Prometheus collectors of the service. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aquasense"

type Metrics struct {
	readings     *prometheus.CounterVec
	alerts       prometheus.Counter
	ingestErrors *prometheus.CounterVec
	mqttMessages *prometheus.CounterVec
	rateLimited  prometheus.Counter
	requests     *prometheus.HistogramVec
	storeUp      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_ingested_total",
			Help:      "Readings stored, by risk level.",
		}, []string{"risk_level"}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Alerts created by ingestion.",
		}),
		ingestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_failures_total",
			Help:      "Rejected or failed ingestions, by error kind.",
		}, []string{"kind"}),
		mqttMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_messages_total",
			Help:      "MQTT reading messages, by outcome.",
		}, []string{"result"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		storeUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_up",
			Help:      "1 when the last store ping succeeded.",
		}),
	}
	reg.MustRegister(m.readings, m.alerts, m.ingestErrors, m.mqttMessages, m.rateLimited, m.requests, m.storeUp)
	return m
}

func (m *Metrics) ObserveReading(riskLevel string) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(riskLevel).Inc()
}

func (m *Metrics) ObserveAlert() {
	if m == nil {
		return
	}
	m.alerts.Inc()
}

func (m *Metrics) ObserveIngestFailure(kind string) {
	if m == nil {
		return
	}
	m.ingestErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveMQTTMessage(result string) {
	if m == nil {
		return
	}
	m.mqttMessages.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) SetStoreUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.storeUp.Set(1)
		return
	}
	m.storeUp.Set(0)
}
