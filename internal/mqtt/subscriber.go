// Package mqtt accepts readings from devices over MQTT. Each message goes
// through the same resolve and ingest path as an HTTP submission.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/AquaSenseApp/aquasense/internal/apperr"
	"github.com/AquaSenseApp/aquasense/internal/metrics"
	"github.com/AquaSenseApp/aquasense/internal/telemetry"
)

const (
	subscribeQoS   = 1
	messageTimeout = 10 * time.Second
)

// Message is the device payload. The API key travels in the body because
// MQTT has no per-message headers.
type Message struct {
	APIKey    string   `json:"api_key"`
	PH        *float64 `json:"ph"`
	Turbidity *float64 `json:"turbidity"`
	FlowRate  *float64 `json:"flow_rate"`
}

type Options struct {
	Broker   string
	Username string
	Password string
	ClientID string
	Topic    string
}

type Subscriber struct {
	client   paho.Client
	topic    string
	services *telemetry.Services
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewSubscriber(opts Options, services *telemetry.Services, m *metrics.Metrics, logger *zap.Logger) *Subscriber {
	s := &Subscriber{
		topic:    opts.Topic,
		services: services,
		metrics:  m,
		logger:   logger,
	}

	clientOpts := paho.NewClientOptions()
	clientOpts.AddBroker(BrokerURL(opts.Broker))
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetUsername(opts.Username)
	clientOpts.SetPassword(opts.Password)
	clientOpts.SetKeepAlive(60 * time.Second)
	clientOpts.SetPingTimeout(10 * time.Second)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetCleanSession(false)

	// Subscribing on every connect restores the subscription after a
	// reconnect.
	clientOpts.OnConnect = func(client paho.Client) {
		logger.Info("connected to mqtt broker", zap.String("broker", opts.Broker))
		token := client.Subscribe(s.topic, subscribeQoS, s.handle)
		if token.Wait() && token.Error() != nil {
			logger.Error("mqtt subscribe failed", zap.String("topic", s.topic), zap.Error(token.Error()))
			return
		}
		logger.Info("subscribed to readings topic", zap.String("topic", s.topic))
	}
	clientOpts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	}

	s.client = paho.NewClient(clientOpts)
	return s
}

func (s *Subscriber) Start() error {
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to mqtt broker: %w", token.Error())
	}
	return nil
}

func (s *Subscriber) Stop() {
	s.client.Disconnect(250)
}

func (s *Subscriber) handle(_ paho.Client, msg paho.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
	defer cancel()

	result, err := s.Process(ctx, msg.Payload())
	if err != nil {
		s.metrics.ObserveMQTTMessage("rejected")
		level := s.logger.Warn
		if apperr.KindOf(err) == apperr.KindStore {
			level = s.logger.Error
		}
		level("mqtt reading dropped",
			zap.String("topic", msg.Topic()),
			zap.String("code", apperr.CodeOf(err)),
			zap.Error(err))
		return
	}
	s.metrics.ObserveMQTTMessage("accepted")
	s.logger.Debug("mqtt reading stored",
		zap.String("reading_id", result.Reading.ID),
		zap.String("sensor_id", result.Reading.SensorID),
		zap.Bool("alert", result.Alert != nil))
}

// Process decodes one payload, authenticates the device and ingests the
// reading.
func (s *Subscriber) Process(ctx context.Context, payload []byte) (telemetry.IngestResult, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return telemetry.IngestResult{}, apperr.Validation("invalid_payload")
	}
	sensor, err := s.services.Identity.ResolveSensor(ctx, msg.APIKey)
	if err != nil {
		return telemetry.IngestResult{}, err
	}
	if msg.PH == nil || msg.Turbidity == nil || msg.FlowRate == nil {
		return telemetry.IngestResult{}, apperr.Validation("missing_fields")
	}
	return s.services.Ingestor.Ingest(ctx, sensor, telemetry.ReadingInput{
		PH:        *msg.PH,
		Turbidity: *msg.Turbidity,
		FlowRate:  *msg.FlowRate,
	})
}

// BrokerURL accepts either host:port or a full broker URL.
func BrokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}
