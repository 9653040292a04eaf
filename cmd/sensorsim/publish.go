package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/AquaSenseApp/aquasense/internal/mqtt"
)

type publisher interface {
	publish(ctx context.Context, s sample) error
	close()
}

type mqttPublisher struct {
	client paho.Client
	topic  string
	apiKey string
}

func newMQTTPublisher(broker, user, pass, clientID, topic, apiKey string, logger *zap.Logger) (*mqttPublisher, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(mqtt.BrokerURL(broker))
	opts.SetClientID(clientID)
	opts.SetUsername(user)
	opts.SetPassword(pass)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(paho.Client) {
		logger.Info("connected to mqtt broker", zap.String("broker", broker))
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Error("mqtt connection lost", zap.Error(err))
	}

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker: %w", token.Error())
	}
	return &mqttPublisher{client: client, topic: topic, apiKey: apiKey}, nil
}

func (p *mqttPublisher) publish(_ context.Context, s sample) error {
	payload, err := json.Marshal(mqtt.Message{
		APIKey:    p.apiKey,
		PH:        &s.PH,
		Turbidity: &s.Turbidity,
		FlowRate:  &s.FlowRate,
	})
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, 1, false, payload)
	token.Wait()
	return token.Error()
}

func (p *mqttPublisher) close() {
	p.client.Disconnect(250)
}

type httpPublisher struct {
	client *http.Client
	url    string
	apiKey string
}

func newHTTPPublisher(baseURL, apiKey string) *httpPublisher {
	return &httpPublisher{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    baseURL + "/readings/submit",
		apiKey: apiKey,
	}
}

func (p *httpPublisher) publish(ctx context.Context, s sample) error {
	body, err := json.Marshal(s)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("submit reading: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

func (p *httpPublisher) close() {}
