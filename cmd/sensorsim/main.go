// Command sensorsim plays a water-quality probe: it submits generated
// readings for one sensor over MQTT or HTTP until interrupted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/AquaSenseApp/aquasense/internal/log"
)

var (
	apiKey    = flag.String("api-key", "", "Sensor API key (required)")
	mode      = flag.String("mode", "mqtt", "Transport: mqtt or http")
	interval  = flag.Duration("interval", 5*time.Second, "Delay between readings")
	unstable  = flag.Float64("unstable", 0.1, "Probability of a contaminated reading (0.0-1.0)")
	seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	apiURL    = flag.String("url", "http://localhost:5000", "API base URL for http mode")
	broker    = flag.String("broker", "localhost:1883", "MQTT broker address")
	mqttUser  = flag.String("user", "", "MQTT username")
	mqttPass  = flag.String("pass", "", "MQTT password")
	mqttTopic = flag.String("topic", "aquasense/readings", "MQTT topic")
)

func main() {
	flag.Parse()

	logger, err := log.New("info", true)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if *apiKey == "" {
		logger.Fatal("missing -api-key")
	}

	var pub publisher
	switch *mode {
	case "mqtt":
		pub, err = newMQTTPublisher(*broker, *mqttUser, *mqttPass, "aquasense-sim-"+shortKey(*apiKey), *mqttTopic, *apiKey, logger)
		if err != nil {
			logger.Fatal("mqtt init failed", zap.Error(err))
		}
	case "http":
		pub = newHTTPPublisher(*apiURL, *apiKey)
	default:
		logger.Fatal("unknown mode", zap.String("mode", *mode))
	}
	defer pub.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen := newGenerator(*seed, *unstable)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	logger.Info("sensor simulator started",
		zap.String("mode", *mode),
		zap.Duration("interval", *interval),
		zap.Float64("unstable_probability", *unstable),
	)

	sent, failed, contaminated := 0, 0, 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("sensor simulator stopped",
				zap.Int("sent", sent),
				zap.Int("failed", failed),
				zap.Int("contaminated", contaminated),
			)
			return
		case <-ticker.C:
			s, bad := gen.next()
			pubCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := pub.publish(pubCtx, s)
			cancel()
			if err != nil {
				failed++
				logger.Error("publish reading failed", zap.Error(err))
				continue
			}
			sent++
			if bad {
				contaminated++
			}
			logger.Debug("reading published",
				zap.Float64("ph", s.PH),
				zap.Float64("turbidity", s.Turbidity),
				zap.Float64("flow_rate", s.FlowRate),
			)
		}
	}
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[len(key)-8:]
	}
	return key
}
