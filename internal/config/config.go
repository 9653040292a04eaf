package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr         string
	GRPCAddr         string
	DatabaseURL      string
	DBAutoMigrate    bool
	JWTSecret        string
	JWTIssuer        string
	AccessTokenTTL   time.Duration
	ServiceAuthToken string

	AnalyticsDefaultWindow time.Duration
	AnalyticsMaxWindow     time.Duration

	RedisAddr       string
	RedisPassword   string
	RateLimitMax    int
	RateLimitWindow time.Duration

	MQTTBroker   string
	MQTTUsername string
	MQTTPassword string
	MQTTTopic    string
	MQTTClientID string

	AMQPURL      string
	AMQPExchange string

	HealthProbeInterval  time.Duration
	ReadingRetention     time.Duration
	RetentionJobInterval time.Duration

	LogLevel       string
	LogDevelopment bool
}

var ErrMissingJWTSecret = errors.New("config: JWT_SECRET is required")

// Load reads the environment, after merging an optional .env file. A missing
// JWT_SECRET is a startup error; there is no fallback secret.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:         getenv("HTTP_ADDR", ":5000"),
		GRPCAddr:         os.Getenv("GRPC_ADDR"),
		DatabaseURL:      getenv("DATABASE_URL", ""),
		DBAutoMigrate:    getenvBool("DB_AUTO_MIGRATE", false),
		JWTSecret:        getenvKey("JWT_SECRET", ""),
		JWTIssuer:        getenv("JWT_ISSUER", "aquasense-api"),
		AccessTokenTTL:   getenvDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		ServiceAuthToken: getenv("SERVICE_AUTH_TOKEN", ""),

		AnalyticsDefaultWindow: getenvDuration("ANALYTICS_DEFAULT_WINDOW", 24*time.Hour),
		AnalyticsMaxWindow:     getenvDuration("ANALYTICS_MAX_WINDOW", 30*24*time.Hour),

		RedisAddr:       getenv("REDIS_ADDR", ""),
		RedisPassword:   getenv("REDIS_PASSWORD", ""),
		RateLimitMax:    getenvInt("RATE_LIMIT_MAX", 1000),
		RateLimitWindow: getenvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),

		MQTTBroker:   getenv("MQTT_BROKER", ""),
		MQTTUsername: getenv("MQTT_USERNAME", ""),
		MQTTPassword: getenv("MQTT_PASSWORD", ""),
		MQTTTopic:    getenv("MQTT_TOPIC", "aquasense/readings"),
		MQTTClientID: getenv("MQTT_CLIENT_ID", "aquasense-ingest"),

		AMQPURL:      getenv("AMQP_URL", ""),
		AMQPExchange: getenv("AMQP_EXCHANGE", "aquasense.alerts"),

		HealthProbeInterval:  getenvDuration("HEALTH_PROBE_INTERVAL", 30*time.Second),
		ReadingRetention:     getenvDuration("READING_RETENTION", 0),
		RetentionJobInterval: getenvDuration("RETENTION_JOB_INTERVAL", time.Hour),

		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogDevelopment: getenvBool("LOG_DEVELOPMENT", false),
	}
	if _, set := os.LookupEnv("GRPC_ADDR"); !set {
		cfg.GRPCAddr = ":9095"
	}
	if cfg.JWTSecret == "" {
		return Config{}, ErrMissingJWTSecret
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// getenvKey also accepts <KEY>_FILE so secrets can be mounted from disk.
func getenvKey(key, fallback string) string {
	if file := os.Getenv(key + "_FILE"); file != "" {
		if data, err := os.ReadFile(file); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
