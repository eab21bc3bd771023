package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	PresenceKey   string
	PresenceTTL   time.Duration

	KafkaBrokers    []string
	TripEventsTopic string
	PresenceTopic   string

	PGDSN string

	GraceWindow   time.Duration
	MatchRadiusKm float64
	MatchLimit    int
	MatchWindow   time.Duration

	HandoffEndpoint string
	HandoffToken    string
	HandoffTimeout  time.Duration

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		PresenceKey:     "drivers_geo",
		PresenceTTL:     90 * time.Second,
		TripEventsTopic: "trip-events",
		PresenceTopic:   "driver-presence",
		GraceWindow:     5 * time.Minute,
		MatchRadiusKm:   5,
		MatchLimit:      10,
		MatchWindow:     2 * time.Hour,
		HandoffTimeout:  5 * time.Second,
		LogLevel:        "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.PresenceKey, "PRESENCE_GEO_KEY")
	setDurationFromEnv(&cfg.PresenceTTL, "PRESENCE_TTL", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.TripEventsTopic, "TRIP_EVENTS_TOPIC")
	setStringFromEnv(&cfg.PresenceTopic, "PRESENCE_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setDurationFromEnv(&cfg.GraceWindow, "TRIP_GRACE_WINDOW", &errs)
	setFloatFromEnv(&cfg.MatchRadiusKm, "MATCH_RADIUS_KM", &errs)
	setIntFromEnv(&cfg.MatchLimit, "MATCH_LIMIT", &errs)
	setDurationFromEnv(&cfg.MatchWindow, "MATCH_WINDOW", &errs)

	setStringFromEnv(&cfg.HandoffEndpoint, "WHATSAPP_GATEWAY_URL")
	cfg.HandoffToken = os.Getenv("WHATSAPP_GATEWAY_TOKEN")
	setDurationFromEnv(&cfg.HandoffTimeout, "WHATSAPP_GATEWAY_TIMEOUT", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.MatchLimit <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_LIMIT must be > 0"))
	}
	if cfg.MatchRadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_RADIUS_KM must be > 0"))
	}
	if cfg.GraceWindow < 0 {
		errs = append(errs, fmt.Errorf("TRIP_GRACE_WINDOW must be >= 0"))
	}

	return cfg, errors.Join(errs...)
}

// SweeperConfig drives the cron-style binary that triggers the staleness
// sweep over HTTP.
type SweeperConfig struct {
	TargetURL      string
	Interval       time.Duration
	RequestTimeout time.Duration
	MetricsAddr    string
	LogLevel       string
}

func LoadSweeperConfig() (SweeperConfig, error) {
	cfg := SweeperConfig{
		TargetURL:      "http://localhost:8080/internal/trips/expire",
		Interval:       60 * time.Second,
		RequestTimeout: 10 * time.Second,
		MetricsAddr:    ":2113",
		LogLevel:       "info",
	}
	var errs []error
	setStringFromEnv(&cfg.TargetURL, "SWEEP_TARGET_URL")
	setDurationFromEnv(&cfg.Interval, "SWEEP_INTERVAL", &errs)
	setDurationFromEnv(&cfg.RequestTimeout, "SWEEP_REQUEST_TIMEOUT", &errs)
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if cfg.Interval <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_INTERVAL must be > 0"))
	}
	return cfg, errors.Join(errs...)
}

// PresenceConfig drives the Kafka consumer that projects driver pings into
// Redis.
type PresenceConfig struct {
	KafkaBrokers []string
	Topic        string
	Group        string

	RedisAddr     string
	RedisPassword string
	PresenceKey   string
	PresenceTTL   time.Duration

	MetricsAddr string
	LogLevel    string
}

func LoadPresenceConfig() (PresenceConfig, error) {
	cfg := PresenceConfig{
		KafkaBrokers: []string{"localhost:9092"},
		Topic:        "driver-presence",
		Group:        "presence-projector",
		RedisAddr:    "localhost:6379",
		PresenceKey:  "drivers_geo",
		PresenceTTL:  90 * time.Second,
		MetricsAddr:  ":2112",
		LogLevel:     "info",
	}
	var errs []error
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.Topic, "PRESENCE_TOPIC")
	setStringFromEnv(&cfg.Group, "PRESENCE_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.PresenceKey, "PRESENCE_GEO_KEY")
	setDurationFromEnv(&cfg.PresenceTTL, "PRESENCE_TTL", &errs)
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
