package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures service-level configuration. FromEnv builds it from
// environment variables so main stays lean.
type Config struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string
	TokenTTL      time.Duration
	Redis         RedisConfig
	Kafka         KafkaConfig

	// SubmitLimit caps unauthenticated access-request submissions per source
	// per window. Zero disables throttling.
	SubmitLimit  int
	SubmitWindow time.Duration

	// AnalysisDepartments lists departments capable of forensic analysis;
	// evidence can only move to in-analysis while held by one of them.
	AnalysisDepartments []string

	// BootstrapAdminUsername/Secret seed the first reviewer account when the
	// store has no matching username. Empty disables bootstrapping.
	BootstrapAdminUsername string
	BootstrapAdminSecret   string
}

// RedisConfig holds connection settings for the optional Redis throttle.
type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the timeline event relay.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func FromEnv() Config {
	cfg := Config{
		Addr:          envOr("CUSTODIA_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("CUSTODIA_DATABASE_URL"),
		JWTSigningKey: envOr("CUSTODIA_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenTTL:      envDurationOr("CUSTODIA_TOKEN_TTL", 12*time.Hour),
		Redis: RedisConfig{
			URL:          os.Getenv("CUSTODIA_REDIS_URL"),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(os.Getenv("CUSTODIA_KAFKA_BROKERS")),
			Topic:   envOr("CUSTODIA_KAFKA_TOPIC", "custodia.timeline"),
		},
		SubmitLimit:         envIntOr("CUSTODIA_SUBMIT_LIMIT", 5),
		SubmitWindow:        envDurationOr("CUSTODIA_SUBMIT_WINDOW", time.Hour),
		AnalysisDepartments: splitCSV(envOr("CUSTODIA_ANALYSIS_DEPARTMENTS", "lab-a,lab-b,digital-forensics")),

		BootstrapAdminUsername: os.Getenv("CUSTODIA_ADMIN_USERNAME"),
		BootstrapAdminSecret:   os.Getenv("CUSTODIA_ADMIN_SECRET"),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
