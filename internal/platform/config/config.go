package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "parley/pkg/platform/strings"
)

// Server captures process level configuration. Values come from the
// environment with development defaults so main stays lean.
type Server struct {
	Addr          string
	JWTSigningKey string

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string

	NotificationTopic string

	// Fee rates in basis points of the offer.
	AuthorizeFeeBps int64
	PayoutFeeBps    int64

	// AuthorizeTimeout bounds one payment gateway call.
	AuthorizeTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:              getEnv("PARLEY_ADDR", ":8080"),
		JWTSigningKey:     getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		NotificationTopic: getEnv("NOTIFICATION_TOPIC", "parley.notifications"),
		AuthorizeFeeBps:   getEnvInt64("AUTHORIZE_FEE_BPS", 1000),
		PayoutFeeBps:      getEnvInt64("PAYOUT_FEE_BPS", 500),
		AuthorizeTimeout:  getEnvDuration("AUTHORIZE_TIMEOUT", 30*time.Second),
	}
	// Broker hostnames are case-insensitive; sloppy env values with spaces
	// or repeats collapse to one clean seed list.
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = pstrings.DedupeAndTrimLower(strings.Split(brokers, ","))
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
