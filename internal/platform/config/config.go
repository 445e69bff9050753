// Package config builds process configuration from the environment once at
// startup. The resulting struct is passed explicitly into each component;
// nothing reads the environment after main has run FromEnv.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// PublisherBackend selects the post-commit event delivery implementation.
type PublisherBackend string

const (
	PublisherNoop  PublisherBackend = "noop"
	PublisherRedis PublisherBackend = "redis"
	PublisherKafka PublisherBackend = "kafka"
)

// Config captures everything the server process needs to wire itself.
type Config struct {
	Addr string

	// PostgresDSN selects the durable stores. Empty means in-memory stores,
	// which keeps local development and unit-style runs dependency-free.
	PostgresDSN string

	Redis RedisConfig
	Kafka KafkaConfig

	// Publisher picks the event delivery backend for committed mutations.
	Publisher PublisherBackend

	LogLevel string
}

// RedisConfig configures the broadcast event publisher.
type RedisConfig struct {
	URL     string
	Channel string
}

// KafkaConfig configures the queue-backed event publisher.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	DialTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:        envOr("FUSIONEMS_ADDR", ":8080"),
		PostgresDSN: os.Getenv("FUSIONEMS_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:     os.Getenv("FUSIONEMS_REDIS_URL"),
			Channel: envOr("FUSIONEMS_REDIS_CHANNEL", "fusionems.events"),
		},
		Kafka: KafkaConfig{
			Topic:       envOr("FUSIONEMS_KAFKA_TOPIC", "fusionems.events"),
			DialTimeout: envDurationOr("FUSIONEMS_KAFKA_DIAL_TIMEOUT", 10*time.Second),
		},
		Publisher: PublisherBackend(envOr("FUSIONEMS_EVENT_PUBLISHER", string(PublisherNoop))),
		LogLevel:  envOr("FUSIONEMS_LOG_LEVEL", "info"),
	}
	if brokers := os.Getenv("FUSIONEMS_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
