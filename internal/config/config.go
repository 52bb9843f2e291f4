// Package config reads the relay node settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNoDownstream means the node has no peers to relay to.
var ErrNoDownstream = errors.New("no environment variable for DOWNSTREAM")

// Config is the immutable process configuration.
type Config struct {
	Downstream  []string // host:port, in relay order
	Host        string
	Port        string
	PeerTimeout time.Duration

	ServiceName string
	Environment string
	LogLevel    string

	AMQPURL      string
	AMQPExchange string

	Tracing Tracing
}

// Tracing holds the OpenTelemetry exporter settings.
type Tracing struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

// Addr is the listen address.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (Config, error) {
	getEnv := func(key, fallback string) string {
		if val, ok := lookup(key); ok {
			return val
		}
		return fallback
	}

	cfg := Config{
		Downstream:   ParseDownstream(getEnv("DOWNSTREAM", "")),
		Host:         getEnv("HOST", "0.0.0.0"),
		Port:         getEnv("PORT", "3000"),
		ServiceName:  getEnv("SERVICE_NAME", "relay-node"),
		Environment:  getEnv("ENVIRONMENT", "development"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "relay.events"),
		Tracing: Tracing{
			Exporter: getEnv("OTEL_EXPORTER", "grpc"),
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
	}
	if len(cfg.Downstream) == 0 {
		return Config{}, fmt.Errorf("DOWNSTREAM is empty after trimming: %w", ErrNoDownstream)
	}

	var err error
	if cfg.PeerTimeout, err = time.ParseDuration(getEnv("PEER_TIMEOUT", "30s")); err != nil {
		return Config{}, fmt.Errorf("parse PEER_TIMEOUT: %w", err)
	}
	if cfg.PeerTimeout <= 0 {
		return Config{}, fmt.Errorf("PEER_TIMEOUT must be positive, got %s", cfg.PeerTimeout)
	}
	if cfg.Tracing.Enabled, err = strconv.ParseBool(getEnv("OTEL_ENABLED", "false")); err != nil {
		return Config{}, fmt.Errorf("parse OTEL_ENABLED: %w", err)
	}
	if cfg.Tracing.SamplingRate, err = strconv.ParseFloat(getEnv("OTEL_SAMPLING_RATE", "1.0"), 64); err != nil {
		return Config{}, fmt.Errorf("parse OTEL_SAMPLING_RATE: %w", err)
	}

	return cfg, nil
}

// ParseDownstream splits a comma-separated peer list, dropping blank entries.
func ParseDownstream(raw string) []string {
	var peers []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			peers = append(peers, p)
		}
	}
	return peers
}
