// Package config loads the runtime settings of the event sourcing stack from
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	eventsourcing "github.com/terraskye/eventsourcing-core"
)

// Retry configures the backoff used by the buses.
type Retry struct {
	MaxRetries      uint64        `env:"MAX_RETRIES"      envDefault:"0"`
	InitialInterval time.Duration `env:"INITIAL_INTERVAL" envDefault:"100ms"`
	MaxInterval     time.Duration `env:"MAX_INTERVAL"     envDefault:"5s"`
	Multiplier      float64       `env:"MULTIPLIER"       envDefault:"2"`
}

type Config struct {
	Retry Retry `envPrefix:"ES_RETRY_"`

	// KurrentDBURL is a connection string such as
	// "kurrentdb://localhost:2113?tls=false". Empty selects the in-memory store.
	KurrentDBURL string `env:"ES_KURRENTDB_URL"`

	// NATSURL enables forwarding of external events when set.
	NATSURL           string `env:"ES_NATS_URL"`
	NATSSubjectPrefix string `env:"ES_NATS_SUBJECT_PREFIX" envDefault:"events"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Retry.Multiplier < 1 {
		return Config{}, fmt.Errorf("parse env: ES_RETRY_MULTIPLIER must be at least 1, got %v", cfg.Retry.Multiplier)
	}
	return cfg, nil
}

// RetryPolicy builds the policy described by c. Zero retries means NoRetry.
func (c Config) RetryPolicy(opts ...eventsourcing.RetryOption) eventsourcing.RetryPolicy {
	if c.Retry.MaxRetries == 0 {
		return eventsourcing.NoRetry()
	}
	return eventsourcing.NewExponentialRetryPolicy(
		c.Retry.MaxRetries,
		c.Retry.InitialInterval,
		c.Retry.MaxInterval,
		c.Retry.Multiplier,
		opts...,
	)
}
