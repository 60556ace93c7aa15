package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	eventsourcing "github.com/terraskye/eventsourcing-core"
	"github.com/terraskye/eventsourcing-core/eventstore/memory"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint64(0), cfg.Retry.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.InitialInterval)
	assert.Equal(t, 5*time.Second, cfg.Retry.MaxInterval)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.Equal(t, "events", cfg.NATSSubjectPrefix)
	assert.Empty(t, cfg.KurrentDBURL)
	assert.Equal(t, eventsourcing.NoRetry(), cfg.RetryPolicy())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ES_RETRY_MAX_RETRIES", "4")
	t.Setenv("ES_RETRY_INITIAL_INTERVAL", "10ms")
	t.Setenv("ES_RETRY_MAX_INTERVAL", "1s")
	t.Setenv("ES_RETRY_MULTIPLIER", "1.5")
	t.Setenv("ES_KURRENTDB_URL", "kurrentdb://localhost:2113?tls=false")
	t.Setenv("ES_NATS_URL", "nats://localhost:4222")
	t.Setenv("ES_NATS_SUBJECT_PREFIX", "shop")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Retry{MaxRetries: 4, InitialInterval: 10 * time.Millisecond, MaxInterval: time.Second, Multiplier: 1.5}, cfg.Retry)
	assert.Equal(t, "kurrentdb://localhost:2113?tls=false", cfg.KurrentDBURL)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, "shop", cfg.NATSSubjectPrefix)
	assert.IsType(t, &eventsourcing.BackoffRetryPolicy{}, cfg.RetryPolicy())
}

func TestDefaultsUseInProcessComponents(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	types := eventsourcing.NewEventTypeMapper()

	store, err := cfg.OpenEventStore(types)
	require.NoError(t, err)
	assert.IsType(t, &memory.MemoryStore{}, store)

	producer, closeProducer, err := cfg.ExternalProducer(types, nil)
	require.NoError(t, err)
	defer closeProducer()
	assert.Equal(t, eventsourcing.NopExternalEventProducer{}, producer)
}

func TestOpenEventStoreRejectsBadURL(t *testing.T) {
	cfg := Config{KurrentDBURL: "http://not a connection string"}

	_, err := cfg.OpenEventStore(eventsourcing.NewEventTypeMapper())
	assert.ErrorContains(t, err, "ES_KURRENTDB_URL")
}

func TestLoadError(t *testing.T) {
	t.Setenv("ES_RETRY_MAX_RETRIES", "many")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parse env:"), err.Error())
}

func TestLoadRejectsShrinkingMultiplier(t *testing.T) {
	t.Setenv("ES_RETRY_MULTIPLIER", "0.5")

	_, err := Load()
	assert.ErrorContains(t, err, "ES_RETRY_MULTIPLIER")
}
