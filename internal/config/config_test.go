package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint16(8080), cfg.HTTP.Port)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, QueueMemory, cfg.Queue.Driver)
	assert.Equal(t, EngineInProcess, cfg.Engine.Mode)
	assert.Equal(t, 10, cfg.Engine.MaxBatch)
	assert.Equal(t, time.Second, cfg.Engine.MinDelay)
	assert.Equal(t, 3*time.Second, cfg.Engine.MaxDelay)
	assert.InDelta(t, 0.80, cfg.Engine.MinSuccessRate, 1e-9)
	assert.InDelta(t, 0.95, cfg.Engine.MaxSuccessRate, 1e-9)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Queue.KafkaBrokers)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("QUEUE_DRIVER", "amqp")
	t.Setenv("ENGINE_MODE", "queue")
	t.Setenv("ENGINE_MAX_DELAY", "5s")
	t.Setenv("QUEUE_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.Equal(t, EngineQueue, cfg.Engine.Mode)
	assert.Equal(t, 5*time.Second, cfg.Engine.MaxDelay)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Queue.KafkaBrokers)
}

func TestValidateRejectsBadCombinations(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store", map[string]string{"STORE_DRIVER": "sqlite"}},
		{"unknown queue", map[string]string{"QUEUE_DRIVER": "nats"}},
		{"queue mode on memory queue", map[string]string{"ENGINE_MODE": "queue", "STORE_DRIVER": "postgres"}},
		{"queue mode on memory store", map[string]string{"ENGINE_MODE": "queue", "QUEUE_DRIVER": "amqp"}},
		{"zero batch", map[string]string{"ENGINE_MAX_BATCH": "0"}},
		{"inverted delays", map[string]string{"ENGINE_MIN_DELAY": "4s", "ENGINE_MAX_DELAY": "1s"}},
		{"inverted rates", map[string]string{"ENGINE_MIN_SUCCESS_RATE": "0.9", "ENGINE_MAX_SUCCESS_RATE": "0.5"}},
		{"lease shorter than tick delay", map[string]string{"REDIS_ENABLED": "true", "REDIS_LEASE_TTL": "2s"}},
		{"lease equal to initial delay", map[string]string{"REDIS_ENABLED": "true", "REDIS_LEASE_TTL": "5s", "ENGINE_INITIAL_DELAY": "5s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidateLeaseTTL(t *testing.T) {
	t.Setenv("REDIS_LEASE_TTL", "2s")
	_, err := Load()
	require.NoError(t, err, "the lease ttl is ignored while redis is disabled")

	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_LEASE_TTL", "4s")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, cfg.Redis.LeaseTTL)
}
