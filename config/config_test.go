package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requiredEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("AUTH_JWT_SECRET", "jwt")
	t.Setenv("AUTH_APPROVAL_SECRET", "approval")
}

func TestNewMemoryDefaults(t *testing.T) {
	requiredEnv(t)
	t.Setenv("STORE_BACKEND", StoreMemory)

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, NotifyLog, cfg.Notify.Transport)
	assert.False(t, cfg.S3.Enabled)
	assert.Equal(t, 4, cfg.OutboxRelay.Concurrency)
	assert.Equal(t, "72h0m0s", cfg.Auth.ApprovalTokenTTL.String())
	assert.Equal(t, 100, cfg.Maintenance.ExpireBatch)
	assert.Equal(t, "500ms", cfg.Kafka.MaxWait.String())
	assert.Equal(t, "10ms", cfg.Kafka.BatchTimeout.String())
	assert.True(t, cfg.S3.PathStyle)
}

func TestNewReadsExpireBatch(t *testing.T) {
	requiredEnv(t)
	t.Setenv("STORE_BACKEND", StoreMemory)
	t.Setenv("MAINTENANCE_EXPIRE_BATCH", "25")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Maintenance.ExpireBatch)
}

func TestNewRejectsIncompleteBackends(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"STORE_BACKEND": StorePostgres}},
		{"unknown store", map[string]string{"STORE_BACKEND": "sqlite"}},
		{"kafka without brokers", map[string]string{"STORE_BACKEND": StoreMemory, "NOTIFY_TRANSPORT": NotifyKafka}},
		{"amqp without url", map[string]string{"STORE_BACKEND": StoreMemory, "NOTIFY_TRANSPORT": NotifyAMQP}},
		{"s3 without endpoint", map[string]string{"STORE_BACKEND": StoreMemory, "S3_ENABLED": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := New()
			assert.Error(t, err)
		})
	}
}

func TestNewSplitsBrokers(t *testing.T) {
	requiredEnv(t)
	t.Setenv("STORE_BACKEND", StoreMemory)
	t.Setenv("NOTIFY_TRANSPORT", NotifyKafka)
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}
