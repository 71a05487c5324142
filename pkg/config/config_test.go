package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("RAIDHUB_BOT_API_KEY", "secret")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoreMySQL, cfg.Store)
	assert.Equal(t, NotifyLog, cfg.Notify)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, []string{"127.0.0.1:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 20*time.Second, cfg.PollInterval)
	assert.Equal(t, 15*time.Minute, cfg.PollMaxCatchUp)
	assert.True(t, cfg.PollQuarterOnly)
	assert.Equal(t, int64(1), cfg.SnowflakeNode)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("RAIDHUB_BOT_API_KEY", "secret")
	t.Setenv("RAIDHUB_STORE", "memory")
	t.Setenv("RAIDHUB_NOTIFY", "kafka")
	t.Setenv("RAIDHUB_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("RAIDHUB_POLL_INTERVAL", "5s")
	t.Setenv("RAIDHUB_POLL_QUARTER_ONLY", "false")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.False(t, cfg.PollQuarterOnly)
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing api key", map[string]string{}},
		{"unknown store", map[string]string{"RAIDHUB_BOT_API_KEY": "k", "RAIDHUB_STORE": "sqlite"}},
		{"unknown notify", map[string]string{"RAIDHUB_BOT_API_KEY": "k", "RAIDHUB_NOTIFY": "smtp"}},
		{"interval too long", map[string]string{"RAIDHUB_BOT_API_KEY": "k", "RAIDHUB_POLL_INTERVAL": "2m"}},
		{"bad snowflake node", map[string]string{"RAIDHUB_BOT_API_KEY": "k", "RAIDHUB_SNOWFLAKE_NODE": "5000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RAIDHUB_BOT_API_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
