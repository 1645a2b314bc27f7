package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"support-retrieval/internal/infra/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	assert.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "9020", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 72, cfg.CandidateTTLHrs)
	assert.Equal(t, 1024, cfg.CandidateCache)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbedModel)
	assert.Equal(t, 1536, cfg.EmbedDim)
	assert.Equal(t, 10, cfg.DefaultMaxResults)
	assert.Equal(t, 0.0, cfg.EscalationThreshold)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("CROSS_ENCODER_MAX_RPS", "12.5")
	t.Setenv("ESCALATION_THRESHOLD", "0.35")
	t.Setenv("DEFAULT_MAX_RESULTS", "25")

	cfg, err := config.Load()
	assert.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "redis.internal:6380", cfg.RedisAddr)
	assert.Equal(t, 12.5, cfg.CrossEncoderMaxRPS)
	assert.Equal(t, 0.35, cfg.EscalationThreshold)
	assert.Equal(t, 25, cfg.DefaultMaxResults)
}
