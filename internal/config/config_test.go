package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL())
	assert.Equal(t, DefaultRedisURL, cfg.RedisURL)
	assert.Equal(t, "secret", cfg.RefreshSecret())
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 25, cfg.DB.MaxConns)
	assert.Equal(t, 30*time.Minute, cfg.DB.ConnMaxLife)
	assert.GreaterOrEqual(t, cfg.RateLimit.TTL, 5*cfg.RateLimit.RefillInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "30")
	t.Setenv("REDIS_URL", "redis://cache:6380/2")
	t.Setenv("DB_HOST", "mysql")
	t.Setenv("DB_CONN_MAX_LIFETIME", "5m")
	t.Setenv("BCRYPT_COST", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.AccessTTL())
	assert.Equal(t, "refresh-secret", cfg.RefreshSecret())
	assert.Equal(t, "redis://cache:6380/2", cfg.RedisURL)
	assert.Equal(t, "mysql", cfg.DB.Host)
	assert.Equal(t, 5*time.Minute, cfg.DB.ConnMaxLife)
	assert.Equal(t, 4, cfg.BcryptCost)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "placeholder")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidBcryptCost(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("BCRYPT_COST", "99")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BCRYPT_COST")
}

func TestRateLimitConfig_Normalize(t *testing.T) {
	c := RateLimitConfig{RefillInterval: 2 * time.Second, TTL: time.Second}
	c.normalize()

	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, 10*time.Second, c.TTL)
	assert.Equal(t, "rl", c.Prefix)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	assert.True(t, mr.Exists("k"))
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "://nope")
	require.Error(t, err)
}
