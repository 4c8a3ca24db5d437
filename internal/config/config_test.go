package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	// t.Setenv restores the original value on cleanup; Unsetenv clears it
	// for the duration of the test so envDefault kicks in.
	for _, key := range []string{"HTTP_SERVER_PORT", "ALLOWED_ORIGINS", "REDIS_HOST", "REDIS_PORT"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, uint16(4600), cfg.HttpServerPort)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.RedisHost)
	assert.Equal(t, uint16(6379), cfg.RedisPort)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_SERVER_PORT", "8085")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example,http://b.example")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, uint16(8085), cfg.HttpServerPort)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "redis.internal", cfg.RedisHost)
	assert.Equal(t, uint16(6380), cfg.RedisPort)
}

func TestLoadConfigRejectsLowPort(t *testing.T) {
	t.Setenv("HTTP_SERVER_PORT", "80")

	_, err := LoadConfig()
	assert.Error(t, err)
}
