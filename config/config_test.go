package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://arena@localhost/arena?sslmode=disable")
	t.Setenv("JWT_SECRET_KEY", "secret")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)
	for _, key := range []string{"SERVER_PORT", "MATCHMAKING_SWEEP_INTERVAL", "RATE_LIMIT_PER_MINUTE", "CORS_ALLOWED_ORIGINS", "R2_ACCOUNT_ID", "R2_BUCKET_NAME"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 30*time.Second, cfg.MatchmakingSweepInterval)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.R2.Enabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MATCHMAKING_SWEEP_INTERVAL", "5s")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "60")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://arena.example.com, https://admin.example.com")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, 5*time.Second, cfg.MatchmakingSweepInterval)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, []string{"https://arena.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
}

func TestFromEnv_Errors(t *testing.T) {
	cases := map[string]map[string]string{
		"missing database": {"DATABASE_URL": ""},
		"missing secret":   {"JWT_SECRET_KEY": ""},
		"bad port":         {"SERVER_PORT": "http"},
		"port range":       {"SERVER_PORT": "70000"},
		"bad sweep":        {"MATCHMAKING_SWEEP_INTERVAL": "soon"},
		"tiny sweep":       {"MATCHMAKING_SWEEP_INTERVAL": "10ms"},
		"zero rate":        {"RATE_LIMIT_PER_MINUTE": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
