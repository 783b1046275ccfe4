package config

import (
	"testing"
	"time"

	"github.com/jason-s-yu/trickroom/internal/game"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "LOG_LEVEL", "ROOM_CAPACITY", "DATABASE_URL", "PG_HOST", "REDIS_ADDR",
		"HAND_SIZE", "MAX_PLAY_CARDS", "TARGET_SCORE", "MAX_ROUNDS", "TURN_TIMEOUT_SEC", "FLUSH_MIN_LENGTH",
		"TIMEOUT_POLICY", "FLUSH_VISIBILITY", "AUTO_NEXT_ROUND", "REQUIRE_ALL_READY", "TOKEN_EXPIRE_TIME", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, 8, cfg.RoomCapacity)
	assert.Equal(t, game.DefaultHouseRules(), cfg.Rules)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisAddr)
	assert.Zero(t, cfg.TokenExpiry, "tokens never expire by default")
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MAX_PLAY_CARDS", "3")
	t.Setenv("TIMEOUT_POLICY", "AUTO_PLAY")
	t.Setenv("AUTO_NEXT_ROUND", "false")
	t.Setenv("PG_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("PG_PORT", "")
	t.Setenv("PG_DATABASE", "trick")
	t.Setenv("TOKEN_EXPIRE_TIME", "72h")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 3, cfg.Rules.MaxPlayCards)
	assert.Equal(t, game.TimeoutAutoPlay, cfg.Rules.TimeoutPolicy)
	assert.False(t, cfg.Rules.AutoNextRound)
	assert.Equal(t, "postgres://u:p@db:5432/trick", cfg.DatabaseURL)
	assert.Equal(t, 72*time.Hour, cfg.TokenExpiry)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadRejectsBadRules(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("MAX_PLAY_CARDS", "9")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("MAX_PLAY_CARDS", "")
	t.Setenv("LOG_LEVEL", "loud")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("TOKEN_EXPIRE_TIME", "")
	t.Setenv("ROOM_CAPACITY", "abc")
	t.Setenv("AUTO_NEXT_ROUND", "yes")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROOM_CAPACITY")
	assert.Contains(t, err.Error(), "AUTO_NEXT_ROUND")

	t.Setenv("ROOM_CAPACITY", "")
	t.Setenv("AUTO_NEXT_ROUND", "")
	t.Setenv("HAND_SIZE", "seven")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HAND_SIZE")
}
