// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/trickroom/internal/game"
	"github.com/sirupsen/logrus"
)

// Config is everything the server reads from its environment.
type Config struct {
	Port     string
	LogLevel logrus.Level

	RoomCapacity   int
	RoomCodeLength int
	Rules          game.HouseRules

	RedisAddr   string
	RedisDB     int
	QueueName   string
	DatabaseURL string

	AllowedOrigins []string // empty => any http(s) origin

	TokenExpiry    time.Duration
	PrivateKeyPath string // both set => load keys instead of generating them
	PublicKeyPath  string
}

// Load reads the environment, falling back to defaults for anything unset.
// House rule values are validated the same way a start-game override is.
func Load() (Config, error) {
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	var env envReader
	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       level,
		RoomCapacity:   env.intOr("ROOM_CAPACITY", game.MaxPlayers),
		RoomCodeLength: env.intOr("ROOM_CODE_LENGTH", 6),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisDB:        env.intOr("REDIS_DB", 0),
		QueueName:      getEnv("HISTORIAN_QUEUE_NAME", "trickroom_actions"),
		DatabaseURL:    databaseURL(),
		AllowedOrigins: allowedOrigins(),
		PrivateKeyPath: os.Getenv("AUTH_PRIVATE_KEY_PATH"),
		PublicKeyPath:  os.Getenv("AUTH_PUBLIC_KEY_PATH"),
	}
	if cfg.TokenExpiry, err = tokenExpiry(); err != nil {
		return Config{}, err
	}

	overrides := map[string]interface{}{}
	intRule := func(key, rule string) {
		if v, ok := env.lookupInt(key); ok {
			overrides[rule] = v
		}
	}
	intRule("HAND_SIZE", "handSize")
	intRule("MAX_PLAY_CARDS", "maxPlayCards")
	intRule("TARGET_SCORE", "targetScore")
	intRule("MAX_ROUNDS", "maxRounds")
	intRule("TURN_TIMEOUT_SEC", "turnTimeoutSec")
	intRule("FLUSH_MIN_LENGTH", "flushMinLength")
	if v := os.Getenv("TIMEOUT_POLICY"); v != "" {
		overrides["timeoutPolicy"] = strings.ToLower(v)
	}
	if v := os.Getenv("FLUSH_VISIBILITY"); v != "" {
		overrides["flushVisibility"] = strings.ToLower(v)
	}
	if v, ok := env.lookupBool("AUTO_NEXT_ROUND"); ok {
		overrides["autoNextRound"] = v
	}
	if v, ok := env.lookupBool("REQUIRE_ALL_READY"); ok {
		overrides["requireAllReady"] = v
	}
	if err := env.err(); err != nil {
		return Config{}, err
	}

	cfg.Rules, err = game.ParseRules(overrides, game.DefaultHouseRules())
	if err != nil {
		return Config{}, fmt.Errorf("house rules: %w", err)
	}
	return cfg, nil
}

// allowedOrigins splits ALLOWED_ORIGINS on commas.
func allowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// databaseURL prefers DATABASE_URL and otherwise assembles one from the
// POSTGRES_* and PG_* variables. An empty result disables the room recorder.
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		host,
		getEnv("PG_PORT", "5432"),
		os.Getenv("PG_DATABASE"),
	)
}

// tokenExpiry reads TOKEN_EXPIRE_TIME as a Go duration; "never", "0" or
// unset means tokens carry no exp claim.
func tokenExpiry() (time.Duration, error) {
	v := os.Getenv("TOKEN_EXPIRE_TIME")
	if v == "" || v == "never" || v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// envReader parses typed variables and collects an error for every malformed
// one. Unset variables are not errors.
type envReader struct {
	errs []error
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

// intOr parses key as an integer, else returns def when unset.
func (e *envReader) intOr(key string, def int) int {
	if v, ok := e.lookupInt(key); ok {
		return v
	}
	return def
}

func (e *envReader) lookupInt(key string) (int, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, s))
		return 0, false
	}
	return v, true
}

func (e *envReader) lookupBool(key string) (bool, bool) {
	s := os.Getenv(key)
	if s == "" {
		return false, false
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, s))
		return false, false
	}
	return v, true
}
