// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/dicebet/internal/channel"
	"github.com/sirupsen/logrus"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds everything the dicebet client reads from the environment.
type Config struct {
	APIURL string
	WSURL  string

	Handshake      channel.Handshake
	MaxAttempts    int
	ReconnectDelay time.Duration

	SessionStore string
	RedisAddr    string
	RedisDB      int

	LogLevel    logrus.Level
	MetricsAddr string
}

// Load reads the environment. Unparseable numbers fall back to their defaults;
// unknown enum values are errors.
func Load() (Config, error) {
	cfg := Config{
		APIURL:         getEnv("DICEBET_API_URL", "http://localhost/api"),
		WSURL:          getEnv("DICEBET_WS_URL", "ws://localhost/api/ws"),
		MaxAttempts:    getEnvInt("WS_MAX_RECONNECT_ATTEMPTS", channel.DefaultMaxAttempts),
		ReconnectDelay: getEnvDuration("WS_RECONNECT_DELAY", channel.DefaultBaseDelay),
		SessionStore:   strings.ToLower(getEnv("SESSION_STORE", StoreMemory)),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		MetricsAddr:    os.Getenv("METRICS_ADDR"),
		LogLevel:       logrus.InfoLevel,
	}

	h, err := channel.ParseHandshake(os.Getenv("WS_HANDSHAKE"))
	if err != nil {
		return Config{}, err
	}
	cfg.Handshake = h

	switch cfg.SessionStore {
	case StoreMemory, StoreRedis:
	default:
		return Config{}, fmt.Errorf("unknown SESSION_STORE %q (want %s or %s)", cfg.SessionStore, StoreMemory, StoreRedis)
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsed, err := logrus.ParseLevel(lvl)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = parsed
	}
	return cfg, nil
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}

func getEnvDuration(key string, defVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defVal
	}
	return d
}
