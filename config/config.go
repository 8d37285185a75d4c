package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Addr     string
	LogLevel string

	PingInterval time.Duration // liveness probe cadence
	ConnPerMin   int           // websocket upgrades allowed per IP per minute

	CORSAllow []string // allowed origins, "*" disables the check

	RedisAddr string // host:port, empty disables cross-instance fanout
	RedisDB   int
}

func Load() Config {
	cfg := Config{
		Addr:      getEnv("ADDR", ":8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		RedisAddr: getEnv("REDIS_ADDR", ""),
	}
	cfg.PingInterval = getEnvDuration("PING_INTERVAL", 15*time.Second)
	cfg.ConnPerMin = getEnvInt("CONN_PER_MIN", 30)
	cfg.CORSAllow = splitCSV(getEnv("CORS_ALLOW", "*"))
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	return cfg
}

// getEnv returns the env var or a default
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getEnvInt parses an int env var with a fallback
func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		var i int
		_, _ = fmt.Sscanf(v, "%d", &i)
		if i > 0 {
			return i
		}
	}
	return def
}

// getEnvDuration parses a duration env var ("15s", "1m") with a fallback
func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
