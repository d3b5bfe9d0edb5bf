package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP
	HTTPPort string

	// Upstream collaborators
	JobSourceURL       string
	TelemetrySourceURL string
	FetchTimeoutMS     int

	// Poll cycle
	PollIntervalMS int
	CacheTTLMS     int

	// GPS verification. The threshold comparison is inclusive: a distance
	// exactly equal to the threshold counts as on site.
	ProximityThresholdMiles float64

	// Alert rules
	StalledArrivalHours int

	// TimescaleDB (history sink)
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// History writer tuning
	BatchSize int

	// Redis (live-state mirror)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Auth
	AuthCacheTTLSeconds int
	ValidAPIKeys        []string
}

func Load() *Config {
	return &Config{
		HTTPPort:                getEnv("HTTP_PORT", "8002"),
		JobSourceURL:            getEnv("JOB_SOURCE_URL", "http://localhost:9001/api/jobs/active"),
		TelemetrySourceURL:      getEnv("TELEMETRY_SOURCE_URL", "http://localhost:9002/api/positions/latest"),
		FetchTimeoutMS:          getEnvInt("FETCH_TIMEOUT_MS", 10000),
		PollIntervalMS:          getEnvInt("POLL_INTERVAL_MS", 30000),
		CacheTTLMS:              getEnvInt("CACHE_TTL_MS", 15000),
		ProximityThresholdMiles: getEnvFloat("PROXIMITY_THRESHOLD_MILES", 2.0),
		StalledArrivalHours:     getEnvInt("STALLED_ARRIVAL_HOURS", 4),
		DBHost:                  getEnv("DB_HOST", "localhost"),
		DBPort:                  getEnv("DB_PORT", "5432"),
		DBUser:                  getEnv("DB_USER", "sentinel_user"),
		DBPassword:              getEnv("DB_PASSWORD", "sentinel_password"),
		DBName:                  getEnv("DB_NAME", "dispatch_monitor"),
		DBMaxConns:              int32(getEnvInt("DB_MAX_CONNS", 10)),
		BatchSize:               getEnvInt("BATCH_SIZE", 500),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:           getEnv("REDIS_PASSWORD", ""),
		RedisDB:                 getEnvInt("REDIS_DB", 0),
		AuthCacheTTLSeconds:     getEnvInt("AUTH_CACHE_TTL_SECONDS", 300),
		ValidAPIKeys:            strings.Split(getEnv("VALID_API_KEYS", ""), ","),
	}
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMS) * time.Millisecond
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

func (c *Config) StalledArrival() time.Duration {
	return time.Duration(c.StalledArrivalHours) * time.Hour
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
