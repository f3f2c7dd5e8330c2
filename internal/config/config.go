package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Env            string
	StoreDriver    string // "memory" | "postgres" | "sqlite"
	DatabaseURL    string
	SQLitePath     string
	RoomTTL        time.Duration
	StoreTimeout   time.Duration
	SweepInterval  time.Duration
	WatchInterval  time.Duration
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

const (
	defaultPort           = "8080"
	defaultStoreDriver    = "memory"
	defaultSQLitePath     = "data/rooms.db"
	defaultRoomTTL        = time.Hour
	defaultStoreTimeout   = 5 * time.Second
	defaultSweepInterval  = time.Minute
	defaultWatchInterval  = 250 * time.Millisecond
	defaultAllowedOrigin  = "*"
	defaultRateLimitRPS   = 20.0
	defaultRateLimitBurst = 40
)

// Load reads .env when present, then the environment. Unset or unparsable
// values fall back to defaults.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:           getEnv("PORT", defaultPort),
		Env:            os.Getenv("APP_ENV"),
		StoreDriver:    defaultStoreDriver,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     getEnv("SQLITE_PATH", defaultSQLitePath),
		RoomTTL:        getDuration("ROOM_TTL", defaultRoomTTL),
		StoreTimeout:   getDuration("STORE_TIMEOUT", defaultStoreTimeout),
		SweepInterval:  getDuration("SWEEP_INTERVAL", defaultSweepInterval),
		WatchInterval:  getDuration("WATCH_INTERVAL", defaultWatchInterval),
		AllowedOrigins: parseAllowedOrigins(getEnv("ALLOWED_ORIGINS", defaultAllowedOrigin)),
		RateLimitRPS:   defaultRateLimitRPS,
		RateLimitBurst: defaultRateLimitBurst,
	}

	switch driver := strings.ToLower(os.Getenv("STORE_DRIVER")); driver {
	case "memory", "postgres", "sqlite":
		cfg.StoreDriver = driver
	}

	if raw := os.Getenv("RATE_LIMIT_RPS"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			cfg.RateLimitRPS = v
		}
	}
	if raw := os.Getenv("RATE_LIMIT_BURST"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			cfg.RateLimitBurst = v
		}
	}

	return cfg
}

func (c Config) Development() bool { return c.Env == "development" }

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

func parseAllowedOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = []string{defaultAllowedOrigin}
	}
	return origins
}
