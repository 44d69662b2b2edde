// Package config loads the environment-driven settings that govern the
// Fetcher's pacing, the Sync Worker's pagination limits, and the job broker
// connection, per the documented environment variables.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/stadam23/tradeup-ev/internal/logger"
)

// Config holds every environment-tunable setting for the process.
type Config struct {
	RedisURL string

	SteamPageSize          int
	SteamMaxAutoLimit      int
	SteamRateMs            int
	SteamRateMinMs         int
	SteamRateMaxMs         int
	CatalogSyncQueue       string
	CatalogSyncConcurrency int
	SkinFloatSourceURL     string
}

// LoadDotEnv loads a local .env file (if present) into the process
// environment without overriding variables already set by the shell. It is a
// no-op when no .env file exists, matching the teacher's double-clicked-binary
// convenience loader but delegating the parsing to godotenv.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("CONFIG", "failed reading .env: "+err.Error())
	}
}

// Load reads and clamps every environment variable from spec §6.1.
func Load() *Config {
	rateMinMs := clampInt(envInt("STEAM_RATE_MIN_MS", 1200), 800, 1<<30)

	cfg := &Config{
		RedisURL:               envOr("REDIS_URL", "redis://127.0.0.1:6379/0"),
		SteamPageSize:          clampInt(envInt("STEAM_PAGE_SIZE", 30), 20, 80),
		SteamMaxAutoLimit:      clampInt(envInt("STEAM_MAX_AUTO_LIMIT", 1200), 500, 5000),
		SteamRateMs:            maxInt(envInt("STEAM_RATE_MS", 3000), 800),
		SteamRateMinMs:         rateMinMs,
		CatalogSyncQueue:       envOr("CATALOG_SYNC_QUEUE", "catalog-sync"),
		CatalogSyncConcurrency: maxInt(envInt("CATALOG_SYNC_CONCURRENCY", 1), 1),
		SkinFloatSourceURL:     strings.TrimSpace(os.Getenv("SKIN_FLOAT_SOURCE_URL")),
	}
	cfg.SteamRateMaxMs = maxInt(envInt("STEAM_RATE_MAX_MS", 12000), rateMinMs+500)
	return cfg
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("CONFIG", "invalid "+key+"="+v+", using default")
		return fallback
	}
	return n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(v, lo int) int {
	if v < lo {
		return lo
	}
	return v
}
