package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"REDIS_URL", "STEAM_PAGE_SIZE", "STEAM_MAX_AUTO_LIMIT", "STEAM_RATE_MS",
		"STEAM_RATE_MIN_MS", "STEAM_RATE_MAX_MS", "CATALOG_SYNC_QUEUE",
		"CATALOG_SYNC_CONCURRENCY", "SKIN_FLOAT_SOURCE_URL",
	} {
		os.Unsetenv(k)
	}

	cfg := Load()
	if cfg.SteamPageSize != 30 {
		t.Errorf("SteamPageSize = %d, want 30", cfg.SteamPageSize)
	}
	if cfg.SteamMaxAutoLimit != 1200 {
		t.Errorf("SteamMaxAutoLimit = %d, want 1200", cfg.SteamMaxAutoLimit)
	}
	if cfg.SteamRateMinMs != 1200 {
		t.Errorf("SteamRateMinMs = %d, want 1200", cfg.SteamRateMinMs)
	}
	if cfg.SteamRateMaxMs != 12000 {
		t.Errorf("SteamRateMaxMs = %d, want 12000", cfg.SteamRateMaxMs)
	}
	if cfg.CatalogSyncQueue != "catalog-sync" {
		t.Errorf("CatalogSyncQueue = %q, want catalog-sync", cfg.CatalogSyncQueue)
	}
	if cfg.CatalogSyncConcurrency != 1 {
		t.Errorf("CatalogSyncConcurrency = %d, want 1", cfg.CatalogSyncConcurrency)
	}
}

func TestLoad_ClampsPageSize(t *testing.T) {
	os.Setenv("STEAM_PAGE_SIZE", "5")
	defer os.Unsetenv("STEAM_PAGE_SIZE")

	cfg := Load()
	if cfg.SteamPageSize != 20 {
		t.Errorf("SteamPageSize = %d, want clamped to 20", cfg.SteamPageSize)
	}
}

func TestLoad_RateMaxFollowsRateMin(t *testing.T) {
	os.Setenv("STEAM_RATE_MIN_MS", "5000")
	defer os.Unsetenv("STEAM_RATE_MIN_MS")
	os.Setenv("STEAM_RATE_MAX_MS", "5000")
	defer os.Unsetenv("STEAM_RATE_MAX_MS")

	cfg := Load()
	if cfg.SteamRateMaxMs != 5500 {
		t.Errorf("SteamRateMaxMs = %d, want 5500 (min+500)", cfg.SteamRateMaxMs)
	}
}
