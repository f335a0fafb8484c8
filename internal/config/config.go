// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Default keyword sets for the event/AV production domain. Overridable via
// INCLUDE_KEYWORDS / EXCLUDE_KEYWORDS so classification rules can change
// without a redeploy.
var (
	defaultIncludeKeywords = []string{
		"av technician", "audio visual", "sound engineer", "lighting technician",
		"event production", "stage manager", "rigger", "video technician",
		"production manager", "event technician", "av engineer", "broadcast",
		"live events", "vision mixer", "projectionist",
	}
	defaultExcludeKeywords = []string{
		"chef", "kitchen", "catering", "waiter", "waitress", "bartender",
		"barista", "front of house", "housekeeping", "cleaner", "receptionist",
		"sous chef", "hospitality assistant",
	}
)

// Config holds all runtime configuration for the ingestion service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string // optional — enables the shared snapshot cache

	ReedAPIKey    string
	AdzunaAppID   string
	AdzunaAppKey  string
	AdzunaCountry string // e.g. "gb", "fr", "us"

	SearchKeywords string
	SearchLocation string
	MinSalary      int

	SyncIntervalMinutes int
	CacheTTLMinutes     int
	MaxTotalJobs        int
	MaxPerProvider      int
	DedupeDisabled      bool

	IncludeKeywords []string
	ExcludeKeywords []string
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		Port:           envOr("INGESTION_PORT", "8083"),
		DatabaseURL:    dbURL,
		RedisURL:       os.Getenv("REDIS_URL"),
		ReedAPIKey:     os.Getenv("REED_API_KEY"),
		AdzunaAppID:    os.Getenv("ADZUNA_APP_ID"),
		AdzunaAppKey:   os.Getenv("ADZUNA_APP_KEY"),
		AdzunaCountry:  envOr("ADZUNA_COUNTRY", "gb"),
		SearchKeywords: envOr("SEARCH_KEYWORDS", "event technician"),
		SearchLocation: envOr("SEARCH_LOCATION", "London"),
		DedupeDisabled: os.Getenv("DEDUPE_DISABLED") == "true",
	}

	var err error
	if cfg.SyncIntervalMinutes, err = envInt("SYNC_INTERVAL_MINUTES", 30); err != nil {
		return nil, err
	}
	if cfg.CacheTTLMinutes, err = envInt("CACHE_TTL_MINUTES", 30); err != nil {
		return nil, err
	}
	if cfg.MaxTotalJobs, err = envInt("MAX_TOTAL_JOBS", 50); err != nil {
		return nil, err
	}
	if cfg.MaxPerProvider, err = envInt("MAX_PER_PROVIDER", 50); err != nil {
		return nil, err
	}
	if cfg.MinSalary, err = envInt("MIN_SALARY", 0); err != nil {
		return nil, err
	}

	cfg.IncludeKeywords = envList("INCLUDE_KEYWORDS", defaultIncludeKeywords)
	cfg.ExcludeKeywords = envList("EXCLUDE_KEYWORDS", defaultExcludeKeywords)

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, s)
	}
	return v, nil
}

// envList parses a comma-separated list, trimming whitespace and dropping
// empty entries. Returns fallback when the variable is unset.
func envList(key string, fallback []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
