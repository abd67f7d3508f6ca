// Package config assembles runtime configuration from environment
// variables. Every knob has a working default so a bare invocation runs
// against the in-memory store with structural-only matching.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"specforge/internal/pattern"
)

// StoreType selects the pattern catalog backend.
type StoreType string

const (
	MemoryStore   StoreType = "memory"
	PostgresStore StoreType = "postgres"
)

// Config is the resolved runtime configuration.
type Config struct {
	StoreType StoreType
	// ConnectionString backs the postgres store.
	ConnectionString string
	// APIKey enables the embedding oracle; empty means structural-only
	// matching.
	APIKey string
	// Matching carries the matcher and discovery thresholds.
	Matching pattern.Config
}

// Load reads the environment. Unset variables fall back to defaults;
// malformed numeric overrides are ignored rather than fatal.
func Load() Config {
	cfg := Config{
		StoreType:        storeType(),
		ConnectionString: connectionString(),
		APIKey:           os.Getenv("SPECFORGE_API_KEY"),
		Matching:         pattern.DefaultConfig(),
	}

	if v, ok := floatEnv("SPECFORGE_MIN_SIMILARITY"); ok {
		cfg.Matching.MinSimilarity = v
	}
	if v, ok := floatEnv("SPECFORGE_SUGGEST_FLOOR"); ok {
		cfg.Matching.SuggestFloor = v
	}
	if v, ok := intEnv("SPECFORGE_STEP_CEILING"); ok {
		cfg.Matching.StepCeiling = v
	}
	if v, ok := intEnv("SPECFORGE_COMPLEXITY_CEILING"); ok {
		cfg.Matching.ComplexityCeiling = v
	}
	if v := os.Getenv("SPECFORGE_ORACLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Matching.OracleTimeout = d
		}
	}
	return cfg
}

// UsesPostgres reports whether the postgres store backend is selected.
func (c Config) UsesPostgres() bool {
	return c.StoreType == PostgresStore
}

func storeType() StoreType {
	switch strings.ToLower(os.Getenv("SPECFORGE_STORE_TYPE")) {
	case "memory", "mock":
		return MemoryStore
	case "postgres", "postgresql", "db":
		return PostgresStore
	case "":
		// Without a connection string there is nothing to connect to.
		if os.Getenv("SPECFORGE_DB_CONN") == "" {
			return MemoryStore
		}
		return PostgresStore
	default:
		return MemoryStore
	}
}

func connectionString() string {
	if conn := os.Getenv("SPECFORGE_DB_CONN"); conn != "" {
		return conn
	}
	return "postgres://localhost:5432/specforge?sslmode=disable"
}

func floatEnv(key string) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func intEnv(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
