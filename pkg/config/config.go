// Package config holds server configuration for favourd.
package config

import (
	"os"
	"strconv"
)

// Config holds server configuration.
type Config struct {
	Port        string
	LogLevel    string
	StoreType   string // "memory" | "postgres" | "sqlite"
	DatabaseURL string
	SQLitePath  string
	AuthSecret  string
	RedisAddr   string // empty disables the distributed idempotency store
	RateRPS     int
	RateBurst   int

	// Profile names a deployment profile to overlay via LoadProfile;
	// ProfilesDir is where profile_<name>.yaml files live.
	Profile     string
	ProfilesDir string

	// Blob overrides the env-based blob store selection when Type is set.
	// Populated by a deployment profile's blob section.
	Blob BlobConfig
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	storeType := os.Getenv("STORE_TYPE")
	if storeType == "" {
		storeType = "memory"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://favour@localhost:5432/favour?sslmode=disable"
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "favour.db"
	}

	profilesDir := os.Getenv("PROFILES_DIR")
	if profilesDir == "" {
		profilesDir = "profiles"
	}

	return &Config{
		Port:        port,
		LogLevel:    logLevel,
		StoreType:   storeType,
		DatabaseURL: dbURL,
		SQLitePath:  sqlitePath,
		AuthSecret:  os.Getenv("AUTH_SECRET"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RateRPS:     intEnv("RATE_RPS", 20),
		RateBurst:   intEnv("RATE_BURST", 40),
		Profile:     os.Getenv("PROFILE"),
		ProfilesDir: profilesDir,
	}
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
