// Package core provides shared constants and configuration for the ordo CLI.
package core

import (
	"os"
	"path/filepath"
	"time"
)

// API configuration
const (
	ProductionAPIBaseURL  = "https://api-eky0.onrender.com"
	DevelopmentAPIBaseURL = "http://localhost:8000"
	APIBaseEnvVar         = "ORDO_API_BASE_URL"
	CacheBackendEnvVar    = "ORDO_CACHE_BACKEND"
	ConfigEnvVar          = "ORDO_CONFIG"
	EnvironmentEnvVar     = "ORDO_ENV"
)

// Environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Date formats
const (
	APIDateFmt  = "2006-01-02"
	APIMonthFmt = "2006-01"
)

// Cache defaults
const (
	CacheTTL          = 7 * 24 * time.Hour
	MonthFetchTimeout = 10 * time.Second
	MonthsPerYear     = 12

	CacheKeyPrefix = "liturgical_cache_"
	CacheIndexKey  = "liturgical_cache_years"
)

// Cache backends
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Prefetch defaults
const (
	PrefetchMaxWorkers = 3 // Max years warmed in parallel
)

// Default cache backend
var CacheBackend = BackendSQLite

func init() {
	// Override defaults from environment variables
	if backend := os.Getenv(CacheBackendEnvVar); backend != "" {
		CacheBackend = backend
	}
}

// HomeDir returns the ordo state directory (~/.ordo).
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".ordo")
}

// CacheRoot returns the default cache directory path.
func CacheRoot() string {
	return filepath.Join(HomeDir(), "cache")
}

// ConfigPath returns the default config file path, honoring ORDO_CONFIG.
func ConfigPath() string {
	if p := os.Getenv(ConfigEnvVar); p != "" {
		return p
	}
	return filepath.Join(HomeDir(), "config.yaml")
}

// Version is the current CLI version.
const Version = "0.3.0"
