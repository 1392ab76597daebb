// Package cache provides the year data cache for liturgical ordo data.
//
// # Overview
//
// A Manager resolves a calendar year into a YearMapping (date key → day
// record) using at most one fetch cycle per year in flight. Results live in
// two tiers:
//
//   - memory: a map of year → CacheEntry owned by the Manager
//   - persisted: a string key/value Store (SQLite, files, or memory)
//
// # Persisted Layout
//
// Each year is stored under "liturgical_cache_<year>" as
//
//	{
//	  "data": {"2024-01-01": {...}, ...},
//	  "timestamp": 1718000000000
//	}
//
// and "liturgical_cache_years" holds a JSON array of cached years.
//
// # Validity
//
// An entry is valid while now - timestamp < TTL (7 days by default).
// Expired entries are treated as absent and removed from the Store.
//
// # Fetch Cycle
//
// On a miss the Manager probes the API root, then fetches all twelve months
// concurrently. Months that fail are logged and contribute nothing; the
// cycle only fails when the probe fails or the caller's context ends.
package cache

import (
	"errors"
	"time"

	"github.com/colthorp/ordo-cli-go/internal/api"
)

// YearMapping maps YYYY-MM-DD keys to day records for one calendar year.
type YearMapping map[string]api.DayRecord

// Clone returns a shallow copy; records themselves are shared and must not be mutated.
func (y YearMapping) Clone() YearMapping {
	out := make(YearMapping, len(y))
	for k, v := range y {
		out[k] = v
	}
	return out
}

// CacheEntry pairs a YearMapping with its creation time (unix millis).
type CacheEntry struct {
	Data      YearMapping `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// CreatedAt returns the entry timestamp as a time.Time.
func (e *CacheEntry) CreatedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Expired reports whether the entry is no longer valid at now.
func (e *CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	if e == nil || e.Timestamp <= 0 {
		return true
	}
	return now.Sub(e.CreatedAt()) >= ttl
}

// Store is a string-keyed, string-valued persisted store.
// The default implementation is SQLiteStore.
type Store interface {
	// Get returns the value for key; ok is false when the key is absent.
	Get(key string) (value string, ok bool, err error)

	// Set writes value under key, replacing any previous value.
	Set(key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error

	// Keys lists every stored key.
	Keys() ([]string, error)

	Close() error
}

// CacheInfo summarizes the memory tier for settings and debug views.
type CacheInfo struct {
	Years      []int       `json:"years"`
	Count      int         `json:"count"`
	TotalDays  int         `json:"total_days"`
	DaysByYear map[int]int `json:"days_by_year"`
	Pending    int         `json:"pending"`
	Backend    string      `json:"backend"`
}

// ErrNoData means a year (or view) resolved to an empty mapping.
// Manager.GetYear never returns it; presentation layers map an empty
// result to it.
var ErrNoData = errors.New("no liturgical data available for this period")
