package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/colthorp/ordo-cli-go/internal/api"
	"github.com/colthorp/ordo-cli-go/internal/core"
	appLog "github.com/colthorp/ordo-cli-go/internal/log"
)

// Source is the upstream the Manager fetches from. *api.OrdoAPI implements it.
type Source interface {
	Probe(ctx context.Context) error
	FetchMonth(ctx context.Context, year int, month time.Month) (*api.MonthResponse, error)
}

// Manager orchestrates caching and fetching of liturgical year data.
//
// # Lookup Order
//
//  1. memory tier (non-expired entry)
//  2. persisted tier (non-expired entry, promoted to memory; expired entries are deleted)
//  3. an in-flight fetch cycle for the same year (callers share its result)
//  4. a new fetch cycle: probe, twelve concurrent month fetches, merge, store
//
// A fetch cycle is not tied to the caller that started it. Each caller stops
// waiting when its own context ends; the cycle is cancelled only once every
// waiting caller has gone.
//
// # Invalidation
//
// Invalidate clears both tiers and forgets in-flight cycles, so the next
// GetYear starts a fresh cycle. A cycle that was already running is not
// cancelled and still stores its result when it completes.
type Manager struct {
	source Source
	store  Store
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	memory   map[int]*CacheEntry
	inflight map[int]int
	cycles   map[int]*cycle

	group   singleflight.Group
	indexMu sync.Mutex // Serializes read-modify-write of the year index
}

// cycle is the context shared by the callers waiting on one year fetch.
type cycle struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides the 7 day freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock injects the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a new cache manager with the given source and store.
// If store is nil, uses a MemoryStore.
// If source is nil, uses the production API over HTTP.
func NewManager(source Source, store Store, opts ...Option) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if source == nil {
		source = api.NewOrdoAPI(nil)
	}
	m := &Manager{
		source:   source,
		store:    store,
		ttl:      core.CacheTTL,
		now:      time.Now,
		memory:   make(map[int]*CacheEntry),
		inflight: make(map[int]int),
		cycles:   make(map[int]*cycle),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetYear returns the best-effort YearMapping for year.
//
// Concurrent callers for the same uncached year share one fetch cycle.
// The only errors are a failed connectivity probe (*api.ConnectivityError)
// and context cancellation; failed months are absorbed as missing data.
// The returned mapping is a copy the caller may modify.
func (m *Manager) GetYear(ctx context.Context, year int) (YearMapping, error) {
	if data, ok := m.fromMemory(year); ok {
		appLog.Debug("cache hit", "tier", "memory", "year", year)
		return data.Clone(), nil
	}

	if entry, ok := m.readPersisted(year); ok {
		appLog.Debug("cache hit", "tier", "persisted", "year", year)
		m.storeMemory(year, entry)
		return entry.Data.Clone(), nil
	}

	m.mu.Lock()
	c := m.joinCycleLocked(ctx, year)
	ch := m.group.DoChan(strconv.Itoa(year), func() (interface{}, error) {
		return m.fetchCycle(c.ctx, year)
	})
	m.mu.Unlock()

	select {
	case res := <-ch:
		m.leaveCycle(year, c, false)
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			appLog.Debug("joined in-flight fetch", "year", year)
		}
		return res.Val.(YearMapping).Clone(), nil
	case <-ctx.Done():
		m.leaveCycle(year, c, true)
		return nil, ctx.Err()
	}
}

// joinCycleLocked registers a waiter on the year's cycle, creating it if needed.
// The cycle keeps the caller's context values but not its cancellation.
func (m *Manager) joinCycleLocked(ctx context.Context, year int) *cycle {
	c, ok := m.cycles[year]
	if !ok {
		cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &cycle{ctx: cctx, cancel: cancel}
		m.cycles[year] = c
	}
	c.waiters++
	return c
}

// leaveCycle drops a waiter. When the last waiter abandons the cycle it is
// cancelled and forgotten, so a later caller starts a fresh one.
func (m *Manager) leaveCycle(year int, c *cycle, abandoned bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c.waiters--
	if c.waiters > 0 {
		return
	}
	if m.cycles[year] == c {
		delete(m.cycles, year)
		if abandoned {
			m.group.Forget(strconv.Itoa(year))
		}
	}
	if abandoned {
		appLog.Debug("all callers left; cancelling fetch", "year", year)
	}
	c.cancel()
}

// fetchCycle runs one year-fetch cycle and stores its result.
func (m *Manager) fetchCycle(ctx context.Context, year int) (YearMapping, error) {
	// A cycle that finished between our cache check and registration already stored the year.
	if data, ok := m.fromMemory(year); ok {
		return data, nil
	}

	m.trackInflight(year, 1)
	defer m.trackInflight(year, -1)

	appLog.Info("loading year", "year", year)

	if err := m.source.Probe(ctx); err != nil {
		appLog.Error("failed to load year", err, "year", year)
		return nil, err
	}

	data, failed, err := m.fetchYear(ctx, year)
	if err != nil {
		appLog.Error("year fetch aborted; discarding partial result", err, "year", year)
		return nil, err
	}

	if len(failed) > 0 {
		appLog.Warn("partial year data", "year", year, "failed_months", formatMonths(failed), "days", len(data))
	}
	if len(data) == 0 {
		appLog.Warn("no data for year", "year", year)
	}

	entry := &CacheEntry{Data: data, Timestamp: m.now().UnixMilli()}
	m.storeMemory(year, entry)
	m.writePersisted(year, entry)

	appLog.Info("year loaded", "year", year, "days", len(data))
	return data, nil
}

// CachedSlice returns the cached records of year whose keys are in dateKeys.
// Never performs I/O; absent keys are simply missing from the result.
func (m *Manager) CachedSlice(year int, dateKeys []string) YearMapping {
	out := make(YearMapping)
	data, ok := m.fromMemory(year)
	if !ok {
		return out
	}
	for _, key := range dateKeys {
		if rec, ok := data[key]; ok {
			out[key] = rec
		}
	}
	return out
}

// Invalidate clears both tiers for the given years, or for every year when
// none are given, and forgets their in-flight cycles.
func (m *Manager) Invalidate(years ...int) {
	if len(years) == 0 {
		m.invalidateAll()
		return
	}

	m.mu.Lock()
	for _, year := range years {
		delete(m.memory, year)
		delete(m.cycles, year)
		m.group.Forget(strconv.Itoa(year))
	}
	m.mu.Unlock()

	for _, year := range years {
		m.removePersisted(year)
	}
	appLog.Info("cache invalidated", "years", years)
}

func (m *Manager) invalidateAll() {
	m.mu.Lock()
	for year := range m.memory {
		m.group.Forget(strconv.Itoa(year))
	}
	for year := range m.cycles {
		m.group.Forget(strconv.Itoa(year))
	}
	m.memory = make(map[int]*CacheEntry)
	m.cycles = make(map[int]*cycle)
	m.mu.Unlock()

	m.indexMu.Lock()
	defer m.indexMu.Unlock()

	keys, err := m.store.Keys()
	if err != nil {
		appLog.Warn("failed to list persisted cache", "err", err)
	}
	for _, key := range keys {
		if !strings.HasPrefix(key, core.CacheKeyPrefix) {
			continue
		}
		if err := m.store.Remove(key); err != nil {
			appLog.Warn("failed to remove persisted entry", "key", key, "err", err)
		}
	}
	if err := m.store.Remove(core.CacheIndexKey); err != nil {
		appLog.Warn("failed to remove cache index", "err", err)
	}
	appLog.Info("cache cleared")
}

// Info reports the cached years and record counts of the memory tier.
func (m *Manager) Info() CacheInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info := CacheInfo{
		Years:      make([]int, 0, len(m.memory)),
		DaysByYear: make(map[int]int, len(m.memory)),
		Backend:    storeName(m.store),
	}
	now := m.now()
	for year, entry := range m.memory {
		if entry.Expired(now, m.ttl) {
			continue
		}
		info.Years = append(info.Years, year)
		info.DaysByYear[year] = len(entry.Data)
		info.TotalDays += len(entry.Data)
	}
	sort.Ints(info.Years)
	info.Count = len(info.Years)
	for _, n := range m.inflight {
		if n > 0 {
			info.Pending++
		}
	}
	return info
}

// LoadFromStore promotes every valid persisted year into memory and purges
// expired ones. Returns the number of years loaded.
func (m *Manager) LoadFromStore() int {
	loaded := 0
	for _, year := range m.indexedYears() {
		entry, ok := m.readPersisted(year)
		if !ok {
			continue
		}
		m.storeMemory(year, entry)
		loaded++
	}
	appLog.Debug("cache warmed from store", "years", loaded)
	return loaded
}

// Purge drops expired entries from both tiers. Returns the number of years removed.
func (m *Manager) Purge() int {
	purged := 0
	now := m.now()

	m.mu.Lock()
	for year, entry := range m.memory {
		if entry.Expired(now, m.ttl) {
			delete(m.memory, year)
			purged++
		}
	}
	m.mu.Unlock()

	for _, year := range m.indexedYears() {
		raw, ok, err := m.store.Get(yearKey(year))
		if err != nil || !ok {
			continue
		}
		var entry CacheEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.Expired(now, m.ttl) {
			m.removePersisted(year)
			purged++
		}
	}
	if purged > 0 {
		appLog.Info("expired cache purged", "years", purged)
	}
	return purged
}

// TTL returns the freshness window.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Close closes the persisted store.
func (m *Manager) Close() error {
	return m.store.Close()
}

// GetStore returns the persisted store (for testing).
func (m *Manager) GetStore() Store {
	return m.store
}

// fromMemory returns the memory-tier mapping for year if present and fresh.
// Expired entries are dropped.
func (m *Manager) fromMemory(year int) (YearMapping, bool) {
	m.mu.RLock()
	entry, ok := m.memory[year]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if entry.Expired(m.now(), m.ttl) {
		m.mu.Lock()
		if m.memory[year] == entry {
			delete(m.memory, year)
		}
		m.mu.Unlock()
		return nil, false
	}
	return entry.Data, true
}

func (m *Manager) storeMemory(year int, entry *CacheEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memory[year] = entry
}

func (m *Manager) trackInflight(year, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight[year] += delta
	if m.inflight[year] <= 0 {
		delete(m.inflight, year)
	}
}

// readPersisted loads a fresh entry for year from the store.
// Expired or corrupt entries are removed; store errors degrade to a miss.
func (m *Manager) readPersisted(year int) (*CacheEntry, bool) {
	raw, ok, err := m.store.Get(yearKey(year))
	if err != nil {
		appLog.Warn("failed to read persisted cache", "year", year, "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var entry CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		appLog.Warn("corrupt persisted cache entry; removing", "year", year, "err", err)
		m.removePersisted(year)
		return nil, false
	}
	if entry.Expired(m.now(), m.ttl) {
		appLog.Debug("persisted cache expired", "year", year, "cached_at", entry.CreatedAt().Format(time.RFC3339))
		m.removePersisted(year)
		return nil, false
	}
	if entry.Data == nil {
		entry.Data = make(YearMapping)
	}
	return &entry, true
}

// writePersisted stores entry and records year in the index.
// Failures are logged and leave the year cached in memory only.
func (m *Manager) writePersisted(year int, entry *CacheEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		appLog.Warn("failed to encode cache entry; memory-only", "year", year, "err", err)
		return
	}

	m.indexMu.Lock()
	defer m.indexMu.Unlock()

	if err := m.store.Set(yearKey(year), string(data)); err != nil {
		appLog.Warn("failed to save cache; memory-only", "year", year, "err", err)
		return
	}

	years := m.readIndexLocked()
	for _, y := range years {
		if y == year {
			return
		}
	}
	m.writeIndexLocked(append(years, year))
}

// removePersisted deletes the year entry and drops it from the index.
func (m *Manager) removePersisted(year int) {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()

	if err := m.store.Remove(yearKey(year)); err != nil {
		appLog.Warn("failed to remove persisted cache", "year", year, "err", err)
	}

	years := m.readIndexLocked()
	kept := years[:0]
	for _, y := range years {
		if y != year {
			kept = append(kept, y)
		}
	}
	if len(kept) != len(years) {
		m.writeIndexLocked(kept)
	}
}

func (m *Manager) indexedYears() []int {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()
	return m.readIndexLocked()
}

func (m *Manager) readIndexLocked() []int {
	raw, ok, err := m.store.Get(core.CacheIndexKey)
	if err != nil || !ok {
		return []int{}
	}
	var years []int
	if err := json.Unmarshal([]byte(raw), &years); err != nil {
		appLog.Warn("corrupt cache index; resetting", "err", err)
		return []int{}
	}
	return years
}

func (m *Manager) writeIndexLocked(years []int) {
	sort.Ints(years)
	data, _ := json.Marshal(years)
	if err := m.store.Set(core.CacheIndexKey, string(data)); err != nil {
		appLog.Warn("failed to save cache index", "err", err)
	}
}

// yearKey is the persisted key for year.
func yearKey(year int) string {
	return fmt.Sprintf("%s%d", core.CacheKeyPrefix, year)
}

func formatMonths(months []time.Month) string {
	parts := make([]string, len(months))
	for i, mo := range months {
		parts[i] = strconv.Itoa(int(mo))
	}
	return strings.Join(parts, ",")
}
