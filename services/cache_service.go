package services

import (
	"sync"
	"time"
)

// CacheEntry is one cached value and its bookkeeping.
type CacheEntry struct {
	Data      interface{}
	LastUsed  time.Time
	ExpiresAt time.Time
}

func (ce *CacheEntry) expiredAt(now time.Time) bool {
	return now.After(ce.ExpiresAt)
}

// CacheService is an in-memory TTL cache. It holds decoded universe tables
// keyed by universe ID; valuation results are never cached. When full, the
// least recently used entry is evicted.
type CacheService struct {
	mu         sync.RWMutex
	entries    map[string]*CacheEntry
	defaultTTL time.Duration
	capacity   int
	hits       int64
	misses     int64
	evictions  int64
	now        func() time.Time
}

// CacheStats is a point-in-time view of the cache, served by /admin/stats.
type CacheStats struct {
	Size       int           `json:"size"`
	MaxSize    int           `json:"max_size"`
	Hits       int64         `json:"hits"`
	Misses     int64         `json:"misses"`
	Evictions  int64         `json:"evictions"`
	DefaultTTL time.Duration `json:"default_ttl"`
}

// NewCacheServiceWithConfig creates a cache holding at most maxSize entries.
// Expired entries are invisible to Get; jobs.CacheCleanupJob reclaims them.
func NewCacheServiceWithConfig(defaultTTL time.Duration, maxSize int) *CacheService {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &CacheService{
		entries:    make(map[string]*CacheEntry, maxSize),
		defaultTTL: defaultTTL,
		capacity:   maxSize,
		now:        time.Now,
	}
}

// Get returns a live value and marks it as recently used.
func (cs *CacheService) Get(key string) (interface{}, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := cs.now()
	entry, ok := cs.entries[key]
	if !ok || entry.expiredAt(now) {
		cs.misses++
		return nil, false
	}
	entry.LastUsed = now
	cs.hits++
	return entry.Data, true
}

func (cs *CacheService) Set(key string, value interface{}) {
	cs.SetWithTTL(key, value, cs.defaultTTL)
}

// SetWithTTL stores value under key, evicting the least recently used entry
// if the cache is full and key is new.
func (cs *CacheService) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, ok := cs.entries[key]; !ok && len(cs.entries) >= cs.capacity {
		cs.evictLeastRecentlyUsed()
	}

	now := cs.now()
	cs.entries[key] = &CacheEntry{
		Data:      value,
		LastUsed:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func (cs *CacheService) evictLeastRecentlyUsed() {
	var victim string
	var victimUsed time.Time
	for key, entry := range cs.entries {
		if victim == "" || entry.LastUsed.Before(victimUsed) {
			victim, victimUsed = key, entry.LastUsed
		}
	}
	if victim != "" {
		delete(cs.entries, victim)
		cs.evictions++
	}
}

func (cs *CacheService) Delete(key string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.entries, key)
}

func (cs *CacheService) Clear() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.entries = make(map[string]*CacheEntry, cs.capacity)
}

func (cs *CacheService) Size() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.entries)
}

func (cs *CacheService) Stats() CacheStats {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	return CacheStats{
		Size:       len(cs.entries),
		MaxSize:    cs.capacity,
		Hits:       cs.hits,
		Misses:     cs.misses,
		Evictions:  cs.evictions,
		DefaultTTL: cs.defaultTTL,
	}
}

// CleanupExpired removes expired entries and returns how many were dropped.
func (cs *CacheService) CleanupExpired() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := cs.now()
	removed := 0
	for key, entry := range cs.entries {
		if entry.expiredAt(now) {
			delete(cs.entries, key)
			removed++
		}
	}
	return removed
}
