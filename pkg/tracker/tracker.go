package tracker

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Tracker tracks usage statistics per provider.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*ProviderStats
}

// ProviderStats holds metrics for a specific provider.
// Fields are accessed atomically.
type ProviderStats struct {
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	APISuccess  int64 `json:"api_success"`
	APIFailures int64 `json:"api_failures"`
	StaleDrops  int64 `json:"stale_drops"`

	// Latency of successful calls, nanoseconds
	LatencyTotal int64 `json:"-"`
	LatencyMax   int64 `json:"-"`
}

// AvgLatency is the mean latency over successful calls.
func (s ProviderStats) AvgLatency() time.Duration {
	if s.APISuccess == 0 {
		return 0
	}
	return time.Duration(s.LatencyTotal / s.APISuccess)
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*ProviderStats),
	}
}

// getStats returns the stats object for a provider, creating it if needed.
func (t *Tracker) getStats(provider string) *ProviderStats {
	t.mu.RLock()
	s, ok := t.stats[provider]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[provider]; ok {
		return s
	}
	s = &ProviderStats{}
	t.stats[provider] = s
	return s
}

// TrackCacheHit increments the cache hit counter.
func (t *Tracker) TrackCacheHit(provider string) {
	atomic.AddInt64(&t.getStats(provider).CacheHits, 1)
}

func (t *Tracker) TrackCacheMiss(provider string) {
	atomic.AddInt64(&t.getStats(provider).CacheMisses, 1)
}

func (t *Tracker) TrackAPISuccess(provider string) {
	atomic.AddInt64(&t.getStats(provider).APISuccess, 1)
}

func (t *Tracker) TrackAPIFailure(provider string) {
	atomic.AddInt64(&t.getStats(provider).APIFailures, 1)
}

// TrackStale counts a result that arrived after its subject was abandoned.
func (t *Tracker) TrackStale(provider string) {
	atomic.AddInt64(&t.getStats(provider).StaleDrops, 1)
}

// TrackLatency records a successful call and how long it took.
func (t *Tracker) TrackLatency(provider string, d time.Duration) {
	s := t.getStats(provider)
	atomic.AddInt64(&s.APISuccess, 1)
	atomic.AddInt64(&s.LatencyTotal, int64(d))
	for {
		cur := atomic.LoadInt64(&s.LatencyMax)
		if int64(d) <= cur || atomic.CompareAndSwapInt64(&s.LatencyMax, cur, int64(d)) {
			return
		}
	}
}

// Reset zeroes all counters but keeps the known providers.
func (t *Tracker) Reset() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, s := range t.stats {
		atomic.StoreInt64(&s.CacheHits, 0)
		atomic.StoreInt64(&s.CacheMisses, 0)
		atomic.StoreInt64(&s.APISuccess, 0)
		atomic.StoreInt64(&s.APIFailures, 0)
		atomic.StoreInt64(&s.StaleDrops, 0)
		atomic.StoreInt64(&s.LatencyTotal, 0)
		atomic.StoreInt64(&s.LatencyMax, 0)
	}
}

// Providers returns the tracked provider names, sorted.
func (t *Tracker) Providers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.stats))
	for k := range t.stats {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ProviderStats)
	for k, v := range t.stats {
		result[k] = ProviderStats{
			CacheHits:    atomic.LoadInt64(&v.CacheHits),
			CacheMisses:  atomic.LoadInt64(&v.CacheMisses),
			APISuccess:   atomic.LoadInt64(&v.APISuccess),
			APIFailures:  atomic.LoadInt64(&v.APIFailures),
			StaleDrops:   atomic.LoadInt64(&v.StaleDrops),
			LatencyTotal: atomic.LoadInt64(&v.LatencyTotal),
			LatencyMax:   atomic.LoadInt64(&v.LatencyMax),
		}
	}
	return result
}
