package api

import (
	"net/http"
	"runtime"
	"sync"

	"heritagevoyager/pkg/tracker"
)

type StatsHandler struct {
	tracker *tracker.Tracker
	mu      sync.Mutex
	maxMem  uint64
}

func NewStatsHandler(t *tracker.Tracker) *StatsHandler {
	return &StatsHandler{tracker: t}
}

type ProviderStatsDTO struct {
	CacheHits    int64   `json:"cache_hits"`
	CacheMisses  int64   `json:"cache_misses"`
	APISuccess   int64   `json:"api_success"`
	APIFailures  int64   `json:"api_errors"`
	StaleDrops   int64   `json:"stale_drops"`
	HitRate      int64   `json:"hit_rate"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	MaxLatencyMS float64 `json:"max_latency_ms"`
}

type ComponentStats struct {
	Name        string `json:"name"`
	MemoryMB    uint64 `json:"memory_mb"`
	MemoryMaxMB uint64 `json:"memory_max_mb"`
	Goroutines  int    `json:"goroutines"`
}

type StatsResponse struct {
	Diagnostics []ComponentStats            `json:"diagnostics"`
	Providers   map[string]ProviderStatsDTO `json:"providers"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()

	h.mu.Lock()
	diagnostics := h.gatherDiagnostics()
	h.mu.Unlock()

	resp := StatsResponse{
		Diagnostics: diagnostics,
		Providers:   make(map[string]ProviderStatsDTO),
	}

	for provider, stats := range snapshot {
		totalCache := stats.CacheHits + stats.CacheMisses
		hitRate := int64(0)
		if totalCache > 0 {
			hitRate = (stats.CacheHits * 100) / totalCache
		}
		resp.Providers[provider] = ProviderStatsDTO{
			CacheHits:    stats.CacheHits,
			CacheMisses:  stats.CacheMisses,
			APISuccess:   stats.APISuccess,
			APIFailures:  stats.APIFailures,
			StaleDrops:   stats.StaleDrops,
			HitRate:      hitRate,
			AvgLatencyMS: float64(stats.AvgLatency().Microseconds()) / 1000,
			MaxLatencyMS: float64(stats.LatencyMax) / 1e6,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// gatherDiagnostics reports the server process. h.mu must be held.
func (h *StatsHandler) gatherDiagnostics() []ComponentStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	if m.Sys > h.maxMem {
		h.maxMem = m.Sys
	}
	return []ComponentStats{{
		Name:        "Server",
		MemoryMB:    bToMb(m.Sys),
		MemoryMaxMB: bToMb(h.maxMem),
		Goroutines:  runtime.NumGoroutine(),
	}}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
