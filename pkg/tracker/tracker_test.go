package tracker

import (
	"sync"
	"testing"
	"time"
)

func TestTracker(t *testing.T) {
	tr := New()
	provider := "test.provider"

	// Test Initial State
	stats := tr.Snapshot()
	if len(stats) != 0 {
		t.Errorf("Expected empty stats, got %d", len(stats))
	}

	// Test Tracking
	tr.TrackCacheHit(provider)
	tr.TrackCacheMiss(provider)
	tr.TrackAPISuccess(provider)
	tr.TrackAPIFailure(provider)
	tr.TrackStale(provider)

	// Verify Snapshot
	stats = tr.Snapshot()
	pStats, ok := stats[provider]
	if !ok {
		t.Fatalf("Expected stats for provider %s", provider)
	}

	if pStats.CacheHits != 1 {
		t.Errorf("Expected 1 CacheHit, got %d", pStats.CacheHits)
	}
	if pStats.CacheMisses != 1 {
		t.Errorf("Expected 1 CacheMiss, got %d", pStats.CacheMisses)
	}
	if pStats.APISuccess != 1 {
		t.Errorf("Expected 1 APISuccess, got %d", pStats.APISuccess)
	}
	if pStats.APIFailures != 1 {
		t.Errorf("Expected 1 APIFailure, got %d", pStats.APIFailures)
	}
	if pStats.StaleDrops != 1 {
		t.Errorf("Expected 1 StaleDrop, got %d", pStats.StaleDrops)
	}
}

func TestTrackLatency(t *testing.T) {
	tr := New()
	tr.TrackLatency("tts", 100*time.Millisecond)
	tr.TrackLatency("tts", 300*time.Millisecond)

	s := tr.Snapshot()["tts"]
	if s.APISuccess != 2 {
		t.Errorf("Expected 2 APISuccess, got %d", s.APISuccess)
	}
	if got := s.AvgLatency(); got != 200*time.Millisecond {
		t.Errorf("AvgLatency() = %v, want 200ms", got)
	}
	if got := time.Duration(s.LatencyMax); got != 300*time.Millisecond {
		t.Errorf("LatencyMax = %v, want 300ms", got)
	}
	if got := (ProviderStats{}).AvgLatency(); got != 0 {
		t.Errorf("AvgLatency() on empty stats = %v, want 0", got)
	}
}

func TestResetKeepsProviders(t *testing.T) {
	tr := New()
	tr.TrackAPISuccess("gemini")
	tr.TrackLatency("tts", time.Second)

	tr.Reset()

	stats := tr.Snapshot()
	if len(stats) != 2 {
		t.Fatalf("Post-Reset: expected 2 providers, got %d", len(stats))
	}
	for name, s := range stats {
		if s.APISuccess != 0 || s.LatencyTotal != 0 || s.LatencyMax != 0 {
			t.Errorf("Post-Reset: %s not zeroed: %+v", name, s)
		}
	}
	if got := tr.Providers(); len(got) != 2 || got[0] != "gemini" || got[1] != "tts" {
		t.Errorf("Providers() = %v", got)
	}
}

func TestConcurrentTracking(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.TrackCacheHit("p")
			tr.TrackLatency("p", time.Millisecond)
		}()
	}
	wg.Wait()

	s := tr.Snapshot()["p"]
	if s.CacheHits != 50 || s.APISuccess != 50 {
		t.Errorf("unexpected counts: %+v", s)
	}
}
