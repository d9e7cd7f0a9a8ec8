package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"heritagevoyager/pkg/model"
	"heritagevoyager/pkg/narrator"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// HistoryStore reads back narration history and the audio cache.
type HistoryStore interface {
	RecentNarrations(ctx context.Context, limit int) ([]*model.Narration, error)
	ListCacheKeys(ctx context.Context, prefix string) ([]string, error)
}

// HistoryHandler serves the narration history.
type HistoryHandler struct {
	store HistoryStore
}

func NewHistoryHandler(st HistoryStore) *HistoryHandler {
	return &HistoryHandler{store: st}
}

// NarrationDTO is one history row with durations in seconds.
type NarrationDTO struct {
	RequestID string  `json:"request_id"`
	Subject   string  `json:"subject"`
	Voice     string  `json:"voice"`
	Duration  float64 `json:"duration"`
	LatencyMS int64   `json:"latency_ms"`
	Cached    bool    `json:"cached"`
	CreatedAt string  `json:"created_at"`
}

type HistoryResponse struct {
	Narrations  []NarrationDTO `json:"narrations"`
	CachedAudio int            `json:"cached_audio"`
}

// ServeHTTP handles GET /api/narrations?limit=
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	rows, err := h.store.RecentNarrations(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to read narration history", "error", err)
		writeError(w, err)
		return
	}
	keys, err := h.store.ListCacheKeys(r.Context(), narrator.AudioCachePrefix)
	if err != nil {
		slog.Warn("Failed to count cached audio", "error", err)
	}

	resp := HistoryResponse{Narrations: make([]NarrationDTO, 0, len(rows)), CachedAudio: len(keys)}
	for _, n := range rows {
		resp.Narrations = append(resp.Narrations, NarrationDTO{
			RequestID: n.RequestID,
			Subject:   n.Subject,
			Voice:     n.Voice,
			Duration:  n.Duration.Seconds(),
			LatencyMS: n.GenerationLatency.Milliseconds(),
			Cached:    n.Cached,
			CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
