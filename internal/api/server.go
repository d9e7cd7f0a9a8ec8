package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"heritagevoyager/pkg/audio"
	"heritagevoyager/pkg/geo"
	"heritagevoyager/pkg/narrator"
	"heritagevoyager/pkg/version"
)

// Handlers groups the endpoint handlers served by NewServer. Nil handlers
// leave their routes unregistered.
type Handlers struct {
	Stats     *StatsHandler
	Countries *CountryHandler
	Audio     *AudioHandler
	Voices    *VoiceHandler
	History   *HistoryHandler
	Hub       *SnapshotHub
}

// NewServer creates and configures the HTTP server.
// shutdown is called after a POST /api/shutdown response has been sent.
func NewServer(addr string, h Handlers, shutdown func()) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewMux(h, shutdown),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewMux registers every route on a fresh ServeMux.
func NewMux(h Handlers, shutdown func()) *http.ServeMux {
	mux := http.NewServeMux()

	// 1. Health + version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	// 2. Stats + logs
	if h.Stats != nil {
		mux.Handle("GET /api/stats", h.Stats)
	}
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	mux.HandleFunc("GET /api/events/latest", handleLatestEvent)

	// 3. Country selection + profile
	if h.Countries != nil {
		mux.HandleFunc("POST /api/countries/select", h.Countries.HandleSelect)
		mux.HandleFunc("POST /api/countries/locate", h.Countries.HandleLocate)
		mux.HandleFunc("GET /api/countries", h.Countries.HandleList)
		mux.HandleFunc("GET /api/profile", h.Countries.HandleProfile)
		mux.HandleFunc("POST /api/narration/play", h.Countries.HandlePlay)
	}

	// 4. Audio transport
	if h.Audio != nil {
		mux.HandleFunc("POST /api/audio/control", h.Audio.HandleControl)
		mux.HandleFunc("POST /api/audio/volume", h.Audio.HandleVolume)
		mux.HandleFunc("GET /api/audio/status", h.Audio.HandleStatus)
	}
	if h.Hub != nil {
		mux.Handle("GET /api/audio/ws", h.Hub)
	}

	// 5. Voices
	if h.Voices != nil {
		mux.HandleFunc("GET /api/voices", h.Voices.HandleList)
		mux.HandleFunc("POST /api/voices", h.Voices.HandleSelect)
		mux.HandleFunc("DELETE /api/voices", h.Voices.HandleReset)
	}
	if h.History != nil {
		mux.Handle("GET /api/narrations", h.History)
	}

	// 6. Shutdown
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		if shutdown == nil {
			return
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, narrator.ErrBusy),
		errors.Is(err, audio.ErrNoBuffer),
		errors.Is(err, audio.ErrNotReady),
		errors.Is(err, audio.ErrNotPlaying),
		errors.Is(err, audio.ErrNotPaused),
		errors.Is(err, narrator.ErrNoProfile):
		status = http.StatusConflict
	case errors.Is(err, narrator.ErrUnknownVoice):
		status = http.StatusBadRequest
	case errors.Is(err, geo.ErrNoCountry):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{
		"status":  "error",
		"message": err.Error(),
	})
}
