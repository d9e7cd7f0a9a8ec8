package api

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"heritagevoyager/pkg/audio"
	"heritagevoyager/pkg/config"
	"heritagevoyager/pkg/store"
)

// Transport is the part of audio.Transport exposed to the panel.
type Transport interface {
	Pause() error
	Resume() error
	TogglePause() error
	Seek(pos time.Duration) error
	Replay() error
	Stop()
	SetVolume(vol float64)
	Volume() float64
	Snapshot() audio.Snapshot
}

// AudioHandler handles audio control endpoints.
type AudioHandler struct {
	audio Transport
	store store.StateStore
}

// NewAudioHandler creates a new AudioHandler. st may be nil.
func NewAudioHandler(t Transport, st store.StateStore) *AudioHandler {
	return &AudioHandler{
		audio: t,
		store: st,
	}
}

// AudioControlRequest represents an audio control command.
type AudioControlRequest struct {
	Action string  `json:"action"` // "pause", "resume", "toggle", "stop", "replay", "seek"
	Time   float64 `json:"time"`   // seek target, seconds
}

// AudioVolumeRequest represents a volume change request.
type AudioVolumeRequest struct {
	Volume float64 `json:"volume"`
}

// HandleControl handles POST /api/audio/control
func (h *AudioHandler) HandleControl(w http.ResponseWriter, r *http.Request) {
	var req AudioControlRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var err error
	switch req.Action {
	case "pause":
		err = h.audio.Pause()
	case "resume":
		err = h.audio.Resume()
	case "toggle":
		err = h.audio.TogglePause()
	case "stop":
		h.audio.Stop()
	case "replay":
		err = h.audio.Replay()
	case "seek":
		err = h.audio.Seek(secondsToDuration(req.Time))
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Debug("Audio control rejected", "action", req.Action, "error", err)
		writeError(w, err)
		return
	}

	snap := h.audio.Snapshot()
	slog.Debug("Audio control", "action", req.Action, "state", snap.State)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"audio":  snap,
	})
}

// HandleVolume handles POST /api/audio/volume
func (h *AudioHandler) HandleVolume(w http.ResponseWriter, r *http.Request) {
	var req AudioVolumeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	h.audio.SetVolume(req.Volume)
	vol := h.audio.Volume()

	// Persist the clamped value
	if h.store != nil {
		if err := h.store.SetState(r.Context(), config.KeyVolume, fmt.Sprintf("%.2f", vol)); err != nil {
			slog.Error("Failed to persist volume", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"volume": vol,
	})
}

// secondsToDuration saturates instead of wrapping for values beyond the
// int64 range, so the transport still clamps them to the buffer.
func secondsToDuration(sec float64) time.Duration {
	ns := sec * float64(time.Second)
	switch {
	case ns >= math.MaxInt64:
		return math.MaxInt64
	case ns <= math.MinInt64:
		return math.MinInt64
	}
	return time.Duration(ns)
}

// HandleStatus handles GET /api/audio/status
func (h *AudioHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.audio.Snapshot())
}
