package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"heritagevoyager/pkg/audio"
	"heritagevoyager/pkg/config"
	"heritagevoyager/pkg/narrator"
	"heritagevoyager/pkg/store"
)

// VoiceHandler lists the narrators and persists the chosen one.
type VoiceHandler struct {
	cfg   config.Provider
	store store.StateStore
}

func NewVoiceHandler(cfg config.Provider, st store.StateStore) *VoiceHandler {
	return &VoiceHandler{cfg: cfg, store: st}
}

type VoiceRequest struct {
	Voice string `json:"voice"`
}

type VoicesResponse struct {
	Voices   []audio.VoiceProfile `json:"voices"`
	Selected string               `json:"selected"`
}

// HandleList handles GET /api/voices
func (h *VoiceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VoicesResponse{
		Voices:   audio.Voices,
		Selected: audio.VoiceOrDefault(h.cfg.Voice(r.Context())),
	})
}

// HandleSelect handles POST /api/voices
func (h *VoiceHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	var req VoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, ok := audio.ParseVoice(req.Voice)
	if !ok {
		writeError(w, fmt.Errorf("%w: %s", narrator.ErrUnknownVoice, req.Voice))
		return
	}
	if h.store == nil {
		http.Error(w, "voice cannot be persisted", http.StatusServiceUnavailable)
		return
	}
	if err := h.store.SetState(r.Context(), config.KeyVoice, v.Name); err != nil {
		slog.Error("Failed to persist voice", "error", err)
		writeError(w, err)
		return
	}
	slog.Info("Voice selected", "voice", v.Name)
	writeJSON(w, http.StatusOK, VoicesResponse{Voices: audio.Voices, Selected: v.Name})
}

// HandleReset handles DELETE /api/voices, returning to the configured voice.
func (h *VoiceHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "voice cannot be persisted", http.StatusServiceUnavailable)
		return
	}
	if err := h.store.DeleteState(r.Context(), config.KeyVoice); err != nil {
		slog.Error("Failed to reset voice", "error", err)
		writeError(w, err)
		return
	}
	selected := audio.VoiceOrDefault(h.cfg.Voice(r.Context()))
	slog.Info("Voice reset", "voice", selected)
	writeJSON(w, http.StatusOK, VoicesResponse{Voices: audio.Voices, Selected: selected})
}
