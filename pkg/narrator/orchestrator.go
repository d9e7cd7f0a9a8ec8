package narrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"heritagevoyager/pkg/audio"
	"heritagevoyager/pkg/logging"
	"heritagevoyager/pkg/model"
	"heritagevoyager/pkg/tracker"
	"heritagevoyager/pkg/tts"
)

const (
	// AudioCachePrefix starts every synthesized audio cache key.
	AudioCachePrefix = "tts:"

	trackerAudio = "narration-audio"
)

// Orchestrator turns narration requests into playback: synthesize, decode,
// and hand the buffer to the player unless the request went stale meanwhile.
type Orchestrator struct {
	player   Player
	tts      tts.Provider
	store    Store
	sel      *Selection
	tracker  *tracker.Tracker
	useCache bool
}

// NewOrchestrator creates an orchestrator. st may be nil.
func NewOrchestrator(player Player, synth tts.Provider, st Store, sel *Selection, t *tracker.Tracker, useCache bool) *Orchestrator {
	return &Orchestrator{
		player:   player,
		tts:      synth,
		store:    st,
		sel:      sel,
		tracker:  t,
		useCache: useCache && st != nil,
	}
}

// AudioCacheKey identifies synthesized audio by voice and text.
func AudioCacheKey(voice, text string) string {
	sum := sha256.Sum256([]byte(text))
	return AudioCachePrefix + strings.ToLower(voice) + ":" + hex.EncodeToString(sum[:])
}

// Narrate synthesizes req and starts playback from the beginning.
//
// It returns ErrStaleResponse, leaving the player untouched, when req no
// longer matches the current selection once the audio arrives. Synthesis and
// decode failures put the player in its error state and are returned.
func (o *Orchestrator) Narrate(ctx context.Context, req *model.NarrationRequest) (*model.Narration, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("narration text is empty")
	}

	if err := o.sel.Begin(req, o.player.BeginLoading); err != nil {
		o.discard(req, "before synthesis")
		return nil, err
	}
	slog.Info("Narrator: narration requested", "subject", req.Subject, "voice", req.Voice, "request", req.ID)

	start := time.Now()
	raw, cached, err := o.audioFor(ctx, req)
	latency := time.Since(start)

	var buf *audio.SampleBuffer
	if err == nil {
		buf, err = audio.Decode(raw)
	}

	if err != nil {
		failErr := o.sel.Deliver(req, func() error {
			o.player.Fail(err)
			return nil
		})
		if errors.Is(failErr, ErrStaleResponse) {
			o.discard(req, "after failure")
			return nil, ErrStaleResponse
		}
		slog.Warn("Narrator: narration failed", "subject", req.Subject, "error", err)
		logging.LogEvent(&model.Event{
			Type:    model.EventFailure,
			Subject: req.Subject,
			Title:   "Narration failed",
			Summary: err.Error(),
		})
		return nil, err
	}

	err = o.sel.Deliver(req, func() error {
		return o.player.Play(buf, 0)
	})
	if errors.Is(err, ErrStaleResponse) {
		o.discard(req, "after synthesis")
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("start playback: %w", err)
	}

	n := &model.Narration{
		RequestID:         req.ID,
		Subject:           req.Subject,
		Voice:             req.Voice,
		Duration:          buf.Duration(),
		GenerationLatency: latency,
		Cached:            cached,
		CreatedAt:         time.Now(),
	}
	if o.store != nil {
		if err := o.store.SaveNarration(ctx, n); err != nil {
			slog.Warn("Narrator: failed to record narration", "error", err)
		}
	}

	logging.LogEvent(&model.Event{
		Type:    model.EventNarration,
		Subject: req.Subject,
		Title:   "Narration started",
		Summary: fmt.Sprintf("%s, %.1fs, voice %s", cacheLabel(cached), buf.Seconds(), req.Voice),
	})
	slog.Info("Narrator: playing", "subject", req.Subject, "duration", buf.Duration(), "latency", latency, "cached", cached)
	return n, nil
}

// audioFor returns the PCM for req from the cache or the synthesizer.
func (o *Orchestrator) audioFor(ctx context.Context, req *model.NarrationRequest) (raw []byte, cached bool, err error) {
	key := AudioCacheKey(req.Voice, req.Text)
	if o.useCache {
		if data, ok := o.store.GetCache(ctx, key); ok && len(data) > 0 {
			o.track(func(t *tracker.Tracker) { t.TrackCacheHit(trackerAudio) })
			return data, true, nil
		}
		o.track(func(t *tracker.Tracker) { t.TrackCacheMiss(trackerAudio) })
	}

	raw, err = o.tts.Synthesize(ctx, tts.PrepareText(req.Text), req.Voice)
	if err != nil {
		return nil, false, err
	}
	if len(raw) == 0 {
		return nil, false, tts.NewSynthesisError(req.Voice, tts.ErrNoAudio)
	}

	if o.useCache && len(raw)%2 == 0 {
		if err := o.store.SetCache(ctx, key, raw); err != nil {
			slog.Warn("Narrator: failed to cache audio", "error", err)
		}
	}
	return raw, false, nil
}

func (o *Orchestrator) discard(req *model.NarrationRequest, stage string) {
	o.track(func(t *tracker.Tracker) { t.TrackStale(trackerAudio) })
	slog.Debug("Narrator: discarded stale narration", "subject", req.Subject, "request", req.ID, "stage", stage)
	logging.LogEvent(&model.Event{
		Type:    model.EventStale,
		Subject: req.Subject,
		Title:   "Narration discarded",
		Summary: stage,
	})
}

func (o *Orchestrator) track(fn func(*tracker.Tracker)) {
	if o.tracker != nil {
		fn(o.tracker)
	}
}

func cacheLabel(cached bool) string {
	if cached {
		return "cached"
	}
	return "synthesized"
}
