package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"heritagevoyager/pkg/backoff"
	"heritagevoyager/pkg/config"
	"heritagevoyager/pkg/tracker"
	"heritagevoyager/pkg/tts"
)

const (
	DefaultModel  = "gemini-2.5-flash-preview-tts"
	DefaultPrompt = "Speak the following text clearly: "

	trackerName = "gemini-tts"
)

// ErrNoKey is returned when synthesis is attempted without an API key.
var ErrNoKey = errors.New("gemini tts: no API key configured")

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider implements tts.Provider for Gemini speech generation.
type Provider struct {
	gen     generator
	model   string
	voice   string
	prompt  string
	tracker *tracker.Tracker
	backoff *backoff.ProviderBackoff
}

// NewProvider creates a Gemini TTS provider. An empty key yields a provider
// whose every call fails with ErrNoKey.
func NewProvider(cfg config.TTSConfig, key string, t *tracker.Tracker) (*Provider, error) {
	p := &Provider{
		model:   cfg.Model,
		voice:   cfg.Voice,
		prompt:  cfg.Prompt,
		tracker: t,
	}
	if p.model == "" {
		p.model = DefaultModel
	}
	if p.prompt == "" {
		p.prompt = DefaultPrompt
	}
	if key == "" {
		return p, nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	p.gen = client.Models
	return p, nil
}

// SetBackoff spaces out requests after upstream failures.
func (p *Provider) SetBackoff(b *backoff.ProviderBackoff) {
	p.backoff = b
}

// Synthesize generates speech for text and returns the raw PCM payload.
// Every failure is returned as *tts.SynthesisError.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = p.voice
	}
	if p.gen == nil {
		return nil, tts.NewSynthesisError(voice, ErrNoKey)
	}
	if strings.TrimSpace(text) == "" {
		return nil, tts.NewSynthesisError(voice, errors.New("empty text"))
	}

	prompt := p.prompt + text
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	if err := p.backoff.Wait(ctx, trackerName); err != nil {
		return nil, tts.NewSynthesisError(voice, err)
	}

	start := time.Now()
	resp, err := p.gen.GenerateContent(ctx, p.model, genai.Text(prompt), cfg)
	if err != nil {
		tts.Log(tts.Entry{Provider: "GEMINI", Voice: voice, Prompt: prompt, Latency: time.Since(start), Err: err})
		p.fail()
		p.backoff.RecordFailure(trackerName)
		return nil, tts.NewSynthesisError(voice, fmt.Errorf("api request failed: %w", err))
	}

	data, mime := audioPayload(resp)
	if len(data) == 0 {
		tts.Log(tts.Entry{Provider: "GEMINI", Voice: voice, Prompt: prompt, Latency: time.Since(start), Err: tts.ErrNoAudio})
		p.fail()
		return nil, tts.NewSynthesisError(voice, tts.ErrNoAudio)
	}

	latency := time.Since(start)
	p.backoff.RecordSuccess(trackerName)
	tts.Log(tts.Entry{Provider: "GEMINI", Voice: voice, Prompt: prompt, Bytes: len(data), Latency: latency})
	if p.tracker != nil {
		p.tracker.TrackLatency(trackerName, latency)
	}
	slog.Debug("Gemini TTS: synthesized", "voice", voice, "bytes", len(data), "mime", mime, "latency", latency)
	return data, nil
}

func (p *Provider) fail() {
	if p.tracker != nil {
		p.tracker.TrackAPIFailure(trackerName)
	}
}

// audioPayload returns the first inline part carrying data.
func audioPayload(resp *genai.GenerateContentResponse) ([]byte, string) {
	if resp == nil {
		return nil, ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, part.InlineData.MIMEType
			}
		}
	}
	return nil, ""
}
