package config

import (
	"context"
	"strconv"
	"time"

	"heritagevoyager/pkg/store"
)

// Keys of user preferences persisted in the state store.
const (
	KeyVoice  = "voice"
	KeyVolume = "volume"
)

// Provider defines the interface for accessing unified configuration.
type Provider interface {
	Voice(ctx context.Context) string
	Volume(ctx context.Context) float64
	FrameInterval(ctx context.Context) time.Duration
	CacheTTL(ctx context.Context) time.Duration

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

func (p *UnifiedProvider) Voice(ctx context.Context) string {
	fallback := p.base.TTS.Voice
	if fallback == "" {
		fallback = "Zephyr"
	}
	return p.getString(ctx, KeyVoice, fallback)
}

func (p *UnifiedProvider) Volume(ctx context.Context) float64 {
	v := p.getFloat64(ctx, KeyVolume, p.base.Audio.Volume)
	if v < 0 || v > 1 {
		return p.base.Audio.Volume
	}
	return v
}

func (p *UnifiedProvider) FrameInterval(ctx context.Context) time.Duration {
	return time.Duration(p.base.Audio.FrameInterval)
}

func (p *UnifiedProvider) CacheTTL(ctx context.Context) time.Duration {
	return time.Duration(p.base.Cache.TTL)
}

// --- Helpers ---

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val
		}
	}
	return fallback
}

func (p *UnifiedProvider) getFloat64(ctx context.Context, key string, fallback float64) float64 {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	}
	return fallback
}
