package config

import (
	"context"
	"testing"
	"time"
)

// MockStateStore implements store.StateStore for testing.
type MockStateStore struct {
	data map[string]string
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{data: make(map[string]string)}
}

func (m *MockStateStore) GetState(ctx context.Context, key string) (string, bool) {
	val, ok := m.data[key]
	return val, ok
}

func (m *MockStateStore) SetState(ctx context.Context, key, val string) error {
	m.data[key] = val
	return nil
}

func (m *MockStateStore) DeleteState(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestUnifiedProvider(t *testing.T) {
	ctx := context.Background()
	baseCfg := DefaultConfig()
	baseCfg.Audio.Volume = 0.8

	tests := []struct {
		name  string
		state map[string]string
		check func(t *testing.T, p *UnifiedProvider)
	}{
		{
			name: "Fallback to config",
			check: func(t *testing.T, p *UnifiedProvider) {
				if got := p.Voice(ctx); got != "Zephyr" {
					t.Errorf("Voice() = %q, want Zephyr", got)
				}
				if got := p.Volume(ctx); got != 0.8 {
					t.Errorf("Volume() = %v, want 0.8", got)
				}
				if got := p.FrameInterval(ctx); got != 16*time.Millisecond {
					t.Errorf("FrameInterval() = %v, want 16ms", got)
				}
			},
		},
		{
			name:  "Store overrides",
			state: map[string]string{KeyVoice: "Charon", KeyVolume: "0.25"},
			check: func(t *testing.T, p *UnifiedProvider) {
				if got := p.Voice(ctx); got != "Charon" {
					t.Errorf("Voice() = %q, want Charon", got)
				}
				if got := p.Volume(ctx); got != 0.25 {
					t.Errorf("Volume() = %v, want 0.25", got)
				}
			},
		},
		{
			name:  "Corrupt values ignored",
			state: map[string]string{KeyVolume: "loud"},
			check: func(t *testing.T, p *UnifiedProvider) {
				if got := p.Volume(ctx); got != 0.8 {
					t.Errorf("Volume() = %v, want 0.8", got)
				}
			},
		},
		{
			name:  "Out of range volume ignored",
			state: map[string]string{KeyVolume: "3"},
			check: func(t *testing.T, p *UnifiedProvider) {
				if got := p.Volume(ctx); got != 0.8 {
					t.Errorf("Volume() = %v, want 0.8", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewMockStateStore()
			for k, v := range tt.state {
				_ = st.SetState(ctx, k, v)
			}
			tt.check(t, NewProvider(baseCfg, st))
		})
	}
}
