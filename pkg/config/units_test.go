package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"16ms", 16 * time.Millisecond, false},
		{"1m", time.Minute, false},
		{"1.5h", 90 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"30d", 30 * Day, false},
		{"2w", 2 * Week, false},
		{"2d 12h", 60 * time.Hour, false},
		{"0", 0, false},
		{"", 0, false},
		{"45", 0, true},
		{"3y", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDistance(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"300m", 300, false},
		{"1.5km", 1500, false},
		{"12nm", 22224, false},
		{"1km250m", 1250, false},
		{"500", 500, false},
		{"10x", 0, true},
		{"km", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDistance(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnits_YAML(t *testing.T) {
	var cfg struct {
		TTL     Duration `yaml:"ttl"`
		Snap    Distance `yaml:"snap"`
		Plain   Distance `yaml:"plain"`
		Default Duration `yaml:"default"`
	}
	err := yaml.Unmarshal([]byte("ttl: 30d\nsnap: 12nm\nplain: 5000\n"), &cfg)
	require.NoError(t, err)

	assert.Equal(t, 30*Day, time.Duration(cfg.TTL))
	assert.Equal(t, 22224.0, cfg.Snap.Meters())
	assert.Equal(t, 5000.0, cfg.Plain.Meters())
	assert.Zero(t, cfg.Default)

	out, err := yaml.Marshal(struct {
		TTL  Duration `yaml:"ttl"`
		Snap Distance `yaml:"snap"`
	}{Duration(16 * time.Millisecond), Distance(22224)})
	require.NoError(t, err)
	assert.Equal(t, "ttl: 16ms\nsnap: 22224m\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("ttl: 3 fortnights\n"), &cfg))
}
