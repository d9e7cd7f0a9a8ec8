package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	LLM    LLMConfig    `yaml:"llm"`
	TTS    TTSConfig    `yaml:"tts"`
	Audio  AudioConfig  `yaml:"audio"`
	Log    LogConfig    `yaml:"log"`
	DB     DBConfig     `yaml:"db"`
	Cache  CacheConfig  `yaml:"cache"`
	Server ServerConfig `yaml:"server"`
	Geo    GeoConfig    `yaml:"geo"`
}

// LLMConfig holds settings for the profile generation model.
type LLMConfig struct {
	Provider string            `yaml:"provider"` // "gemini"
	Model    string            `yaml:"model"`
	Key      string            `yaml:"key"`      // API Key
	Profiles map[string]string `yaml:"profiles"` // Map of intent -> model
	Backoff  BackoffConfig     `yaml:"backoff"`  // Shared by profile and speech requests
}

// BackoffConfig spaces out requests after upstream failures.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// TTSConfig holds Text-To-Speech settings.
type TTSConfig struct {
	Engine string `yaml:"engine"` // "gemini"
	Model  string `yaml:"model"`
	Voice  string `yaml:"voice"` // Kore, Puck, Charon, Fenrir, Zephyr
	Prompt string `yaml:"prompt"`
}

// AudioConfig holds settings for the playback engine.
type AudioConfig struct {
	Output        string   `yaml:"output"`         // "beep", "oto", "none"
	DeviceRate    int      `yaml:"device_rate"`    // Output device sample rate (beep only)
	DeviceBuffer  Duration `yaml:"device_buffer"`  // Output device buffer length
	FrameInterval Duration `yaml:"frame_interval"` // Progress loop tick
	Volume        float64  `yaml:"volume"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
	Gemini   LogSettings `yaml:"gemini"`
	TTS      LogSettings `yaml:"tts"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path           string `yaml:"path"`
	SeedProfiles   string `yaml:"seed_profiles"`   // Optional JSON file imported on startup
	KeepNarrations int    `yaml:"keep_narrations"` // Narration history rows retained
}

// CacheConfig controls caching of generated profiles and narrations.
type CacheConfig struct {
	Profiles   bool     `yaml:"profiles"`
	Narrations bool     `yaml:"narrations"`
	TTL        Duration `yaml:"ttl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// GeoConfig holds settings for map click resolution.
type GeoConfig struct {
	CountriesFile string   `yaml:"countries_file"`
	MaxSnap       Distance `yaml:"max_snap"` // Clicks at sea snap to a coast within this distance
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-3-flash-preview",
			Key:      "",
			Profiles: map[string]string{
				"profile": "gemini-3-flash-preview",
			},
			Backoff: BackoffConfig{
				BaseDelay: Duration(2 * time.Second),
				MaxDelay:  Duration(time.Minute),
			},
		},
		TTS: TTSConfig{
			Engine: "gemini",
			Model:  "gemini-2.5-flash-preview-tts",
			Voice:  "Zephyr",
			Prompt: "Speak the following text clearly: ",
		},
		Audio: AudioConfig{
			Output:        "beep",
			DeviceRate:    48000,
			DeviceBuffer:  Duration(100 * time.Millisecond),
			FrameInterval: Duration(16 * time.Millisecond),
			Volume:        1.0,
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/events.log",
				Level: "INFO",
			},
			Gemini: LogSettings{
				Path:  "./logs/gemini.log",
				Level: "INFO",
			},
			TTS: LogSettings{
				Path:  "./logs/tts.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path:           "./data/heritage.db",
			SeedProfiles:   "./data/profiles.json",
			KeepNarrations: 500,
		},
		Cache: CacheConfig{
			Profiles:   true,
			Narrations: true,
			TTL:        Duration(30 * Day),
		},
		Server: ServerConfig{
			Address: "localhost:1921",
		},
		Geo: GeoConfig{
			CountriesFile: "data/countries.geojson",
			MaxSnap:       Distance(22224), // 12nm territorial waters
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT save back to disk.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	// Env fallback for secrets, never written back to disk
	if cfg.LLM.Key == "" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			cfg.LLM.Key = key
		} else if key := os.Getenv("API_KEY"); key != "" {
			cfg.LLM.Key = key
		}
	}

	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandPaths resolves $VAR references in file paths. The raw values stay on disk.
func (c *Config) expandPaths() {
	for _, p := range []*string{
		&c.DB.Path,
		&c.DB.SeedProfiles,
		&c.Geo.CountriesFile,
		&c.Log.Server.Path,
		&c.Log.Requests.Path,
		&c.Log.Events.Path,
		&c.Log.Gemini.Path,
		&c.Log.TTS.Path,
	} {
		*p = os.ExpandEnv(*p)
	}
}

// Validate checks enum fields and ranges.
func (c *Config) Validate() error {
	switch c.Audio.Output {
	case "beep", "oto", "none":
	default:
		return fmt.Errorf("invalid audio.output '%s': must be one of beep, oto, none", c.Audio.Output)
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		return fmt.Errorf("invalid audio.volume %.2f: must be within [0, 1]", c.Audio.Volume)
	}
	if c.LLM.Backoff.MaxDelay < c.LLM.Backoff.BaseDelay {
		return fmt.Errorf("invalid llm.backoff: max_delay is below base_delay")
	}
	if c.Audio.FrameInterval <= 0 {
		return fmt.Errorf("invalid audio.frame_interval: must be positive")
	}
	if !isValidVoiceName(c.TTS.Voice) {
		return fmt.Errorf("invalid tts.voice '%s': must be a capitalized prebuilt voice name (e.g. 'Zephyr')", c.TTS.Voice)
	}
	return nil
}

func isValidVoiceName(s string) bool {
	matched, _ := regexp.MatchString(`^[A-Z][a-z]+$`, s)
	return matched
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Heritage Voyager Configuration
# -----------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), nm (nautical miles), ft (feet)

`)
	data = append(header, data...)

	reOutput := regexp.MustCompile(`(?m)^(\s+)output:`)
	data = reOutput.ReplaceAll(data, []byte("${1}# Options: beep, oto, none\n${1}output:"))

	reVoice := regexp.MustCompile(`(?m)^(\s+)voice:`)
	data = reVoice.ReplaceAll(data, []byte("${1}# Options: Kore, Puck, Charon, Fenrir, Zephyr\n${1}voice:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
