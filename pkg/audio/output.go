package audio

import (
	"fmt"
	"log/slog"
	"time"

	"heritagevoyager/pkg/config"
)

// Output is the audio device. It has no pause: a sounding instance plays
// from a frame until it ends naturally or is stopped.
type Output interface {
	// Start begins sounding buf at frame from. onEnd fires at most once,
	// on its own goroutine, when the buffer plays out. It never fires
	// after Stop.
	Start(buf *SampleBuffer, from int, onEnd func()) (Sounding, error)
	SetVolume(vol float64)
	Close() error
}

// Sounding is one in-progress emission of a buffer.
type Sounding interface {
	// Stop silences the instance and detaches its completion callback.
	Stop()
}

// NewOutput opens the backend named by cfg.Output.
func NewOutput(cfg *config.AudioConfig) (Output, error) {
	switch cfg.Output {
	case "beep", "":
		return NewSpeakerOutput(deviceRate(cfg.DeviceRate), time.Duration(cfg.DeviceBuffer))
	case "oto":
		return NewOtoOutput(time.Duration(cfg.DeviceBuffer))
	case "none":
		slog.Info("Audio: output disabled, narration will be timed but silent")
		return NullOutput{}, nil
	default:
		return nil, fmt.Errorf("unknown audio output %q", cfg.Output)
	}
}

// NullOutput discards audio. Playback ends by the clock alone.
type NullOutput struct{}

func (NullOutput) Start(*SampleBuffer, int, func()) (Sounding, error) {
	return nullSounding{}, nil
}

func (NullOutput) SetVolume(float64) {}

func (NullOutput) Close() error { return nil }

type nullSounding struct{}

func (nullSounding) Stop() {}
