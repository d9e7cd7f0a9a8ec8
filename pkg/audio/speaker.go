package audio

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

const defaultDeviceRate = 48000

func deviceRate(rate int) beep.SampleRate {
	if rate <= 0 {
		return defaultDeviceRate
	}
	return beep.SampleRate(rate)
}

// SpeakerOutput plays through the beep speaker, resampling 24 kHz to the device rate.
type SpeakerOutput struct {
	rate beep.SampleRate

	mu      sync.Mutex
	volume  float64
	current *speakerSounding
}

// NewSpeakerOutput initializes the speaker. The speaker is process-global,
// so only one SpeakerOutput should exist.
func NewSpeakerOutput(rate beep.SampleRate, buffer time.Duration) (*SpeakerOutput, error) {
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}
	if err := speaker.Init(rate, rate.N(buffer)); err != nil {
		slog.Error("Failed to initialize speaker", "error", err)
		return nil, err
	}
	slog.Debug("Audio: speaker initialized", "rate", int(rate), "buffer", buffer)
	return &SpeakerOutput{rate: rate, volume: 1.0}, nil
}

func (o *SpeakerOutput) Start(buf *SampleBuffer, from int, onEnd func()) (Sounding, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	resampled := beep.Resample(3, SampleRate, o.rate, buf.Streamer(from))
	vol := &effects.Volume{
		Streamer: resampled,
		Base:     2,
		Volume:   volumeToPower(o.volume),
		Silent:   o.volume <= 0.01,
	}
	snd := &speakerSounding{
		out:  o,
		vol:  vol,
		ctrl: &beep.Ctrl{Streamer: vol},
	}

	speaker.Play(beep.Seq(snd.ctrl, beep.Callback(func() {
		// Called on the speaker goroutine with the speaker lock held
		go func() {
			if snd.detached.Load() {
				return
			}
			o.mu.Lock()
			if o.current == snd {
				o.current = nil
			}
			o.mu.Unlock()
			if onEnd != nil {
				onEnd()
			}
		}()
	})))

	o.current = snd
	return snd, nil
}

func (o *SpeakerOutput) SetVolume(vol float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = vol
	if o.current != nil {
		speaker.Lock()
		o.current.vol.Volume = volumeToPower(vol)
		o.current.vol.Silent = vol <= 0.01
		speaker.Unlock()
	}
}

func (o *SpeakerOutput) Close() error {
	speaker.Clear()
	speaker.Close()
	return nil
}

type speakerSounding struct {
	out      *SpeakerOutput
	vol      *effects.Volume
	ctrl     *beep.Ctrl
	detached atomic.Bool
}

func (s *speakerSounding) Stop() {
	// Detach first: an emptied Ctrl ends the Seq, which runs the callback
	if s.detached.Swap(true) {
		return
	}
	speaker.Lock()
	s.ctrl.Streamer = nil
	speaker.Unlock()

	s.out.mu.Lock()
	if s.out.current == s {
		s.out.current = nil
	}
	s.out.mu.Unlock()
}

// volumeToPower maps a linear 0..1 slider to beep's base-2 exponent.
func volumeToPower(vol float64) float64 {
	if vol <= 0.01 {
		return -10
	}
	return math.Log2(vol)
}
