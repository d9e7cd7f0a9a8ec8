// Package audio turns synthesized PCM into a seekable narration transport.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/gopxl/beep/v2"
)

const (
	// SampleRate of every buffer handed to Decode. Fixed by the synthesis service.
	SampleRate beep.SampleRate = 24000
	// Channels is always mono.
	Channels = 1

	bytesPerSample = 2
	pcmScale       = 32768.0
)

// DecodeError reports raw audio that is not a whole number of 16-bit samples.
type DecodeError struct {
	Length int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("audio: %d bytes is not a whole number of 16-bit samples", e.Length)
}

// SampleBuffer is decoded, immutable narration audio.
type SampleBuffer struct {
	samples []float64
}

// Decode interprets raw as little-endian signed 16-bit mono PCM at 24 kHz.
// Samples are scaled by 1/32768 without clipping.
func Decode(raw []byte) (*SampleBuffer, error) {
	if len(raw)%bytesPerSample != 0 {
		return nil, &DecodeError{Length: len(raw)}
	}

	samples := make([]float64, len(raw)/bytesPerSample)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[i*bytesPerSample:]))
		samples[i] = float64(v) / pcmScale
	}
	return &SampleBuffer{samples: samples}, nil
}

func (b *SampleBuffer) Channels() int { return Channels }

func (b *SampleBuffer) SampleRate() beep.SampleRate { return SampleRate }

// Frames returns the number of sample frames.
func (b *SampleBuffer) Frames() int { return len(b.samples) }

// Seconds is the exact length, frames / 24000.
func (b *SampleBuffer) Seconds() float64 {
	return float64(len(b.samples)) / float64(SampleRate)
}

// Duration is the length rounded to the nearest nanosecond. beep's
// SampleRate.D truncates, which would leave one-frame buffers short.
func (b *SampleBuffer) Duration() time.Duration {
	return time.Duration(math.Round(float64(len(b.samples)) * float64(time.Second) / float64(SampleRate)))
}

// FrameAt converts a position to a frame index within [0, Frames()].
func (b *SampleBuffer) FrameAt(d time.Duration) int {
	return b.clampFrame(SampleRate.N(d))
}

// Streamer returns a beep streamer starting at frame from. The mono
// signal is duplicated to both output channels.
func (b *SampleBuffer) Streamer(from int) beep.StreamSeeker {
	return &bufferStreamer{buf: b, pos: b.clampFrame(from)}
}

// PCM re-encodes the buffer to 16-bit little-endian bytes.
func (b *SampleBuffer) PCM() []byte {
	out := make([]byte, len(b.samples)*bytesPerSample)
	for i, s := range b.samples {
		v := math.Round(s * pcmScale)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(int16(v)))
	}
	return out
}

// PCMReader returns the encoded bytes starting at frame from.
func (b *SampleBuffer) PCMReader(from int) io.ReadSeeker {
	return bytes.NewReader(b.PCM()[b.clampFrame(from)*bytesPerSample:])
}

func (b *SampleBuffer) clampFrame(n int) int {
	if n < 0 {
		return 0
	}
	if n > len(b.samples) {
		return len(b.samples)
	}
	return n
}

type bufferStreamer struct {
	buf *SampleBuffer
	pos int
}

func (s *bufferStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.pos >= len(s.buf.samples) {
		return 0, false
	}
	for n < len(samples) && s.pos < len(s.buf.samples) {
		v := s.buf.samples[s.pos]
		samples[n][0] = v
		samples[n][1] = v
		n++
		s.pos++
	}
	return n, true
}

func (s *bufferStreamer) Err() error { return nil }

func (s *bufferStreamer) Len() int { return len(s.buf.samples) }

func (s *bufferStreamer) Position() int { return s.pos }

func (s *bufferStreamer) Seek(p int) error {
	if p < 0 || p > len(s.buf.samples) {
		return fmt.Errorf("audio: seek position %d out of range [0, %d]", p, len(s.buf.samples))
	}
	s.pos = p
	return nil
}
