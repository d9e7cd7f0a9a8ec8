package audio_test

import (
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heritagevoyager/pkg/audio"
	"heritagevoyager/pkg/audio/audiotest"
)

func TestDecode_FrameCountAndDuration(t *testing.T) {
	tests := []struct {
		name    string
		bytes   int
		frames  int
		seconds float64
	}{
		{"empty", 0, 0, 0},
		{"one sample", 2, 1, 1.0 / 24000},
		{"one second", 48000, 24000, 1},
		{"two and a half seconds", 120000, 60000, 2.5},
		{"odd frame count", 6, 3, 3.0 / 24000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := audio.Decode(make([]byte, tt.bytes))
			require.NoError(t, err)
			assert.Equal(t, tt.frames, buf.Frames())
			assert.Equal(t, tt.seconds, buf.Seconds())
			assert.Equal(t, 1, buf.Channels())
			assert.Equal(t, audio.SampleRate, buf.SampleRate())
		})
	}
}

func TestDecode_OddLength(t *testing.T) {
	for _, n := range []int{1, 3, 47999} {
		_, err := audio.Decode(make([]byte, n))
		var decErr *audio.DecodeError
		require.True(t, errors.As(err, &decErr), "length %d", n)
		assert.Equal(t, n, decErr.Length)
	}
}

// streamed returns what the buffer's streamer plays on the left channel.
func streamed(t *testing.T, buf *audio.SampleBuffer) []float64 {
	t.Helper()
	out := make([]float64, 0, buf.Frames())
	chunk := make([][2]float64, 512)
	s := buf.Streamer(0)
	for {
		n, ok := s.Stream(chunk)
		for _, frame := range chunk[:n] {
			out = append(out, frame[0])
		}
		if !ok || n == 0 {
			break
		}
	}
	require.Len(t, out, buf.Frames())
	return out
}

func TestDecode_SampleValues(t *testing.T) {
	values := []int16{0, 1, -1, 16384, -16384, math.MaxInt16, math.MinInt16, 12345, -54}
	buf, err := audio.Decode(audiotest.PCM(values...))
	require.NoError(t, err)

	got := streamed(t, buf)
	for i, v := range values {
		assert.Equal(t, float64(v)/32768.0, got[i], "sample %d", i)
	}
	// No clamping: the most negative value maps to exactly -1
	assert.Equal(t, -1.0, got[6])
	assert.Less(t, got[5], 1.0)
}

func TestDecode_EverySampleValue(t *testing.T) {
	values := make([]int16, 0, 1<<16)
	for v := math.MinInt16; v <= math.MaxInt16; v++ {
		values = append(values, int16(v))
	}
	raw := audiotest.PCM(values...)
	buf, err := audio.Decode(raw)
	require.NoError(t, err)

	got := streamed(t, buf)
	for i, v := range values {
		if got[i] != float64(v)/32768.0 {
			t.Fatalf("sample %d: got %v, want %v", v, got[i], float64(v)/32768.0)
		}
	}
	assert.Equal(t, raw, buf.PCM(), "re-encoding must reproduce the input bytes")
}

func TestSampleBuffer_DurationRounds(t *testing.T) {
	tests := []struct {
		frames int
		want   time.Duration
	}{
		{0, 0},
		{1, 41667 * time.Nanosecond}, // 41666.67ns
		{2, 83333 * time.Nanosecond}, // 83333.33ns
		{24000, time.Second},
		{36001, 1500041667 * time.Nanosecond},
	}
	for _, tt := range tests {
		buf, err := audio.Decode(make([]byte, tt.frames*2))
		require.NoError(t, err)
		assert.Equal(t, tt.want, buf.Duration(), "%d frames", tt.frames)
	}
}

func TestSampleBuffer_FrameAt(t *testing.T) {
	buf := audiotest.Buffer(2 * time.Second)

	assert.Equal(t, 0, buf.FrameAt(-time.Second))
	assert.Equal(t, 0, buf.FrameAt(0))
	assert.Equal(t, 12000, buf.FrameAt(500*time.Millisecond))
	assert.Equal(t, 48000, buf.FrameAt(2*time.Second))
	assert.Equal(t, 48000, buf.FrameAt(time.Hour))
	assert.Equal(t, 2*time.Second, buf.Duration())
}

func TestSampleBuffer_Streamer(t *testing.T) {
	buf, err := audio.Decode(audiotest.PCM(1000, 2000, 3000, 4000))
	require.NoError(t, err)

	s := buf.Streamer(1)
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 1, s.Position())

	out := make([][2]float64, 8)
	n, ok := s.Stream(out)
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, [2]float64{2000.0 / 32768, 2000.0 / 32768}, out[0])
	assert.Equal(t, [2]float64{4000.0 / 32768, 4000.0 / 32768}, out[2])

	n, ok = s.Stream(out)
	assert.False(t, ok)
	assert.Equal(t, 0, n)

	require.NoError(t, s.Seek(0))
	assert.Error(t, s.Seek(5))
}

func TestSampleBuffer_PCMReader(t *testing.T) {
	raw := audiotest.PCM(-2, -1, 0, 1, 2)
	buf, err := audio.Decode(raw)
	require.NoError(t, err)

	tests := []struct {
		from int
		want []byte
	}{
		{0, raw},
		{2, raw[4:]},
		{5, []byte{}},
		{-3, raw},
		{99, []byte{}},
	}
	for _, tt := range tests {
		got, err := io.ReadAll(buf.PCMReader(tt.from))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "from %d", tt.from)
	}
}

func TestParseVoice(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Kore", "Kore", true},
		{"kore", "Kore", true},
		{" FENRIR ", "Fenrir", true},
		{"Zephyr", "Zephyr", true},
		{"Aoede", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, ok := audio.ParseVoice(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, v.Name)
		})
	}
	assert.Equal(t, "Zephyr", audio.VoiceOrDefault("nobody"))
	assert.Equal(t, "Puck", audio.VoiceOrDefault("puck"))
	assert.Len(t, audio.Voices, 5)
}
