package audio_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"heritagevoyager/pkg/audio"
	"heritagevoyager/pkg/audio/audiotest"
)

func TestPlaybackClock(t *testing.T) {
	hw := &audiotest.ManualClock{}
	hw.Advance(100 * time.Second) // hardware clock does not start at zero
	c := audio.NewPlaybackClock(hw)

	assert.Equal(t, time.Duration(0), c.Elapsed())
	assert.False(t, c.Running())

	c.Start(0)
	hw.Advance(3 * time.Second)
	assert.Equal(t, 3*time.Second, c.Elapsed())

	assert.Equal(t, 3*time.Second, c.Freeze())
	hw.Advance(time.Minute)
	assert.Equal(t, 3*time.Second, c.Elapsed())

	c.Start(c.Offset())
	hw.Advance(2 * time.Second)
	assert.Equal(t, 5*time.Second, c.Elapsed())

	c.Set(8 * time.Second)
	assert.Equal(t, 8*time.Second, c.Elapsed())
	hw.Advance(time.Second)
	assert.Equal(t, 9*time.Second, c.Elapsed())

	c.Freeze()
	c.Set(time.Second)
	assert.Equal(t, time.Second, c.Elapsed())
	assert.False(t, c.Running())

	c.Reset()
	assert.Equal(t, time.Duration(0), c.Elapsed())
}

func TestSystemClock_Monotonic(t *testing.T) {
	c := audio.NewSystemClock()
	a := c.Now()
	time.Sleep(2 * time.Millisecond)
	assert.Greater(t, c.Now(), a)
}

func TestFrameScheduler_Cancel(t *testing.T) {
	s := audio.NewFrameScheduler(time.Millisecond)
	var n atomic.Int32
	task := s.Every(func() { n.Add(1) })

	assert.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, time.Millisecond)

	task.Cancel()
	task.Cancel() // idempotent
	time.Sleep(5 * time.Millisecond)
	after := n.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, n.Load(), "no ticks after cancel")
}

func TestFrameScheduler_DefaultInterval(t *testing.T) {
	assert.Equal(t, audio.DefaultFrameInterval, audio.NewFrameScheduler(0).Interval())
}

func TestNullOutput(t *testing.T) {
	var out audio.Output = audio.NullOutput{}
	snd, err := out.Start(audiotest.Buffer(time.Second), 0, func() { t.Error("null output never completes") })
	assert.NoError(t, err)
	snd.Stop()
	assert.NoError(t, out.Close())
}
