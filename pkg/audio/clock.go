package audio

import "time"

// Clock is a monotonic time source.
type Clock interface {
	Now() time.Duration
}

// SystemClock reads the monotonic wall clock.
type SystemClock struct {
	origin time.Time
}

// NewSystemClock returns a clock whose zero is the moment of creation.
func NewSystemClock() *SystemClock {
	return &SystemClock{origin: time.Now()}
}

func (c *SystemClock) Now() time.Duration {
	return time.Since(c.origin)
}

// PlaybackClock derives the playback position from a hardware clock.
// The output device has no pause, so a pause freezes the position into
// offset and the next sounding instance starts from there.
//
//	elapsed = now - startedAt + offset
//
// PlaybackClock is not synchronized; Transport guards it.
type PlaybackClock struct {
	clock     Clock
	offset    time.Duration
	startedAt time.Duration
	running   bool
}

// NewPlaybackClock returns a stopped clock at offset 0.
func NewPlaybackClock(c Clock) *PlaybackClock {
	return &PlaybackClock{clock: c}
}

// Start marks a new sounding instance beginning at offset.
func (p *PlaybackClock) Start(offset time.Duration) {
	p.offset = offset
	p.startedAt = p.clock.Now()
	p.running = true
}

// Elapsed returns the current position. Not clamped.
func (p *PlaybackClock) Elapsed() time.Duration {
	if !p.running {
		return p.offset
	}
	return p.clock.Now() - p.startedAt + p.offset
}

// Freeze stores the current position as the offset and stops advancing.
func (p *PlaybackClock) Freeze() time.Duration {
	p.offset = p.Elapsed()
	p.running = false
	return p.offset
}

// Set moves the frozen offset. A running clock restarts from it.
func (p *PlaybackClock) Set(offset time.Duration) {
	p.offset = offset
	if p.running {
		p.startedAt = p.clock.Now()
	}
}

// Reset returns to a stopped clock at 0.
func (p *PlaybackClock) Reset() {
	p.offset = 0
	p.startedAt = 0
	p.running = false
}

func (p *PlaybackClock) Offset() time.Duration { return p.offset }

func (p *PlaybackClock) Running() bool { return p.running }
