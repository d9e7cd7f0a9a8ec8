package audio

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"heritagevoyager/pkg/logging"
)

// State is the transport state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
	StateError   State = "error"
)

var (
	ErrNoBuffer   = errors.New("audio: no narration loaded")
	ErrNotReady   = errors.New("audio: narration still loading")
	ErrNotPlaying = errors.New("audio: not playing")
	ErrNotPaused  = errors.New("audio: not paused")
)

// Snapshot is what observers see of the transport.
type Snapshot struct {
	State             State   `json:"state"`
	CurrentTime       float64 `json:"current_time"` // seconds, within [0, duration]
	Duration          float64 `json:"duration"`     // seconds
	NowPlayingVisible bool    `json:"now_playing_visible"`
	Volume            float64 `json:"volume"`
	Error             string  `json:"error,omitempty"`
}

// Transport owns the single playback session: the loaded buffer, the
// sounding instance, the playback clock and the progress loop.
// All transitions are serialized; observers are notified outside the lock.
type Transport struct {
	mu sync.Mutex

	out   Output
	clock *PlaybackClock
	sched Scheduler

	state    State
	buf      *SampleBuffer
	sounding Sounding
	session  uint64 // identifies the current sounding instance
	loop     Task
	loopGen  uint64 // identifies the current progress loop
	lastErr  error
	volume   float64

	subs    map[int]func(Snapshot)
	nextSub int
}

// NewTransport returns an idle transport.
func NewTransport(out Output, clock Clock, sched Scheduler) *Transport {
	if out == nil {
		out = NullOutput{}
	}
	return &Transport{
		out:    out,
		clock:  NewPlaybackClock(clock),
		sched:  sched,
		state:  StateIdle,
		volume: 1.0,
		subs:   make(map[int]func(Snapshot)),
	}
}

// Subscribe registers fn for every state change and progress tick.
// fn runs on the caller's or the loop's goroutine and must not block.
func (t *Transport) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// BeginLoading drops the current narration and marks a new one in flight.
func (t *Transport) BeginLoading() {
	_ = t.apply(func() error {
		t.stopLocked()
		t.buf = nil
		t.clock.Reset()
		t.lastErr = nil
		t.setStateLocked(StateLoading)
		return nil
	})
}

// Fail drops the current narration and enters the error state.
func (t *Transport) Fail(err error) {
	_ = t.apply(func() error {
		t.stopLocked()
		t.buf = nil
		t.clock.Reset()
		t.lastErr = err
		t.setStateLocked(StateError)
		return nil
	})
}

// Play installs buf and starts sounding it at from.
func (t *Transport) Play(buf *SampleBuffer, from time.Duration) error {
	if buf == nil {
		return ErrNoBuffer
	}
	return t.apply(func() error {
		t.buf = buf
		t.lastErr = nil
		return t.startLocked(t.clampLocked(from))
	})
}

// Replay restarts the loaded narration from the beginning.
func (t *Transport) Replay() error {
	return t.apply(func() error {
		if err := t.requireBufferLocked(); err != nil {
			return err
		}
		return t.startLocked(0)
	})
}

// Pause freezes the position and silences the output. Pausing twice is a no-op.
func (t *Transport) Pause() error {
	return t.apply(t.pauseLocked)
}

// Resume restarts sounding at the frozen position.
func (t *Transport) Resume() error {
	return t.apply(t.resumeLocked)
}

// TogglePause pauses while playing and otherwise plays from the frozen position.
func (t *Transport) TogglePause() error {
	return t.apply(func() error {
		switch t.state {
		case StatePlaying:
			return t.pauseLocked()
		case StatePaused:
			return t.resumeLocked()
		case StateEnded:
			return t.startLocked(0)
		}
		if err := t.requireBufferLocked(); err != nil {
			return err
		}
		return ErrNotPlaying
	})
}

// Seek moves the position, clamped to [0, duration]. While playing the
// sounding instance restarts there; otherwise only the offset moves.
func (t *Transport) Seek(pos time.Duration) error {
	return t.apply(func() error {
		if err := t.requireBufferLocked(); err != nil {
			return err
		}
		pos = t.clampLocked(pos)
		switch t.state {
		case StatePlaying:
			return t.startLocked(pos)
		case StateEnded:
			t.clock.Set(pos)
			t.setStateLocked(StatePaused)
		default:
			t.clock.Set(pos)
		}
		return nil
	})
}

// Stop silences the output and cancels the progress loop. A session that
// was playing or paused ends; the buffer stays loaded for a replay.
func (t *Transport) Stop() {
	_ = t.apply(func() error {
		t.stopLocked()
		if t.state == StatePlaying || t.state == StatePaused {
			t.clock.Reset()
			t.setStateLocked(StateEnded)
		}
		return nil
	})
}

// Reset silences everything and forgets the buffer. Used on subject change.
func (t *Transport) Reset() {
	_ = t.apply(func() error {
		t.stopLocked()
		t.buf = nil
		t.clock.Reset()
		t.lastErr = nil
		t.setStateLocked(StateIdle)
		return nil
	})
}

// Close resets the transport and releases the output device.
func (t *Transport) Close() error {
	t.Reset()
	return t.out.Close()
}

// SetVolume clamps vol to [0, 1] and applies it to the output.
func (t *Transport) SetVolume(vol float64) {
	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	_ = t.apply(func() error {
		t.volume = vol
		t.out.SetVolume(vol)
		return nil
	})
}

func (t *Transport) Volume() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume
}

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Elapsed returns the playback position clamped to [0, duration].
func (t *Transport) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked()
}

func (t *Transport) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// --- internals, t.mu held ---

// apply runs fn under the lock and notifies subscribers afterwards.
func (t *Transport) apply(fn func() error) error {
	t.mu.Lock()
	err := fn()
	snap := t.snapshotLocked()
	subs := t.subscribersLocked()
	t.mu.Unlock()

	for _, s := range subs {
		s(snap)
	}
	return err
}

func (t *Transport) subscribersLocked() []func(Snapshot) {
	if len(t.subs) == 0 {
		return nil
	}
	out := make([]func(Snapshot), 0, len(t.subs))
	for _, fn := range t.subs {
		out = append(out, fn)
	}
	return out
}

func (t *Transport) requireBufferLocked() error {
	if t.state == StateLoading {
		return ErrNotReady
	}
	if t.buf == nil {
		return ErrNoBuffer
	}
	return nil
}

func (t *Transport) pauseLocked() error {
	switch t.state {
	case StatePaused:
		return nil
	case StatePlaying:
	default:
		if err := t.requireBufferLocked(); err != nil {
			return err
		}
		return ErrNotPlaying
	}

	pos := t.clock.Freeze()
	t.stopLocked()
	if pos >= t.buf.Duration() {
		// The loop had not yet observed the end
		t.endLocked()
		return nil
	}
	t.setStateLocked(StatePaused)
	return nil
}

func (t *Transport) resumeLocked() error {
	if t.state != StatePaused {
		if err := t.requireBufferLocked(); err != nil {
			return err
		}
		return ErrNotPaused
	}
	return t.startLocked(t.clock.Offset())
}

// startLocked replaces any sounding instance with a new one at offset.
func (t *Transport) startLocked(offset time.Duration) error {
	t.stopLocked()

	if offset >= t.buf.Duration() {
		t.endLocked()
		return nil
	}

	t.session++
	id := t.session
	snd, err := t.out.Start(t.buf, t.buf.FrameAt(offset), func() { t.soundingEnded(id) })
	if err != nil {
		t.buf = nil
		t.clock.Reset()
		t.lastErr = err
		t.setStateLocked(StateError)
		return err
	}
	t.sounding = snd
	t.clock.Start(offset)
	t.setStateLocked(StatePlaying)
	t.startLoopLocked()
	return nil
}

// stopLocked silences the sounding instance and cancels the loop.
// The clock offset is left alone.
func (t *Transport) stopLocked() {
	if t.sounding != nil {
		t.sounding.Stop()
		t.sounding = nil
	}
	// Invalidate callbacks from the instance just stopped
	t.session++
	if t.loop != nil {
		t.loop.Cancel()
		t.loop = nil
	}
	t.loopGen++
	if t.clock.Running() {
		t.clock.Freeze()
	}
}

func (t *Transport) endLocked() {
	t.stopLocked()
	t.clock.Reset()
	t.setStateLocked(StateEnded)
}

func (t *Transport) startLoopLocked() {
	if t.sched == nil {
		return
	}
	t.loopGen++
	gen := t.loopGen
	t.loop = t.sched.Every(func() { t.tick(gen) })
}

// tick is one progress loop iteration.
func (t *Transport) tick(gen uint64) {
	t.mu.Lock()
	if gen != t.loopGen || t.state != StatePlaying {
		t.mu.Unlock()
		return
	}
	if t.clock.Elapsed() >= t.buf.Duration() {
		t.endLocked()
	}
	snap := t.snapshotLocked()
	subs := t.subscribersLocked()
	t.mu.Unlock()

	logging.TraceDefault("Audio: tick", "state", snap.State, "t", snap.CurrentTime)
	for _, s := range subs {
		s(snap)
	}
}

// soundingEnded is the device completion callback.
func (t *Transport) soundingEnded(id uint64) {
	_ = t.apply(func() error {
		if id != t.session || t.state != StatePlaying {
			return nil
		}
		t.endLocked()
		return nil
	})
}

func (t *Transport) setStateLocked(s State) {
	if t.state == s {
		return
	}
	slog.Debug("Audio: transport state", "from", t.state, "to", s)
	t.state = s
}

func (t *Transport) clampLocked(d time.Duration) time.Duration {
	if d < 0 || t.buf == nil {
		return 0
	}
	if limit := t.buf.Duration(); d > limit {
		return limit
	}
	return d
}

func (t *Transport) elapsedLocked() time.Duration {
	if t.buf == nil {
		return 0
	}
	return t.clampLocked(t.clock.Elapsed())
}

func (t *Transport) snapshotLocked() Snapshot {
	s := Snapshot{
		State:  t.state,
		Volume: t.volume,
	}
	if t.buf != nil {
		s.CurrentTime = t.elapsedLocked().Seconds()
		s.Duration = t.buf.Seconds()
		if s.CurrentTime > s.Duration {
			s.CurrentTime = s.Duration
		}
	}
	switch t.state {
	case StateLoading, StatePlaying, StatePaused:
		s.NowPlayingVisible = true
	}
	if t.lastErr != nil {
		s.Error = t.lastErr.Error()
	}
	return s
}
