// Package audiotest provides deterministic clocks, schedulers and outputs
// for driving an audio.Transport in tests.
package audiotest

import (
	"encoding/binary"
	"sync"
	"time"

	"heritagevoyager/pkg/audio"
)

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// ManualScheduler runs tasks only when Fire is called.
type ManualScheduler struct {
	mu      sync.Mutex
	tasks   []*manualTask
	history []*manualTask
}

type manualTask struct {
	sched     *ManualScheduler
	fn        func()
	cancelled bool
}

func (t *manualTask) Cancel() {
	t.sched.mu.Lock()
	t.cancelled = true
	t.sched.mu.Unlock()
}

func (s *ManualScheduler) Every(fn func()) audio.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{sched: s, fn: fn}
	s.tasks = append(s.tasks, t)
	s.history = append(s.history, t)
	return t
}

// Fire runs one tick of every live task.
func (s *ManualScheduler) Fire() {
	s.mu.Lock()
	var live []*manualTask
	for _, t := range s.tasks {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	s.tasks = live
	s.mu.Unlock()

	for _, t := range live {
		t.fn()
	}
}

// FireAll runs every task ever scheduled, cancelled or not, the way a
// tick already in flight when Cancel is called would.
func (s *ManualScheduler) FireAll() {
	s.mu.Lock()
	all := append([]*manualTask(nil), s.history...)
	s.mu.Unlock()
	for _, t := range all {
		t.fn()
	}
}

// Live returns the number of tasks not yet cancelled.
func (s *ManualScheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Start describes one call to RecordingOutput.Start.
type Start struct {
	Buffer *audio.SampleBuffer
	Frame  int
}

// RecordingOutput records sounding instances and lets tests end them.
type RecordingOutput struct {
	mu         sync.Mutex
	starts     []Start
	active     map[*recordingSounding]bool
	maxActive  int
	callbacks  []func()
	volume     float64
	StartError error
}

func NewRecordingOutput() *RecordingOutput {
	return &RecordingOutput{active: make(map[*recordingSounding]bool)}
}

func (o *RecordingOutput) Start(buf *audio.SampleBuffer, from int, onEnd func()) (audio.Sounding, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.StartError != nil {
		return nil, o.StartError
	}
	s := &recordingSounding{out: o}
	o.starts = append(o.starts, Start{Buffer: buf, Frame: from})
	o.active[s] = true
	if len(o.active) > o.maxActive {
		o.maxActive = len(o.active)
	}
	o.callbacks = append(o.callbacks, onEnd)
	return s, nil
}

func (o *RecordingOutput) SetVolume(v float64) {
	o.mu.Lock()
	o.volume = v
	o.mu.Unlock()
}

func (o *RecordingOutput) Close() error { return nil }

// Starts returns every Start call so far.
func (o *RecordingOutput) Starts() []Start {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Start(nil), o.starts...)
}

// Active is the number of sounding instances not yet stopped.
func (o *RecordingOutput) Active() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// MaxActive is the peak number of simultaneous sounding instances.
func (o *RecordingOutput) MaxActive() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.maxActive
}

func (o *RecordingOutput) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// Complete invokes the completion callback of the i-th Start, whether or
// not that instance was stopped since.
func (o *RecordingOutput) Complete(i int) {
	o.mu.Lock()
	cb := o.callbacks[i]
	o.mu.Unlock()
	if cb != nil {
		cb()
	}
}

type recordingSounding struct {
	out *RecordingOutput
}

func (s *recordingSounding) Stop() {
	s.out.mu.Lock()
	delete(s.out.active, s)
	s.out.mu.Unlock()
}

// PCM encodes int16 samples as little-endian bytes.
func PCM(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

// Silence returns d worth of zero PCM at 24 kHz.
func Silence(d time.Duration) []byte {
	return make([]byte, 2*audio.SampleRate.N(d))
}

// Buffer decodes d worth of silence.
func Buffer(d time.Duration) *audio.SampleBuffer {
	b, err := audio.Decode(Silence(d))
	if err != nil {
		panic(err)
	}
	return b
}
