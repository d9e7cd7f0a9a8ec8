package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// otoPollInterval is how often a sounding checks whether its player drained.
const otoPollInterval = 10 * time.Millisecond

// OtoOutput plays the 24 kHz PCM natively through an oto context.
type OtoOutput struct {
	ctx *oto.Context

	mu      sync.Mutex
	volume  float64
	current *otoSounding
}

// NewOtoOutput opens the oto context. Only one context may exist per process.
func NewOtoOutput(buffer time.Duration) (*OtoOutput, error) {
	op := &oto.NewContextOptions{
		SampleRate:   int(SampleRate),
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   buffer,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready
	return &OtoOutput{ctx: ctx, volume: 1.0}, nil
}

func (o *OtoOutput) Start(buf *SampleBuffer, from int, onEnd func()) (Sounding, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	player := o.ctx.NewPlayer(buf.PCMReader(from))
	player.SetVolume(o.volume)
	snd := &otoSounding{out: o, player: player, done: make(chan struct{})}
	player.Play()
	o.current = snd

	go snd.watch(onEnd)
	return snd, nil
}

func (o *OtoOutput) SetVolume(vol float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = vol
	if o.current != nil {
		o.current.player.SetVolume(vol)
	}
}

// Close silences the current sounding. The oto context itself lives
// until the process exits.
func (o *OtoOutput) Close() error {
	o.mu.Lock()
	cur := o.current
	o.mu.Unlock()
	if cur != nil {
		cur.Stop()
	}
	return o.ctx.Err()
}

type otoSounding struct {
	out      *OtoOutput
	player   *oto.Player
	detached atomic.Bool
	done     chan struct{}
	once     sync.Once
}

func (s *otoSounding) watch(onEnd func()) {
	ticker := time.NewTicker(otoPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.player.IsPlaying() {
				continue
			}
			if s.detached.Load() {
				return
			}
			s.release()
			if onEnd != nil {
				onEnd()
			}
			return
		}
	}
}

func (s *otoSounding) Stop() {
	if s.detached.Swap(true) {
		return
	}
	s.player.Pause()
	close(s.done)
	s.release()
}

func (s *otoSounding) release() {
	s.once.Do(func() {
		_ = s.player.Close()
		s.out.mu.Lock()
		if s.out.current == s {
			s.out.current = nil
		}
		s.out.mu.Unlock()
	})
}
