package narrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heritagevoyager/pkg/audio"
	"heritagevoyager/pkg/tracker"
	"heritagevoyager/pkg/tts"
)

func TestOrchestrator_Narrate(t *testing.T) {
	ctx := context.Background()
	r := newTransportRig()
	synth := newFakeSynth(2 * time.Second)
	st := newTestStore(t)
	tr := tracker.New()
	sel := &Selection{}
	o := NewOrchestrator(r.tr, synth, st, sel, tr, true)

	sel.Switch("France", r.tr.Reset)
	req := request("France", "Narrator: Welcome to **France**.")

	n, err := o.Narrate(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, audio.StatePlaying, r.tr.State())
	require.Len(t, r.out.Starts(), 1)
	assert.Equal(t, 0, r.out.Starts()[0].Frame)
	assert.Equal(t, 2*time.Second, n.Duration)
	assert.False(t, n.Cached)
	assert.Equal(t, req.ID, n.RequestID)

	calls := synth.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Welcome to France.", calls[0].Text, "formatting stripped before synthesis")
	assert.Equal(t, "Zephyr", calls[0].Voice)

	history, err := st.RecentNarrations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "France", history[0].Subject)

	pcm, ok := st.GetCache(ctx, AudioCacheKey("Zephyr", req.Text))
	assert.True(t, ok)
	assert.NotEmpty(t, pcm)
	assert.Equal(t, int64(1), tr.Snapshot()[trackerAudio].CacheMisses)
}

func TestOrchestrator_AudioCache(t *testing.T) {
	ctx := context.Background()
	r := newTransportRig()
	synth := newFakeSynth(time.Second)
	sel := &Selection{}
	o := NewOrchestrator(r.tr, synth, newTestStore(t), sel, nil, true)
	sel.Switch("France", r.tr.Reset)

	_, err := o.Narrate(ctx, request("France", "Bonjour."))
	require.NoError(t, err)
	n, err := o.Narrate(ctx, request("France", "Bonjour."))
	require.NoError(t, err)

	assert.True(t, n.Cached)
	assert.Len(t, synth.Calls(), 1)
	assert.Len(t, r.out.Starts(), 2)
	assert.Equal(t, 1, r.out.MaxActive(), "the replay silenced the first instance")

	// Another voice is another cache entry
	req := request("France", "Bonjour.")
	req.Voice = "Kore"
	n, err = o.Narrate(ctx, req)
	require.NoError(t, err)
	assert.False(t, n.Cached)
	assert.Len(t, synth.Calls(), 2)
}

func TestAudioCacheKey(t *testing.T) {
	a := AudioCacheKey("Zephyr", "hello")
	assert.Equal(t, a, AudioCacheKey("zephyr", "hello"))
	assert.NotEqual(t, a, AudioCacheKey("Kore", "hello"))
	assert.NotEqual(t, a, AudioCacheKey("Zephyr", "hello!"))
	assert.Contains(t, a, "tts:zephyr:")
}

func TestOrchestrator_Failures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(s *fakeSynth)
		check   func(t *testing.T, err error)
		wantMsg string
	}{
		{
			name:  "Synthesis error",
			setup: func(s *fakeSynth) { s.setError(tts.NewSynthesisError("Zephyr", tts.ErrNoAudio)) },
			check: func(t *testing.T, err error) {
				assert.True(t, tts.IsSynthesisError(err))
			},
		},
		{
			name:  "Empty audio",
			setup: func(s *fakeSynth) { s.pcm = nil },
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, tts.ErrNoAudio)
			},
		},
		{
			name:  "Odd length",
			setup: func(s *fakeSynth) { s.pcm = []byte{1, 2, 3} },
			check: func(t *testing.T, err error) {
				var de *audio.DecodeError
				require.ErrorAs(t, err, &de)
				assert.Equal(t, 3, de.Length)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTransportRig()
			synth := newFakeSynth(time.Second)
			tt.setup(synth)
			sel := &Selection{}
			o := NewOrchestrator(r.tr, synth, nil, sel, nil, false)
			sel.Switch("France", r.tr.Reset)

			_, err := o.Narrate(context.Background(), request("France", "Bonjour."))
			require.Error(t, err)
			tt.check(t, err)

			snap := r.tr.Snapshot()
			assert.Equal(t, audio.StateError, snap.State)
			assert.NotEmpty(t, snap.Error)
			assert.Empty(t, r.out.Starts())

			// A new request recovers
			synth.setError(nil)
			synth.pcm = newFakeSynth(time.Second).pcm
			_, err = o.Narrate(context.Background(), request("France", "Encore."))
			require.NoError(t, err)
			assert.Equal(t, audio.StatePlaying, r.tr.State())
		})
	}
}

func TestOrchestrator_EmptyText(t *testing.T) {
	r := newTransportRig()
	sel := &Selection{}
	o := NewOrchestrator(r.tr, newFakeSynth(time.Second), nil, sel, nil, false)
	sel.Switch("France", nil)

	_, err := o.Narrate(context.Background(), request("France", "  "))
	require.Error(t, err)
	assert.Equal(t, audio.StateIdle, r.tr.State())
}

func TestOrchestrator_StaleBeforeStart(t *testing.T) {
	r := newTransportRig()
	synth := newFakeSynth(time.Second)
	sel := &Selection{}
	o := NewOrchestrator(r.tr, synth, nil, sel, nil, false)
	sel.Switch("Japan", r.tr.Reset)

	_, err := o.Narrate(context.Background(), request("France", "Bonjour."))
	assert.ErrorIs(t, err, ErrStaleResponse)
	assert.Empty(t, synth.Calls())
	assert.Equal(t, audio.StateIdle, r.tr.State())
}

// France narration pending, Japan selected, France audio arrives: nothing plays
// and the transport is left as the subject change put it.
func TestOrchestrator_SubjectChangeDiscardsResponse(t *testing.T) {
	r := newTransportRig()
	synth := newFakeSynth(3 * time.Second)
	synth.block = "France"
	tr := tracker.New()
	sel := &Selection{}
	o := NewOrchestrator(r.tr, synth, nil, sel, tr, false)

	sel.Switch("France", r.tr.Reset)
	done := make(chan error, 1)
	go func() {
		_, err := o.Narrate(context.Background(), request("France", "Welcome to France."))
		done <- err
	}()

	<-synth.started
	assert.Equal(t, audio.StateLoading, r.tr.State())

	sel.Switch("Japan", r.tr.Reset)
	before := r.tr.Snapshot()
	assert.Equal(t, audio.StateIdle, before.State)

	close(synth.release)
	assert.ErrorIs(t, <-done, ErrStaleResponse)

	assert.Empty(t, r.out.Starts())
	assert.Equal(t, before, r.tr.Snapshot())
	assert.Equal(t, int64(1), tr.Snapshot()[trackerAudio].StaleDrops)
}

func TestOrchestrator_StaleFailureLeavesTransport(t *testing.T) {
	r := newTransportRig()
	synth := newFakeSynth(time.Second)
	synth.block = "France"
	synth.setError(errors.New("upstream 500"))
	sel := &Selection{}
	o := NewOrchestrator(r.tr, synth, nil, sel, nil, false)

	sel.Switch("France", r.tr.Reset)
	done := make(chan error, 1)
	go func() {
		_, err := o.Narrate(context.Background(), request("France", "Welcome to France."))
		done <- err
	}()
	<-synth.started
	sel.Switch("Japan", r.tr.Reset)
	close(synth.release)

	assert.ErrorIs(t, <-done, ErrStaleResponse)
	assert.Equal(t, audio.StateIdle, r.tr.State(), "a stale failure must not enter the error state")
}

func TestOrchestrator_NewerRequestWins(t *testing.T) {
	r := newTransportRig()
	synth := newFakeSynth(time.Second)
	synth.block = "first"
	sel := &Selection{}
	o := NewOrchestrator(r.tr, synth, nil, sel, nil, false)
	sel.Switch("France", r.tr.Reset)

	done := make(chan error, 1)
	go func() {
		_, err := o.Narrate(context.Background(), request("France", "first take"))
		done <- err
	}()
	<-synth.started

	_, err := o.Narrate(context.Background(), request("France", "second take"))
	require.NoError(t, err)
	require.Len(t, r.out.Starts(), 1)

	close(synth.release)
	assert.ErrorIs(t, <-done, ErrStaleResponse)
	assert.Len(t, r.out.Starts(), 1)
	assert.Equal(t, audio.StatePlaying, r.tr.State())
}

func TestOrchestrator_PlaybackEndsOnLoop(t *testing.T) {
	r := newTransportRig()
	sel := &Selection{}
	o := NewOrchestrator(r.tr, newFakeSynth(2*time.Second), nil, sel, nil, false)
	sel.Switch("France", r.tr.Reset)

	_, err := o.Narrate(context.Background(), request("France", "Bonjour."))
	require.NoError(t, err)

	r.clock.Advance(2 * time.Second)
	r.sched.Fire()
	snap := r.tr.Snapshot()
	assert.Equal(t, audio.StateEnded, snap.State)
	assert.Zero(t, snap.CurrentTime)
	assert.Zero(t, r.sched.Live())
}
