package narrator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"heritagevoyager/pkg/audio"
	"heritagevoyager/pkg/audio/audiotest"
	"heritagevoyager/pkg/db"
	"heritagevoyager/pkg/model"
	"heritagevoyager/pkg/store"
)

type synthCall struct {
	Text  string
	Voice string
}

// fakeSynth returns pcm for every call. Calls whose text contains block
// wait for release (or ctx) before answering.
type fakeSynth struct {
	mu    sync.Mutex
	calls []synthCall

	pcm     []byte
	err     error
	block   string
	started chan string
	release chan struct{}
}

func newFakeSynth(d time.Duration) *fakeSynth {
	return &fakeSynth{
		pcm:     audiotest.Silence(d),
		started: make(chan string, 8),
		release: make(chan struct{}),
	}
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, synthCall{Text: text, Voice: voice})
	pcm, err, block := f.pcm, f.err, f.block
	f.mu.Unlock()

	if block != "" && strings.Contains(text, block) {
		f.started <- text
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return pcm, err
}

func (f *fakeSynth) Calls() []synthCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]synthCall(nil), f.calls...)
}

func (f *fakeSynth) setError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// fakeFetcher serves profiles from a map; unknown countries fail.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	block   chan struct{}
	started chan string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: make(map[string]int), started: make(chan string, 8)}
}

var errUnknownCountry = errors.New("unknown country")

func (f *fakeFetcher) FetchProfile(ctx context.Context, country string) (*model.CulturalProfile, error) {
	f.mu.Lock()
	f.calls[country]++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		f.started <- country
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p, ok := testProfiles[country]
	if !ok {
		return nil, errUnknownCountry
	}
	cp := *p
	return &cp, nil
}

func (f *fakeFetcher) Calls(country string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[country]
}

var testProfiles = map[string]*model.CulturalProfile{
	"France": {
		Country: "France", OfficialName: "French Republic", Capital: "Paris",
		GeographyFact: "Borders eight countries.", Anthropology: "Diverse.", Culture: "Cuisine.",
		LanguageName: "French", LanguageGreeting: "Bonjour", PhoneticGreeting: "bohn-ZHOOR",
		OutfitDescription: "Breton shirt.", HistoricalContext: "From Gaul to the Fifth Republic.",
	},
	"Japan": {
		Country: "Japan", OfficialName: "Japan", Capital: "Tokyo",
		GeographyFact: "An archipelago of thousands of islands.", Anthropology: "Ancient.", Culture: "Tea ceremony.",
		LanguageName: "Japanese", LanguageGreeting: "Konnichiwa", PhoneticGreeting: "kon-nee-chee-wah",
		OutfitDescription: "Kimono.", HistoricalContext: "From the Jomon period to the present.",
	},
}

// transportRig is a real transport over manual time and a recording device.
type transportRig struct {
	clock *audiotest.ManualClock
	sched *audiotest.ManualScheduler
	out   *audiotest.RecordingOutput
	tr    *audio.Transport
}

func newTransportRig() *transportRig {
	r := &transportRig{
		clock: &audiotest.ManualClock{},
		sched: &audiotest.ManualScheduler{},
		out:   audiotest.NewRecordingOutput(),
	}
	r.tr = audio.NewTransport(r.out, r.clock, r.sched)
	return r
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	st := store.NewSQLiteStore(d)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func request(subject, text string) *model.NarrationRequest {
	req := model.NewNarrationRequest(subject, text, "Zephyr")
	return &req
}
