package narrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"heritagevoyager/pkg/audio"
	"heritagevoyager/pkg/config"
	"heritagevoyager/pkg/logging"
	"heritagevoyager/pkg/model"
	"heritagevoyager/pkg/tracker"
)

const trackerProfiles = "profiles"

var (
	// ErrBusy is returned for clicks while a profile loads and for
	// re-selecting the current subject.
	ErrBusy = errors.New("narrator busy")

	ErrNoProfile    = errors.New("no profile loaded")
	ErrUnknownVoice = errors.New("unknown voice")
)

// View is what the profile panel renders.
type View struct {
	Subject      string                 `json:"subject"`
	Profile      *model.CulturalProfile `json:"profile,omitempty"`
	LoadingState model.LoadingState     `json:"loading_state"`
	Error        string                 `json:"error,omitempty"`
}

// Service coordinates subject selection, profile loading and narration.
type Service struct {
	cfg      config.Provider
	profiles ProfileFetcher
	store    Store
	player   Player
	orch     *Orchestrator
	sel      *Selection
	tracker  *tracker.Tracker

	useCache bool

	mu      sync.RWMutex
	profile *model.CulturalProfile
	state   model.LoadingState
	lastErr string
	pending string // request whose completion returns the view to idle

	bgCtx  context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService wires a Service. st may be nil.
func NewService(cfg config.Provider, profiles ProfileFetcher, orch *Orchestrator, player Player, st Store, sel *Selection, t *tracker.Tracker) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:      cfg,
		profiles: profiles,
		store:    st,
		player:   player,
		orch:     orch,
		sel:      sel,
		tracker:  t,
		useCache: st != nil && cfg.AppConfig().Cache.Profiles,
		state:    model.LoadingIdle,
		bgCtx:    ctx,
		cancel:   cancel,
	}
}

// View returns the current panel state.
func (s *Service) View() View {
	subject := s.sel.Current()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		Subject:      subject,
		Profile:      s.profile,
		LoadingState: s.state,
		Error:        s.lastErr,
	}
}

// SelectCountry makes name the subject, loads its profile and narrates the
// welcome script. It blocks until the narration starts or fails.
func (s *Service) SelectCountry(ctx context.Context, name string) error {
	name, err := s.claim(name)
	if err != nil {
		return err
	}
	return s.load(ctx, name)
}

// SelectCountryAsync validates and claims the selection synchronously, then
// loads in the background.
func (s *Service) SelectCountryAsync(name string) error {
	name, err := s.claim(name)
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.load(s.bgCtx, name); err != nil && !errors.Is(err, ErrStaleResponse) {
			slog.Warn("Narrator: selection failed", "country", name, "error", err)
		}
	}()
	return nil
}

// Play narrates textOverride, or the welcome script when empty, for the
// current subject. An empty voice uses the configured default.
func (s *Service) Play(ctx context.Context, textOverride, voice string) (*model.Narration, error) {
	req, err := s.prepare(ctx, textOverride, voice)
	if err != nil {
		return nil, err
	}
	return s.narrate(ctx, req)
}

// PlayAsync validates synchronously and narrates in the background.
func (s *Service) PlayAsync(textOverride, voice string) error {
	req, err := s.prepare(s.bgCtx, textOverride, voice)
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.narrate(s.bgCtx, req); err != nil && !errors.Is(err, ErrStaleResponse) {
			slog.Warn("Narrator: playback failed", "subject", req.Subject, "error", err)
		}
	}()
	return nil
}

// Close cancels background work and waits for it.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// claim enters LOADING_DATA for name, switching the subject.
func (s *Service) claim(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("country name is empty")
	}

	s.mu.Lock()
	if s.state == model.LoadingData {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: profile still loading", ErrBusy)
	}
	if strings.EqualFold(s.sel.Current(), name) && s.state != model.LoadingError {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s already selected", ErrBusy, name)
	}
	s.state = model.LoadingData
	s.profile = nil
	s.lastErr = ""
	s.pending = ""
	s.mu.Unlock()

	// A retry after an error re-selects the same name.
	s.sel.Force(name, s.player.Reset)

	slog.Info("Narrator: country selected", "country", name)
	logging.LogEvent(&model.Event{Type: model.EventSelect, Subject: name, Title: "Country selected"})
	return name, nil
}

// load fetches the profile of the claimed subject and narrates it.
func (s *Service) load(ctx context.Context, name string) error {
	p, err := s.profileFor(ctx, name)
	if err != nil {
		s.mu.Lock()
		s.state = model.LoadingError
		s.lastErr = err.Error()
		s.mu.Unlock()

		slog.Error("Narrator: profile fetch failed", "country", name, "error", err)
		logging.LogEvent(&model.Event{Type: model.EventFailure, Subject: name, Title: "Profile unavailable", Summary: err.Error()})
		return err
	}

	s.mu.Lock()
	s.profile = p
	s.state = model.LoadingIdle
	s.mu.Unlock()

	logging.LogEvent(&model.Event{Type: model.EventProfile, Subject: name, Title: p.OfficialName, Summary: p.Capital})

	_, err = s.Play(ctx, "", "")
	return err
}

func (s *Service) profileFor(ctx context.Context, name string) (*model.CulturalProfile, error) {
	if s.useCache {
		p, err := s.store.GetProfile(ctx, name)
		if err != nil {
			slog.Warn("Narrator: profile cache read failed", "country", name, "error", err)
		}
		if p != nil {
			s.track(func(t *tracker.Tracker) { t.TrackCacheHit(trackerProfiles) })
			return p, nil
		}
		s.track(func(t *tracker.Tracker) { t.TrackCacheMiss(trackerProfiles) })
	}

	p, err := s.profiles.FetchProfile(ctx, name)
	if err != nil {
		return nil, err
	}
	// The model may answer with a longer name; keep the clicked one for lookups.
	if p.Country == "" {
		p.Country = name
	}

	if s.useCache {
		stored := *p
		stored.Country = name
		if err := s.store.SaveProfile(ctx, &stored); err != nil {
			slog.Warn("Narrator: failed to cache profile", "country", name, "error", err)
		}
	}
	return p, nil
}

// prepare builds the request for the current subject and enters LOADING_AUDIO.
func (s *Service) prepare(ctx context.Context, textOverride, voice string) (*model.NarrationRequest, error) {
	if voice == "" {
		voice = s.cfg.Voice(ctx)
	}
	v, ok := audio.ParseVoice(voice)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVoice, voice)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == model.LoadingData {
		return nil, fmt.Errorf("%w: profile still loading", ErrBusy)
	}
	if s.profile == nil {
		return nil, ErrNoProfile
	}

	text := strings.TrimSpace(textOverride)
	if text == "" {
		text = s.profile.WelcomeScript()
	}
	req := model.NewNarrationRequest(s.sel.Current(), text, v.Name)
	s.pending = req.ID
	s.state = model.LoadingAudio
	return &req, nil
}

func (s *Service) narrate(ctx context.Context, req *model.NarrationRequest) (*model.Narration, error) {
	n, err := s.orch.Narrate(ctx, req)

	s.mu.Lock()
	if s.pending == req.ID {
		s.pending = ""
		if s.state == model.LoadingAudio {
			s.state = model.LoadingIdle
		}
	}
	s.mu.Unlock()

	return n, err
}

func (s *Service) track(fn func(*tracker.Tracker)) {
	if s.tracker != nil {
		fn(s.tracker)
	}
}
