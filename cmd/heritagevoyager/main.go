package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"heritagevoyager/internal/api"
	"heritagevoyager/pkg/audio"
	"heritagevoyager/pkg/backoff"
	"heritagevoyager/pkg/config"
	"heritagevoyager/pkg/db"
	"heritagevoyager/pkg/db/maintenance"
	"heritagevoyager/pkg/geo"
	"heritagevoyager/pkg/llm/gemini"
	"heritagevoyager/pkg/logging"
	"heritagevoyager/pkg/narrator"
	"heritagevoyager/pkg/probe"
	"heritagevoyager/pkg/store"
	"heritagevoyager/pkg/tracker"
	"heritagevoyager/pkg/tts"
	ttsgemini "heritagevoyager/pkg/tts/gemini"
	"heritagevoyager/pkg/version"
)

const defaultConfigPath = "configs/heritage.yaml"

var (
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
)

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	// GEMINI_API_KEY may come from a .env file
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	tts.SetLogPath(appCfg.Log.TTS.Path)

	slog.Info("Heritage Voyager started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := maintenance.Run(ctx, st, dbConn, maintenance.Options{
		SeedFile:      appCfg.DB.SeedProfiles,
		CacheTTL:      time.Duration(appCfg.Cache.TTL),
		KeepNarration: appCfg.DB.KeepNarrations,
	}); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	prov := config.NewProvider(appCfg, st)
	tr := tracker.New()

	transport, probes := initAudio(ctx, appCfg, prov)
	defer transport.Close()

	svc, closeNarrator, err := initNarrator(appCfg, prov, transport, st, tr)
	if err != nil {
		return err
	}
	defer closeNarrator()

	var locator api.Locator
	if countries := initCountries(appCfg); countries != nil {
		locator = countries
	}

	// Startup Probes
	probes = append(probes,
		probe.Probe{
			Name:     "Gemini API key",
			Check:    probe.APIKey("Gemini", appCfg.LLM.Key),
			Critical: true,
		},
		probe.Probe{
			Name:     "Country outlines",
			Check:    probe.FileReadable(appCfg.Geo.CountriesFile),
			Critical: false, // Clicks by name still work without outlines
		},
	)
	results := probe.Run(ctx, probes)
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}
	if degraded := probe.Degraded(results); len(degraded) > 0 {
		slog.Warn("Running with reduced features", "checks", degraded)
	}

	return runServer(ctx, appCfg, prov, svc, transport, locator, st, tr)
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// initAudio opens the output device. A missing device leaves narration
// timed but silent and is reported as a non-critical probe.
func initAudio(ctx context.Context, cfg *config.Config, prov config.Provider) (*audio.Transport, []probe.Probe) {
	var probes []probe.Probe
	out, err := audio.NewOutput(&cfg.Audio)
	if err != nil {
		slog.Warn("Audio output unavailable, narration will be silent", "output", cfg.Audio.Output, "error", err)
		out = audio.NullOutput{}
		probes = append(probes, probe.Probe{
			Name:  "Audio output",
			Check: probe.Static(err),
		})
	}

	sched := audio.NewFrameScheduler(prov.FrameInterval(ctx))
	t := audio.NewTransport(out, audio.NewSystemClock(), sched)
	t.SetVolume(prov.Volume(ctx))
	slog.Info("Audio ready", "output", cfg.Audio.Output, "frame_interval", sched.Interval(), "volume", t.Volume())
	return t, probes
}

func initNarrator(cfg *config.Config, prov config.Provider, t *audio.Transport, st store.Store, tr *tracker.Tracker) (*narrator.Service, func(), error) {
	profiles, err := gemini.NewClient(cfg.LLM, cfg.Log.Gemini.Path, tr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize profile client: %w", err)
	}

	synth, err := ttsgemini.NewProvider(cfg.TTS, cfg.LLM.Key, tr)
	if err != nil {
		profiles.Close()
		return nil, nil, fmt.Errorf("failed to initialize TTS provider: %w", err)
	}

	bo := backoff.New(time.Duration(cfg.LLM.Backoff.BaseDelay), time.Duration(cfg.LLM.Backoff.MaxDelay))
	profiles.SetBackoff(bo)
	synth.SetBackoff(bo)

	sel := &narrator.Selection{}
	orch := narrator.NewOrchestrator(t, synth, st, sel, tr, cfg.Cache.Narrations)
	svc := narrator.NewService(prov, profiles, orch, t, st, sel, tr)

	return svc, func() {
		svc.Close()
		profiles.Close()
	}, nil
}

func initCountries(cfg *config.Config) *geo.CountryService {
	path := cfg.Geo.CountriesFile
	if path == "" {
		return nil
	}
	svc, err := geo.NewCountryService(path, cfg.Geo.MaxSnap.Meters())
	if err != nil {
		// Log but don't fail, map clicks just won't resolve
		slog.Info("Geo: country outlines not available", "path", path, "error", err)
		return nil
	}
	slog.Info("Geo: country outlines loaded", "path", path, "countries", svc.Count())
	return svc
}

func runServer(ctx context.Context, cfg *config.Config, prov config.Provider, svc *narrator.Service, t *audio.Transport, loc api.Locator, st store.Store, tr *tracker.Tracker) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	hub := api.NewSnapshotHub(t)
	defer hub.Close()

	srv := api.NewServer(cfg.Server.Address, api.Handlers{
		Stats:     api.NewStatsHandler(tr),
		Countries: api.NewCountryHandler(svc, loc).WithProfiles(st),
		Audio:     api.NewAudioHandler(t, st),
		Voices:    api.NewVoiceHandler(prov, st),
		History:   api.NewHistoryHandler(st),
		Hub:       hub,
	}, shutdownFunc)

	srv.Handler = loggingMiddleware(srv.Handler)

	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if logging.RequestLogger != nil {
			logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		}
	})
}
