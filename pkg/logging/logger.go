package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"heritagevoyager/pkg/config"
	"heritagevoyager/pkg/model"
)

// RequestLogger writes one line per HTTP request to the requests log.
var RequestLogger *slog.Logger

var (
	eventLogPath string
	eventLogMu   sync.Mutex
)

// sink is one configured log destination.
type sink struct {
	name     string
	settings config.LogSettings
	console  bool // also mirror INFO+ to stdout and the capture buffer
	assign   func(*slog.Logger)
}

// Init opens the server and request logs, points the event log at its
// file and returns a function that closes everything. Files from the
// previous run are kept as .old.
func Init(cfg *config.LogConfig) (func(), error) {
	rotatePaths(cfg.Server.Path, cfg.Requests.Path, cfg.Events.Path, cfg.Gemini.Path, cfg.TTS.Path)
	SetEventLogPath(cfg.Events.Path)

	sinks := []sink{
		{name: "server", settings: cfg.Server, console: true, assign: slog.SetDefault},
		{name: "requests", settings: cfg.Requests, assign: func(l *slog.Logger) { RequestLogger = l }},
	}

	var files []io.Closer
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	for _, s := range sinks {
		h, f, err := setupHandler(s.settings.Path, s.settings.Level, s.console)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to setup %s logger: %w", s.name, err)
		}
		files = append(files, f)
		s.assign(slog.New(h))
	}
	return closeAll, nil
}

// parseLevel accepts slog level names plus TRACE, which also turns on the
// per-tick Trace output.
func parseLevel(s string) slog.Level {
	if strings.EqualFold(s, "TRACE") {
		SetTrace(true)
		return LevelTrace
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func setupHandler(path, levelStr string, console bool) (slog.Handler, *os.File, error) {
	level := parseLevel(levelStr)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	// Append; rotation already happened in Init
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}

	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level:       level,
		AddSource:   level <= slog.LevelDebug,
		ReplaceAttr: replaceLevel,
	})
	if !console {
		return fileHandler, file, nil
	}

	info := max(level, slog.LevelInfo)
	return &multiHandler{handlers: []slog.Handler{
		fileHandler,
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: info}),
		// Feeds /api/log/latest
		slog.NewTextHandler(GlobalLogCapture, &slog.HandlerOptions{Level: info}),
	}}, file, nil
}

// multiHandler fans a record out to every handler that accepts its level.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

//nolint:gocritic // slog.Handler takes the record by value
func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *multiHandler) each(fn func(slog.Handler) slog.Handler) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = fn(h)
	}
	return &multiHandler{handlers: out}
}

// rotatePaths moves each existing file to path.old, replacing an older one.
func rotatePaths(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = os.Remove(p + ".old")
		_ = os.Rename(p, p+".old")
	}
}

// SetEventLogPath configures the path for the event log file.
func SetEventLogPath(path string) {
	eventLogMu.Lock()
	defer eventLogMu.Unlock()
	eventLogPath = path
}

// LogEvent appends a narration event to the event log file.
func LogEvent(event *model.Event) {
	eventLogMu.Lock()
	defer eventLogMu.Unlock()

	if eventLogPath == "" {
		return
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(eventLogPath), 0o755); err != nil {
		slog.Error("failed to create event log directory", "error", err)
		return
	}

	// Open file in append mode
	f, err := os.OpenFile(eventLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("failed to open event log", "error", err)
		return
	}
	defer f.Close()

	// Format: [2006-01-02 15:04:05] [type] (Subject) Title - Summary
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	line := fmt.Sprintf("[%s] [%s]", ts.Format("2006-01-02 15:04:05"), event.Type)
	if event.Subject != "" {
		line += " (" + event.Subject + ")"
	}
	line += " " + event.Title

	if event.Summary != "" {
		line += " - " + event.Summary
	}
	line += "\n"

	if _, err := f.WriteString(line); err != nil {
		slog.Error("failed to write event log", "error", err)
	}

	// Latest event is served to the panel
	_, _ = GlobalEventCapture.Write([]byte(strings.TrimSpace(line)))
}
