package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// CheckFunc returns nil when the checked dependency is usable.
type CheckFunc func(ctx context.Context) error

// Probe is a single startup check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool          // failure aborts startup
	Timeout  time.Duration // DefaultTimeout when zero
}

// DefaultTimeout bounds a single check.
const DefaultTimeout = 5 * time.Second

var errNoCheck = errors.New("no check defined")

// Result holds the outcome of a single probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Passed reports whether the probe succeeded.
func (r Result) Passed() bool { return r.Error == nil }

// FailedError lists the critical probes that failed.
type FailedError struct {
	Names []string
	Err   error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%d critical check(s) failed (%s): %v", len(e.Names), strings.Join(e.Names, ", "), e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// Run executes all probes concurrently, each under its own timeout.
// Results keep the order of probes.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))

	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runOne(ctx, p)
		}()
	}
	wg.Wait()
	return results
}

func runOne(ctx context.Context, p Probe) Result {
	if p.Check == nil {
		return Result{Probe: p, Error: errNoCheck}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := p.Check(checkCtx)
	return Result{Probe: p, Error: err, Duration: time.Since(start)}
}

// AnalyzeResults logs a summary and returns a *FailedError when a critical
// probe failed.
func AnalyzeResults(results []Result) error {
	var (
		names []string
		errs  []error
	)

	slog.Info("Startup checks", "count", len(results))
	for _, r := range results {
		attrs := []any{"check", r.Probe.Name, "took", r.Duration.Round(time.Millisecond)}
		switch {
		case r.Passed():
			slog.Info("Startup check passed", attrs...)
		case r.Probe.Critical:
			slog.Error("Startup check failed", append(attrs, "error", r.Error)...)
			names = append(names, r.Probe.Name)
			errs = append(errs, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
		default:
			slog.Warn("Startup check failed, continuing without it", append(attrs, "error", r.Error)...)
		}
	}

	if len(names) == 0 {
		return nil
	}
	return &FailedError{Names: names, Err: errors.Join(errs...)}
}

// Degraded names the non-critical probes that failed.
func Degraded(results []Result) []string {
	var names []string
	for _, r := range results {
		if !r.Passed() && !r.Probe.Critical {
			names = append(names, r.Probe.Name)
		}
	}
	return names
}
