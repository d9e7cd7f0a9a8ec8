package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"heritagevoyager/pkg/db"
	"heritagevoyager/pkg/model"
	"heritagevoyager/pkg/store"
)

const seedProfilesStateKey = "seed_profiles_mtime"

// Options controls a maintenance pass.
type Options struct {
	SeedFile      string        // Optional JSON array of pre-generated profiles
	CacheTTL      time.Duration // Cached audio and profiles older than this are dropped
	KeepNarration int           // Narration history rows to keep
}

// Run executes all maintenance tasks: seeding and pruning.
// It blocks until completion. Failures are logged, never fatal.
func Run(ctx context.Context, s store.Store, d *db.DB, opts Options) error {
	slog.Info("Starting database maintenance...")

	if opts.CacheTTL > 0 {
		n, err := d.PruneCache(opts.CacheTTL)
		if err != nil {
			slog.Error("Cache pruning failed", "error", err)
		} else {
			slog.Info("Cache pruning completed", "removed", n)
		}
	}

	// Seed after pruning so seeded profiles are never dropped in the same pass
	if opts.SeedFile != "" {
		if err := importProfiles(ctx, s, opts.SeedFile); err != nil {
			slog.Error("Profile seed import failed", "error", err)
		}
	}

	if opts.KeepNarration > 0 {
		if n, err := d.TrimNarrations(opts.KeepNarration); err != nil {
			slog.Error("Narration history trim failed", "error", err)
		} else if n > 0 {
			slog.Info("Narration history trimmed", "removed", n)
		}
	}

	return nil
}

// importProfiles loads seed profiles when the file changed since the last import.
func importProfiles(ctx context.Context, s store.Store, path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat seed file: %w", err)
	}

	fileMTime := info.ModTime().UTC().Format(time.RFC3339)
	if stored, found := s.GetState(ctx, seedProfilesStateKey); found && stored == fileMTime {
		return nil // Up to date
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	// Tolerate a UTF-8 BOM from hand-edited files
	if len(data) >= 3 && string(data[:3]) == "\xef\xbb\xbf" {
		data = data[3:]
	}

	var profiles []model.CulturalProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	count := 0
	for i := range profiles {
		p := &profiles[i]
		if missing := p.Missing(); len(missing) > 0 {
			slog.Warn("Skipping incomplete seed profile", "country", p.Country, "missing", missing)
			continue
		}
		if p.Model == "" {
			p.Model = "seed"
		}
		if err := s.SaveProfile(ctx, p); err != nil {
			return fmt.Errorf("failed to save profile %s: %w", p.Country, err)
		}
		count++
	}
	slog.Info("Imported seed profiles", "count", count, "path", path)

	if err := s.SetState(ctx, seedProfilesStateKey, fileMTime); err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}
	return nil
}
