package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"heritagevoyager/pkg/db"
	"heritagevoyager/pkg/store"
)

const seedJSON = "\ufeff" + `[
  {"country":"Japan","officialName":"Japan","capital":"Tokyo","geographyFact":"Islands.","anthropology":"a","culture":"c","languageName":"Japanese","languageGreeting":"Konnichiwa","phoneticGreeting":"kon-nee-chee-wah","outfitDescription":"Kimono.","historicalContext":"Old."},
  {"country":"Nowhere","capital":"?"}
]`

func TestMaintenance(t *testing.T) {
	tempDir := t.TempDir()
	d, err := db.Init(filepath.Join(tempDir, "maint_test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	s := store.NewSQLiteStore(d)
	ctx := context.Background()

	seedPath := filepath.Join(tempDir, "profiles.json")
	if err := os.WriteFile(seedPath, []byte(seedJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	oldStamp := time.Now().Add(-40 * 24 * time.Hour).UTC().Format(db.TimeLayout)
	newStamp := time.Now().Add(-1 * 24 * time.Hour).UTC().Format(db.TimeLayout)
	if _, err := d.Exec("INSERT INTO cache (key, value, created_at) VALUES (?, ?, ?)", "old-key", "old-val", oldStamp); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Exec("INSERT INTO cache (key, value, created_at) VALUES (?, ?, ?)", "new-key", "new-val", newStamp); err != nil {
		t.Fatal(err)
	}

	opts := Options{SeedFile: seedPath, CacheTTL: 30 * 24 * time.Hour, KeepNarration: 100}
	if err := Run(ctx, s, d, opts); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Seed import
	p, err := s.GetProfile(ctx, "Japan")
	if err != nil || p == nil {
		t.Fatalf("seeded profile missing: %v", err)
	}
	if p.Model != "seed" {
		t.Errorf("expected model 'seed', got %q", p.Model)
	}
	if p2, _ := s.GetProfile(ctx, "Nowhere"); p2 != nil {
		t.Error("incomplete seed profile should be skipped")
	}
	if _, found := s.GetState(ctx, seedProfilesStateKey); !found {
		t.Error("State not updated after import")
	}

	// Pruning
	var count int
	if err := d.QueryRow("SELECT count(*) FROM cache WHERE key = ?", "old-key").Scan(&count); err != nil {
		t.Errorf("Failed to query cache count: %v", err)
	}
	if count != 0 {
		t.Error("Old cache entry was not pruned")
	}
	if err := d.QueryRow("SELECT count(*) FROM cache WHERE key = ?", "new-key").Scan(&count); err != nil {
		t.Errorf("Failed to query cache count: %v", err)
	}
	if count != 1 {
		t.Error("New cache entry was incorrectly pruned")
	}

	// A second pass with an unchanged file does not re-import
	if _, err := d.Exec("DELETE FROM profiles"); err != nil {
		t.Fatal(err)
	}
	if err := Run(ctx, s, d, opts); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if p, _ := s.GetProfile(ctx, "Japan"); p != nil {
		t.Error("unchanged seed file should not be re-imported")
	}
}

func TestMaintenance_MissingSeedFile(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "maint.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	s := store.NewSQLiteStore(d)

	if err := importProfiles(context.Background(), s, "/nonexistent/profiles.json"); err != nil {
		t.Errorf("missing seed file should be ignored, got %v", err)
	}
}
