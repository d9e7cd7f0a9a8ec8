package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"heritagevoyager/pkg/db"
	"heritagevoyager/pkg/model"
)

// Store defines the repository interface.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	CacheStore
	ProfileStore
	NarrationStore
	StateStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Profiles ---

func (s *SQLiteStore) GetProfile(ctx context.Context, country string) (*model.CulturalProfile, error) {
	var data, modelName string
	var createdAt any
	err := s.db.QueryRowContext(ctx,
		"SELECT data, model, created_at FROM profiles WHERE country = ?", country).
		Scan(&data, &modelName, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	var p model.CulturalProfile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("corrupt profile for %s: %w", country, err)
	}
	p.Model = modelName
	p.CreatedAt = parseTimestamp(createdAt)
	return &p, nil
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, p *model.CulturalProfile) error {
	if p.Country == "" {
		return errors.New("profile without country")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	query := `INSERT OR REPLACE INTO profiles (country, data, model, created_at) VALUES (?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query, p.Country, string(data), p.Model, db.Now())
	return err
}

func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT country FROM profiles ORDER BY country")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// --- Narrations ---

func (s *SQLiteStore) SaveNarration(ctx context.Context, n *model.Narration) error {
	created := n.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	query := `INSERT OR REPLACE INTO narrations (request_id, subject, voice, duration_ms, latency_ms, cached, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		n.RequestID, n.Subject, n.Voice,
		n.Duration.Milliseconds(), n.GenerationLatency.Milliseconds(), n.Cached,
		created.UTC().Format(db.TimeLayout))
	return err
}

func (s *SQLiteStore) RecentNarrations(ctx context.Context, limit int) ([]*model.Narration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, subject, voice, duration_ms, latency_ms, cached, created_at
		 FROM narrations ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Narration
	for rows.Next() {
		var n model.Narration
		var durMS, latMS sql.NullInt64
		var createdAt any
		if err := rows.Scan(&n.RequestID, &n.Subject, &n.Voice, &durMS, &latMS, &n.Cached, &createdAt); err != nil {
			return nil, err
		}
		n.Duration = time.Duration(durMS.Int64) * time.Millisecond
		n.GenerationLatency = time.Duration(latMS.Int64) * time.Millisecond
		n.CreatedAt = parseTimestamp(createdAt)
		out = append(out, &n)
	}
	return out, rows.Err()
}

// parseTimestamp accepts whatever the driver hands back for a DATETIME column.
func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		return parseTimestampString(t)
	case []byte:
		return parseTimestampString(string(t))
	}
	return time.Time{}
}

func parseTimestampString(s string) time.Time {
	for _, layout := range []string{db.TimeLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// --- Cache ---

func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM cache WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		slog.Debug("Cache read failed", "key", key, "error", err)
		return nil, false
	}

	// Transparent Decompression
	if len(val) > 2 && val[0] == 0x1f && val[1] == 0x8b {
		decompressed, err := decompress(val)
		if err == nil {
			return decompressed, true
		}
		// Not actually gzipped; fall through to raw
	}

	return val, true
}

var (
	bufferPool = sync.Pool{
		New: func() any { return new(bytes.Buffer) },
	}
	gzipWriterPool = sync.Pool{
		New: func() any { return gzip.NewWriter(io.Discard) },
	}
)

func compress(data []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)
	w.Reset(buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	// buf goes back to the pool
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *SQLiteStore) SetCache(ctx context.Context, key string, val []byte) error {
	// Transparent Compression
	compressed, err := compress(val)
	if err == nil {
		val = compressed
	}

	query := `INSERT OR REPLACE INTO cache (key, value, created_at) VALUES (?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query, key, val, db.Now())
	return err
}

func (s *SQLiteStore) ListCacheKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM cache WHERE key LIKE ?", prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, db.Now())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
