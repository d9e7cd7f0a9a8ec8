package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heritagevoyager/pkg/db"
)

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heritage.db")
	ctx := context.Background()

	d, err := db.Init(path)
	require.NoError(t, err)
	s := NewSQLiteStore(d)
	require.NoError(t, s.SetState(ctx, "voice", "Kore"))
	require.NoError(t, s.SetCache(ctx, "tts:kore:abc", []byte{0x01, 0x02}))
	require.NoError(t, s.SaveProfile(ctx, sampleProfile("Peru")))
	require.NoError(t, s.Close())

	d, err = db.Init(path)
	require.NoError(t, err)
	s = NewSQLiteStore(d)
	defer s.Close()

	voice, ok := s.GetState(ctx, "voice")
	assert.True(t, ok)
	assert.Equal(t, "Kore", voice)

	pcm, ok := s.GetCache(ctx, "tts:kore:abc")
	assert.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x02}, pcm)

	p, err := s.GetProfile(ctx, "peru")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Peru", p.Country)
}

func TestSQLiteStore_State(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, ok := s.GetState(ctx, "volume")
	assert.False(t, ok, "unset key")

	require.NoError(t, s.SetState(ctx, "volume", "0.80"))
	require.NoError(t, s.SetState(ctx, "volume", "0.35"))
	v, ok := s.GetState(ctx, "volume")
	assert.True(t, ok)
	assert.Equal(t, "0.35", v, "last write wins")

	require.NoError(t, s.DeleteState(ctx, "volume"))
	_, ok = s.GetState(ctx, "volume")
	assert.False(t, ok, "deleted key")
}
