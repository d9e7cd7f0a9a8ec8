package store

import (
	"context"

	"heritagevoyager/pkg/model"
)

// CacheStore handles generic key-value caching.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
	ListCacheKeys(ctx context.Context, prefix string) ([]string, error)
}

// ProfileStore persists generated cultural profiles by country name.
// Lookups are case-insensitive.
type ProfileStore interface {
	GetProfile(ctx context.Context, country string) (*model.CulturalProfile, error)
	SaveProfile(ctx context.Context, p *model.CulturalProfile) error
	ListProfiles(ctx context.Context) ([]string, error)
}

// NarrationStore keeps a history of completed narrations.
type NarrationStore interface {
	SaveNarration(ctx context.Context, n *model.Narration) error
	RecentNarrations(ctx context.Context, limit int) ([]*model.Narration, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
