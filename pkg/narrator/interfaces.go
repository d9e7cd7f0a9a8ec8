package narrator

import (
	"context"
	"time"

	"heritagevoyager/pkg/audio"
	"heritagevoyager/pkg/model"
	"heritagevoyager/pkg/store"
)

// ProfileFetcher generates the cultural profile of a country.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, country string) (*model.CulturalProfile, error)
}

// Player is the part of audio.Transport driven by narration.
type Player interface {
	BeginLoading()
	Fail(err error)
	Play(buf *audio.SampleBuffer, from time.Duration) error
	Reset()
	Snapshot() audio.Snapshot
}

// Store is the persistence used by the narrator. Any of its parts may be
// absent in tests; a nil Store disables caching and history.
type Store interface {
	store.CacheStore
	store.ProfileStore
	store.NarrationStore
}
