package ops

import (
	"github.com/akademi4eg/aka-assistant/internal/cache"
	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/fingerprint"
)

// CachePathInput contains parameters for the CachePath operation.
type CachePathInput struct {
	Text string // required
}

// CachePathOutput locates the cache entry for a text.
type CachePathOutput struct {
	Fingerprint string `json:"fingerprint"`
	Path        string `json:"path"`
	Exists      bool   `json:"exists"`
}

// CachePath reports where the entry for a text lives and whether it exists.
// No collaborator is called.
func CachePath(store *cache.Store, input CachePathInput) (*CachePathOutput, error) {
	if input.Text == "" {
		return nil, errors.NewInvalidRequest("text is required")
	}
	if store == nil {
		return nil, errors.NewInvalidRequest("cache store is not configured")
	}
	fp := fingerprint.Of(input.Text)
	return &CachePathOutput{
		Fingerprint: fp,
		Path:        store.Path(fp),
		Exists:      store.Exists(fp),
	}, nil
}

// CacheStats counts the entries in the store.
func CacheStats(store *cache.Store) (*cache.Stats, error) {
	if store == nil {
		return nil, errors.NewInvalidRequest("cache store is not configured")
	}
	st, err := store.Stats()
	if err != nil {
		return nil, err
	}
	return &st, nil
}
