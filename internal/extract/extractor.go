// Package extract resolves texts to embedding vectors through the on-disk
// cache, calling the embedding collaborator only on a miss.
package extract

import (
	"context"
	"strings"

	"github.com/akademi4eg/aka-assistant/internal/cache"
	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/fingerprint"
	"github.com/akademi4eg/aka-assistant/internal/logger"
)

// DefaultModel is the embedding model used when Options.Model is empty.
const DefaultModel = "text-embedding-ada-002"

// Embedder computes the embedding of text under model.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float64, error)
}

// Options configures an Extractor.
type Options struct {
	Model    string
	Store    *cache.Store
	Embedder Embedder
	Logger   logger.Logger
}

// Extractor is safe for concurrent use.
type Extractor struct {
	model    string
	store    *cache.Store
	embedder Embedder
	log      logger.Logger
}

// New validates opts and returns an Extractor.
func New(opts Options) (*Extractor, error) {
	if opts.Store == nil {
		return nil, errors.NewInvalidRequest("cache store is required")
	}
	if opts.Embedder == nil {
		return nil, errors.NewInvalidRequest("embedder is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{
		model:    model,
		store:    opts.Store,
		embedder: opts.Embedder,
		log:      log.With("model", model),
	}, nil
}

// Model returns the embedding model name.
func (e *Extractor) Model() string { return e.model }

// Store returns the backing cache.
func (e *Extractor) Store() *cache.Store { return e.store }

// Get returns the embedding for text. Cached entries are returned without a
// collaborator call; a corrupt entry is reported, not recomputed.
func (e *Extractor) Get(ctx context.Context, text string) ([]float64, error) {
	vec, _, err := e.Lookup(ctx, text)
	return vec, err
}

// Lookup is Get that also reports whether the vector came from the cache.
func (e *Extractor) Lookup(ctx context.Context, text string) ([]float64, bool, error) {
	fp := fingerprint.Of(text)
	log := e.log.With("fingerprint", fp)

	if e.store.Exists(fp) {
		vec, err := e.store.Read(fp)
		switch {
		case err == nil:
			log.Debug("cache hit", "dimension", len(vec))
			return vec, true, nil
		case !errors.Is(err, errors.ErrNotFound):
			return nil, false, err
		}
		// Entry vanished between Exists and Read; treat it as a miss.
	}

	vec, err := e.embedder.Embed(ctx, e.model, text)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, false, err
		}
		return nil, false, errors.NewCollaboratorFailure("embedding", err)
	}
	if len(vec) == 0 {
		return nil, false, errors.NewParse("embedding", "empty embedding")
	}

	stored, err := e.store.Write(fp, vec)
	if err != nil {
		return nil, false, err
	}
	log.Debug("cache miss stored", "dimension", len(stored))
	return stored, false, nil
}
