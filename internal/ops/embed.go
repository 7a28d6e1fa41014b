package ops

import (
	"context"
	"strings"

	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/extract"
	"github.com/akademi4eg/aka-assistant/internal/fingerprint"
	"github.com/akademi4eg/aka-assistant/internal/logger"
)

// EmbedInput contains parameters for the Embed operation.
type EmbedInput struct {
	Text          string // required
	Model         string // default: config embedding_model
	IncludeVector bool
}

// EmbedOutput contains the result of the Embed operation.
type EmbedOutput struct {
	Fingerprint string    `json:"fingerprint"`
	Model       string    `json:"model"`
	Cached      bool      `json:"cached"`
	Dimension   int       `json:"dimension"`
	Path        string    `json:"path"`
	Vector      []float64 `json:"vector,omitempty"`
}

// Embed returns the embedding of a single text, computing and caching it on a miss.
func Embed(ctx context.Context, deps *Deps, input EmbedInput) (*EmbedOutput, error) {
	if input.Text == "" {
		return nil, errors.NewInvalidRequest("text is required")
	}
	ex, err := newExtractor(ctx, deps, input.Model)
	if err != nil {
		return nil, err
	}

	vec, cached, err := ex.Lookup(ctx, input.Text)
	if err != nil {
		return nil, err
	}

	fp := fingerprint.Of(input.Text)
	out := &EmbedOutput{
		Fingerprint: fp,
		Model:       ex.Model(),
		Cached:      cached,
		Dimension:   len(vec),
		Path:        deps.Store.Path(fp),
	}
	if input.IncludeVector {
		out.Vector = vec
	}
	return out, nil
}

// EmbedBatchInput contains parameters for the EmbedBatch operation.
type EmbedBatchInput struct {
	Texts   []string // trimmed, empty entries dropped, de-duplicated
	Model   string   // default: config embedding_model
	Workers int      // default: config nthreads
}

// EmbedBatchItem is the per-text outcome of EmbedBatch.
type EmbedBatchItem struct {
	Text        string     `json:"text"`
	Fingerprint string     `json:"fingerprint"`
	Cached      bool       `json:"cached"`
	Dimension   int        `json:"dimension,omitempty"`
	Error       *ErrorInfo `json:"error,omitempty"`
}

// EmbedBatchOutput contains the result of the EmbedBatch operation.
type EmbedBatchOutput struct {
	Model     string           `json:"model"`
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Items     []EmbedBatchItem `json:"items"`
}

// EmbedBatch embeds a set of texts with a bounded worker pool. Failed items
// are reported in the output, never as an operation error.
func EmbedBatch(ctx context.Context, deps *Deps, input EmbedBatchInput, progress extract.Progress) (*EmbedBatchOutput, error) {
	texts := extract.Normalize(input.Texts)
	if len(texts) == 0 {
		return nil, errors.NewInvalidRequest("texts must contain at least one non-empty entry")
	}
	ex, err := newExtractor(ctx, deps, input.Model)
	if err != nil {
		return nil, err
	}

	workers := input.Workers
	if workers <= 0 {
		workers = deps.config().NThreads
	}
	res := ex.RunBatch(ctx, texts, workers, progress)

	out := &EmbedBatchOutput{
		Model:     ex.Model(),
		Total:     len(texts),
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Items:     make([]EmbedBatchItem, len(res.Items)),
	}
	for i, item := range res.Items {
		out.Items[i] = EmbedBatchItem{
			Text:        item.Text,
			Fingerprint: item.Fingerprint,
			Cached:      item.Cached,
			Dimension:   item.Dimension,
			Error:       toErrorInfo(item.Err),
		}
	}
	return out, nil
}

func newExtractor(ctx context.Context, deps *Deps, model string) (*extract.Extractor, error) {
	if deps.Store == nil {
		return nil, errors.NewInvalidRequest("cache store is not configured")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = deps.config().EmbeddingModel
	}
	return extract.New(extract.Options{
		Model:    model,
		Store:    deps.Store,
		Embedder: deps.Embedder,
		Logger:   logger.FromContext(ctx),
	})
}
