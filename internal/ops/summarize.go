package ops

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/akademi4eg/aka-assistant/internal/db"
	"github.com/akademi4eg/aka-assistant/internal/document"
	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/logger"
	"github.com/akademi4eg/aka-assistant/internal/record"
	"github.com/akademi4eg/aka-assistant/internal/summarize"
)

// SummarizeInput contains parameters for the Summarize operation.
// Exactly one of Path, URL and Text must be set.
type SummarizeInput struct {
	Path       string // .txt, .md or .pdf file
	URL        string // PDF URL, downloaded once into the docs dir
	Text       string // inline text
	Model      string // default: config chat_model
	MaxContext int    // words per chunk; 0 means config max_context
	Progress   func(done, total int)
}

// SummarizeOutput contains the result of the Summarize operation.
type SummarizeOutput struct {
	ID             string `json:"id"`
	Summary        string `json:"summary"`
	Model          string `json:"model"`
	MaxContext     int    `json:"max_context"`
	ChunksTotal    int    `json:"chunks_total"`
	ChunksDone     int    `json:"chunks_done"`
	UsedTokens     int    `json:"used_tokens"`
	TokensEstimate int    `json:"tokens_estimate"`
	Complete       bool   `json:"complete"`
	Resumed        bool   `json:"resumed"`
}

type source struct {
	doc  *document.Document
	name string
	kind document.Kind
}

// Summarize folds a document into a summary, checkpointing after every chunk.
// A document already summarized with the same model and chunk size is resumed
// from its checkpoint, or returned as-is when complete. Cancellation returns
// the partial result without an error.
func Summarize(ctx context.Context, deps *Deps, input SummarizeInput) (*SummarizeOutput, error) {
	if err := deps.requireDB(); err != nil {
		return nil, err
	}
	cfg := deps.config()
	log := logger.FromContext(ctx)

	maxContext := input.MaxContext
	if maxContext == 0 {
		maxContext = cfg.MaxContext
	}
	if maxContext <= 0 {
		return nil, errors.NewInvalidChunkSize(maxContext)
	}
	model := strings.TrimSpace(input.Model)
	if model == "" {
		model = cfg.ChatModel
	}

	src, err := loadSource(ctx, deps, input)
	if err != nil {
		return nil, err
	}
	chunks, err := src.doc.Chunks(maxContext)
	if err != nil {
		return nil, err
	}

	rec, err := findOrCreate(deps, src, model, maxContext, chunks)
	if err != nil {
		return nil, err
	}
	log = log.With("id", rec.ID, "source", src.name)

	if rec.Complete() {
		log.Info("summary already complete")
		return toSummarizeOutput(rec, true), nil
	}

	reducer, err := summarize.New(summarize.Options{
		Model:  model,
		Chat:   deps.Chat,
		Logger: log,
		Checkpoint: func(_ context.Context, st summarize.State, done int) error {
			if err := db.Checkpoint(deps.DB, rec.ID, *st.Summary, st.UsedTokens, done); err != nil {
				return err
			}
			if input.Progress != nil {
				input.Progress(done, len(chunks))
			}
			return nil
		},
	}, chunks)
	if err != nil {
		return nil, err
	}

	resumed := rec.ChunksDone > 0
	if resumed {
		err := reducer.Resume(summarize.State{Summary: rec.Summary, UsedTokens: rec.UsedTokens, Model: rec.Model}, rec.ChunksDone)
		if err != nil {
			return nil, err
		}
		log.Info("resuming summary", "done", rec.ChunksDone, "total", rec.ChunksTotal)
	}

	_, runErr := reducer.Run(ctx)
	if runErr != nil && !isCancellation(runErr) {
		return nil, runErr
	}

	st := reducer.State()
	rec.Summary = st.Summary
	rec.UsedTokens = st.UsedTokens
	rec.ChunksDone = reducer.Done()
	if runErr != nil {
		log.Info("summary interrupted", "done", rec.ChunksDone, "total", rec.ChunksTotal)
	} else {
		log.Info("summary complete", "used_tokens", rec.UsedTokens)
	}
	return toSummarizeOutput(rec, resumed), nil
}

func isCancellation(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}

func loadSource(ctx context.Context, deps *Deps, input SummarizeInput) (*source, error) {
	path := strings.TrimSpace(input.Path)
	rawURL := strings.TrimSpace(input.URL)
	set := 0
	for _, v := range []string{path, rawURL, strings.TrimSpace(input.Text)} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, errors.NewInvalidRequest("exactly one of path, url or text is required")
	}

	switch {
	case path != "":
		if err := ValidateSourcePath(path); err != nil {
			return nil, err
		}
		doc, err := document.FromFile(path)
		if err != nil {
			return nil, err
		}
		return &source{doc: doc, name: path, kind: document.KindOf(path)}, nil
	case rawURL != "":
		doc, err := deps.fetcher().FetchPDF(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return &source{doc: doc, name: rawURL, kind: document.KindPDF}, nil
	default:
		return &source{doc: document.New(input.Text), name: "inline", kind: document.KindText}, nil
	}
}

func findOrCreate(deps *Deps, src *source, model string, maxContext int, chunks [][]string) (*record.Summary, error) {
	fp := src.doc.Fingerprint()
	rec, err := db.FindByDocument(deps.DB, fp, model, maxContext)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	id, err := record.NewID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()
	rec = &record.Summary{
		ID:             id,
		DocFingerprint: fp,
		Source:         src.name,
		Kind:           string(src.kind),
		Model:          model,
		MaxContext:     maxContext,
		Words:          src.doc.Len(),
		ChunksTotal:    len(chunks),
		TokensEstimate: summarize.EstimateTokens(model, chunks),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.Insert(deps.DB, rec); err != nil {
		if err == db.ErrUniqueConstraint {
			// Another process created it first
			return db.FindByDocument(deps.DB, fp, model, maxContext)
		}
		return nil, err
	}
	return rec, nil
}

func toSummarizeOutput(rec *record.Summary, resumed bool) *SummarizeOutput {
	out := &SummarizeOutput{
		ID:             rec.ID,
		Model:          rec.Model,
		MaxContext:     rec.MaxContext,
		ChunksTotal:    rec.ChunksTotal,
		ChunksDone:     rec.ChunksDone,
		UsedTokens:     rec.UsedTokens,
		TokensEstimate: rec.TokensEstimate,
		Complete:       rec.Complete(),
		Resumed:        resumed,
	}
	if rec.Summary != nil {
		out.Summary = *rec.Summary
	}
	return out
}
