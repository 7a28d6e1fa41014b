// Package record defines the persisted summarization record.
package record

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Summary is a summarization run over one document, checkpointed after every fold.
type Summary struct {
	// ID is a ULID that uniquely identifies this record
	ID string

	// DocFingerprint identifies the document content (see document.Fingerprint)
	DocFingerprint string

	// Source is where the document came from: a file path or URL
	Source string

	// Kind is the source format (text, markdown, pdf)
	Kind string

	// Model is the chat model used for every fold
	Model string

	// MaxContext is the chunk size in words
	MaxContext int

	// Words is the document length in words
	Words int

	// ChunksTotal is the number of chunks the document splits into
	ChunksTotal int

	// ChunksDone is the number of chunks folded so far
	ChunksDone int

	// Summary is the running summary (nil before the first fold)
	Summary *string

	// UsedTokens is the sum of reported total_tokens over all folds
	UsedTokens int

	// TokensEstimate is the prompt-token estimate computed before the first fold
	TokensEstimate int

	// CreatedAt is the Unix timestamp when the record was created
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last checkpoint
	UpdatedAt int64
}

// Complete reports whether every chunk has been folded.
func (s *Summary) Complete() bool {
	return s.ChunksDone >= s.ChunksTotal
}

// Item is a record's metadata without the summary text.
// Used by list operations to keep responses small.
type Item struct {
	ID             string `json:"id"`
	DocFingerprint string `json:"doc_fingerprint"`
	Source         string `json:"source"`
	Kind           string `json:"kind"`
	Model          string `json:"model"`
	MaxContext     int    `json:"max_context"`
	ChunksTotal    int    `json:"chunks_total"`
	ChunksDone     int    `json:"chunks_done"`
	Complete       bool   `json:"complete"`
	SummaryChars   int    `json:"summary_chars"`
	UsedTokens     int    `json:"used_tokens"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// ToItem strips the summary text.
func (s *Summary) ToItem() Item {
	chars := 0
	if s.Summary != nil {
		chars = len([]rune(*s.Summary))
	}
	return Item{
		ID:             s.ID,
		DocFingerprint: s.DocFingerprint,
		Source:         s.Source,
		Kind:           s.Kind,
		Model:          s.Model,
		MaxContext:     s.MaxContext,
		ChunksTotal:    s.ChunksTotal,
		ChunksDone:     s.ChunksDone,
		Complete:       s.Complete(),
		SummaryChars:   chars,
		UsedTokens:     s.UsedTokens,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// NewID generates a new ULID.
func NewID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
