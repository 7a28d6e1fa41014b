// Package document splits source text into words and groups them into
// fixed-size chunks for summarization.
package document

import (
	"strings"

	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/fingerprint"
)

// DefaultMaxContext is the default number of words per chunk.
const DefaultMaxContext = 1800

// Document is an immutable sequence of whitespace-delimited words.
type Document struct {
	words []string
}

// New splits text on any whitespace run.
func New(text string) *Document {
	return &Document{words: strings.Fields(text)}
}

// Words returns a copy of the document words.
func (d *Document) Words() []string {
	out := make([]string, len(d.words))
	copy(out, d.words)
	return out
}

// Len returns the number of words.
func (d *Document) Len() int { return len(d.words) }

// Fingerprint identifies the document by its words joined with single spaces,
// so whitespace-only differences in the source do not change it.
func (d *Document) Fingerprint() string {
	return fingerprint.Of(strings.Join(d.words, " "))
}

// Chunks splits the document into chunks of at most size words.
func (d *Document) Chunks(size int) ([][]string, error) {
	return Chunks(d.words, size)
}

// Chunks partitions words into consecutive, non-overlapping chunks of size
// words; the last chunk may be shorter. Concatenating the chunks yields words.
func Chunks(words []string, size int) ([][]string, error) {
	if size <= 0 {
		return nil, errors.NewInvalidChunkSize(size)
	}
	chunks := make([][]string, 0, (len(words)+size-1)/size)
	for start := 0; start < len(words); start += size {
		end := min(start+size, len(words))
		chunks = append(chunks, words[start:end:end])
	}
	return chunks, nil
}
