package document

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akademi4eg/aka-assistant/internal/errors"
)

func words(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("w%d", i)
	}
	return out
}

func TestNew_SplitsOnWhitespace(t *testing.T) {
	d := New("  alpha\tbeta\n\ngamma  delta \r\n")
	require.Equal(t, []string{"alpha", "beta", "gamma", "delta"}, d.Words())
	require.Equal(t, 4, d.Len())

	require.Zero(t, New(" \n\t ").Len())
}

func TestWords_ReturnsCopy(t *testing.T) {
	d := New("a b")
	w := d.Words()
	w[0] = "z"
	require.Equal(t, []string{"a", "b"}, d.Words())
}

func TestFingerprint_IgnoresWhitespaceLayout(t *testing.T) {
	require.Equal(t, New("a  b\nc").Fingerprint(), New("a b c").Fingerprint())
	require.NotEqual(t, New("a b c").Fingerprint(), New("a b d").Fingerprint())
}

func TestChunks_Sizes(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{"five words by two", 5, 2, []int{2, 2, 1}},
		{"exact multiple", 6, 3, []int{3, 3}},
		{"size larger than document", 3, 10, []int{3}},
		{"empty document", 0, 4, []int{}},
		{"one word chunks", 3, 1, []int{1, 1, 1}},
		{"paper", 5000, 1800, []int{1800, 1800, 1400}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Chunks(words(tt.n), tt.size)
			require.NoError(t, err)

			got := make([]int, len(chunks))
			for i, c := range chunks {
				got[i] = len(c)
			}
			require.Equal(t, tt.sizes, got)
		})
	}
}

func TestChunks_ExactCoverage(t *testing.T) {
	for _, n := range []int{0, 1, 7, 100, 1801} {
		for _, size := range []int{1, 2, 3, 50, 1800} {
			in := words(n)
			chunks, err := Chunks(in, size)
			require.NoError(t, err)
			require.Len(t, chunks, (n+size-1)/size)
			require.Equal(t, in, append([]string{}, slices.Concat(chunks...)...), "n=%d size=%d", n, size)
		}
	}
}

func TestChunks_AppendDoesNotClobberNext(t *testing.T) {
	chunks, err := Chunks(words(4), 2)
	require.NoError(t, err)
	_ = append(chunks[0], "x")
	require.Equal(t, "w2", chunks[1][0])
}

func TestChunks_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := Chunks(words(3), size)
		require.True(t, errors.Is(err, errors.ErrInvalidChunkSize), "size %d", size)
	}

	_, err := New("a b").Chunks(0)
	require.True(t, errors.Is(err, errors.ErrInvalidChunkSize))
}

func TestDocumentChunks(t *testing.T) {
	d := New(strings.Repeat("word ", 10))
	chunks, err := d.Chunks(4)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[2], 2)
}
