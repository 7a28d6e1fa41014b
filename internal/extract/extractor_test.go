package extract

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akademi4eg/aka-assistant/internal/cache"
	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/fingerprint"
)

// stubEmbedder returns a vector derived from the text length and counts calls.
type stubEmbedder struct {
	calls  atomic.Int64
	fail   map[string]error
	models sync.Map

	inFlight, maxInFlight atomic.Int64
	delay                 time.Duration
}

func (s *stubEmbedder) Embed(ctx context.Context, model, text string) ([]float64, error) {
	s.calls.Add(1)
	s.models.Store(model, true)

	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		prev := s.maxInFlight.Load()
		if cur <= prev || s.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	if err, ok := s.fail[text]; ok {
		return nil, err
	}
	return []float64{float64(len(text)), 0.5, -0.25}, nil
}

func newTestExtractor(t *testing.T, emb Embedder) *Extractor {
	t.Helper()
	store, err := cache.New(filepath.Join(t.TempDir(), "emb_store"), 0)
	require.NoError(t, err)
	e, err := New(Options{Model: "text-embedding-ada-002", Store: store, Embedder: emb})
	require.NoError(t, err)
	return e
}

func TestNew_Validation(t *testing.T) {
	store, err := cache.New(t.TempDir(), 0)
	require.NoError(t, err)

	_, err = New(Options{Embedder: &stubEmbedder{}})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, err = New(Options{Store: store})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	e, err := New(Options{Store: store, Embedder: &stubEmbedder{}})
	require.NoError(t, err)
	require.Equal(t, DefaultModel, e.Model())
}

func TestGet_MissThenHit(t *testing.T) {
	stub := &stubEmbedder{}
	e := newTestExtractor(t, stub)
	ctx := context.Background()

	first, err := e.Get(ctx, "hello world")
	require.NoError(t, err)
	require.EqualValues(t, 1, stub.calls.Load())

	fp := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	path := filepath.Join(e.Store().Root(), "b9", "4d", fp+".npy")
	_, err = os.Stat(path)
	require.NoError(t, err, "cache file should exist at the shard path")

	second, err := e.Get(ctx, "hello world")
	require.NoError(t, err)
	require.EqualValues(t, 1, stub.calls.Load(), "hit must not call the collaborator")
	require.Equal(t, first, second)

	_, ok := stub.models.Load("text-embedding-ada-002")
	require.True(t, ok)
}

func TestGet_EmbedderFailure(t *testing.T) {
	boom := stderrors.New("boom")
	stub := &stubEmbedder{fail: map[string]error{"bad": boom}}
	e := newTestExtractor(t, stub)

	_, err := e.Get(context.Background(), "bad")
	require.True(t, errors.Is(err, errors.ErrCollaboratorFailure))
	require.ErrorIs(t, err, boom)
	require.False(t, e.Store().Exists(fingerprint.Of("bad")), "failed items are not cached")
}

func TestGet_TypedEmbedderErrorPassesThrough(t *testing.T) {
	stub := &stubEmbedder{fail: map[string]error{"odd": errors.NewParse("embedding", "no data")}}
	e := newTestExtractor(t, stub)

	_, err := e.Get(context.Background(), "odd")
	require.True(t, errors.Is(err, errors.ErrParse))
}

func TestGet_CorruptEntryIsSurfaced(t *testing.T) {
	stub := &stubEmbedder{}
	e := newTestExtractor(t, stub)
	fp := fingerprint.Of("broken")
	path := e.Store().Path(fp)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))

	_, err := e.Get(context.Background(), "broken")
	require.True(t, errors.Is(err, errors.ErrCacheCorrupt))
	require.Zero(t, stub.calls.Load(), "corrupt entries are not recomputed")
}

func TestRunBatch_DuplicatesCollapse(t *testing.T) {
	stub := &stubEmbedder{}
	e := newTestExtractor(t, stub)

	lines, err := ReadLines(strings.NewReader("alpha\n  beta \n\nalpha\ngamma\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "beta", "gamma"}, lines)

	res := e.RunBatch(context.Background(), lines, 2, nil)
	require.Equal(t, 3, res.Succeeded)
	require.Zero(t, res.Failed)
	require.EqualValues(t, 3, stub.calls.Load())

	st, err := e.Store().Stats()
	require.NoError(t, err)
	require.Equal(t, 3, st.Entries)
}

func TestRunBatch_FailureIsIsolated(t *testing.T) {
	lines := []string{"one", "two", "three", "four", "five"}
	stub := &stubEmbedder{fail: map[string]error{"two": stderrors.New("rate limited")}}
	e := newTestExtractor(t, stub)

	var (
		mu    sync.Mutex
		seen  []int
		total int
	)
	res := e.RunBatch(context.Background(), lines, 3, func(done, n int, item ItemResult) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, done)
		total = n
	})

	require.Equal(t, 4, res.Succeeded)
	require.Equal(t, 1, res.Failed)
	require.Len(t, res.Items, 5)
	for i, item := range res.Items {
		require.Equal(t, lines[i], item.Text, "results keep input order")
		if item.Text == "two" {
			require.True(t, errors.Is(item.Err, errors.ErrCollaboratorFailure))
			require.False(t, e.Store().Exists(item.Fingerprint))
			continue
		}
		require.NoError(t, item.Err)
		require.Equal(t, 3, item.Dimension)
		require.True(t, e.Store().Exists(item.Fingerprint))
	}
	require.Len(t, seen, 5)
	require.ElementsMatch(t, []int{1, 2, 3, 4, 5}, seen)
	require.Equal(t, 5, total)
}

func TestRunBatch_SecondRunIsCached(t *testing.T) {
	stub := &stubEmbedder{}
	e := newTestExtractor(t, stub)
	lines := []string{"a", "b", "c"}

	e.RunBatch(context.Background(), lines, 0, nil)
	require.EqualValues(t, 3, stub.calls.Load())

	res := e.RunBatch(context.Background(), lines, 0, nil)
	require.EqualValues(t, 3, stub.calls.Load())
	for _, item := range res.Items {
		require.True(t, item.Cached)
	}
}

func TestRunBatch_BoundsConcurrency(t *testing.T) {
	stub := &stubEmbedder{delay: 10 * time.Millisecond}
	e := newTestExtractor(t, stub)

	lines := make([]string, 20)
	for i := range lines {
		lines[i] = strings.Repeat("x", i+1)
	}
	res := e.RunBatch(context.Background(), lines, 4, nil)
	require.Equal(t, 20, res.Succeeded)
	require.LessOrEqual(t, stub.maxInFlight.Load(), int64(4))
}

func TestRunBatch_BoundsGoroutines(t *testing.T) {
	e := newTestExtractor(t, &stubEmbedder{delay: time.Millisecond})

	lines := make([]string, 500)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	base := runtime.NumGoroutine()
	var peak atomic.Int64
	progress := func(_, _ int, _ ItemResult) {
		n := int64(runtime.NumGoroutine())
		for {
			prev := peak.Load()
			if n <= prev || peak.CompareAndSwap(prev, n) {
				break
			}
		}
	}

	res := e.RunBatch(context.Background(), lines, 4, progress)
	require.Equal(t, 500, res.Succeeded)
	require.LessOrEqual(t, peak.Load(), int64(base+4+8), "goroutines should not scale with input size")
}

func TestRunBatch_Cancelled(t *testing.T) {
	stub := &stubEmbedder{}
	e := newTestExtractor(t, stub)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := e.RunBatch(ctx, []string{"a", "b"}, 1, nil)
	require.Equal(t, 2, res.Failed)
	require.Zero(t, stub.calls.Load())
}

func TestRunBatch_Empty(t *testing.T) {
	e := newTestExtractor(t, &stubEmbedder{})
	res := e.RunBatch(context.Background(), nil, 5, nil)
	require.Empty(t, res.Items)
	require.Zero(t, res.Succeeded)
}
