package ops

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akademi4eg/aka-assistant/internal/cache"
	"github.com/akademi4eg/aka-assistant/internal/config"
	"github.com/akademi4eg/aka-assistant/internal/db"
	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/llm"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (f *fakeEmbedder) Embed(_ context.Context, _, text string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[text] {
		return nil, stderrors.New("upstream error")
	}
	return []float64{float64(len(text)), 1}, nil
}

type fakeChat struct {
	calls  int
	failAt int
	onCall func(n int)
}

func (f *fakeChat) Chat(_ context.Context, _ string, messages []llm.Message) (*llm.ChatResult, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall(f.calls)
	}
	if f.calls == f.failAt {
		return nil, stderrors.New("chat unavailable")
	}
	return &llm.ChatResult{
		Message: llm.Message{Role: llm.RoleAssistant, Content: fmt.Sprintf("summary after %d", f.calls)},
		Usage:   llm.Usage{TotalTokens: 10},
	}, nil
}

func newTestDeps(t *testing.T) (*Deps, *fakeEmbedder, *fakeChat) {
	t.Helper()
	dir := t.TempDir()

	database, err := db.Init(filepath.Join(dir, "base"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store, err := cache.New(filepath.Join(dir, "emb_store"), 0)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.DocsDir = filepath.Join(dir, "docs")

	emb := &fakeEmbedder{}
	chat := &fakeChat{}
	return &Deps{DB: database, Config: cfg, Store: store, Embedder: emb, Chat: chat}, emb, chat
}

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(w, " ")
}

func TestEmbed(t *testing.T) {
	deps, emb, _ := newTestDeps(t)
	ctx := context.Background()

	out, err := Embed(ctx, deps, EmbedInput{Text: "hello world", IncludeVector: true})
	require.NoError(t, err)
	require.False(t, out.Cached)
	require.Equal(t, config.DefaultEmbeddingModel, out.Model)
	require.Equal(t, 2, out.Dimension)
	require.Equal(t, []float64{11, 1}, out.Vector)
	require.FileExists(t, out.Path)

	again, err := Embed(ctx, deps, EmbedInput{Text: "hello world"})
	require.NoError(t, err)
	require.True(t, again.Cached)
	require.Nil(t, again.Vector)
	require.Equal(t, 1, emb.calls)
}

func TestEmbed_Validation(t *testing.T) {
	deps, _, _ := newTestDeps(t)

	_, err := Embed(context.Background(), deps, EmbedInput{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	deps.Store = nil
	_, err = Embed(context.Background(), deps, EmbedInput{Text: "x"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestEmbedBatch(t *testing.T) {
	deps, emb, _ := newTestDeps(t)
	emb.fail = map[string]bool{"bad": true}

	out, err := EmbedBatch(context.Background(), deps, EmbedBatchInput{
		Texts:   []string{"a", " b ", "", "a", "bad", "c"},
		Workers: 2,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 4, out.Total)
	require.Equal(t, 3, out.Succeeded)
	require.Equal(t, 1, out.Failed)

	for _, item := range out.Items {
		if item.Text == "bad" {
			require.NotNil(t, item.Error)
			require.Equal(t, string(errors.ErrCollaboratorFailure), item.Error.Code)
			continue
		}
		require.Nil(t, item.Error)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	_, err := EmbedBatch(context.Background(), deps, EmbedBatchInput{Texts: []string{" ", ""}}, nil)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestEmbedBatch_LargeInput(t *testing.T) {
	deps, emb, _ := newTestDeps(t)
	texts := make([]string, 10001)
	for i := range texts {
		texts[i] = fmt.Sprintf("line %d", i)
	}

	out, err := EmbedBatch(context.Background(), deps, EmbedBatchInput{Texts: texts, Workers: 8}, nil)
	require.NoError(t, err)
	require.Equal(t, 10001, out.Total)
	require.Equal(t, 10001, out.Succeeded)
	require.Zero(t, out.Failed)
	require.Equal(t, 10001, emb.calls)
}

func TestCachePathAndStats(t *testing.T) {
	deps, _, _ := newTestDeps(t)

	out, err := CachePath(deps.Store, CachePathInput{Text: "hello world"})
	require.NoError(t, err)
	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", out.Fingerprint)
	require.False(t, out.Exists)
	require.Equal(t, filepath.Join(deps.Store.Root(), "b9", "4d", out.Fingerprint+".npy"), out.Path)

	_, err = Embed(context.Background(), deps, EmbedInput{Text: "hello world"})
	require.NoError(t, err)

	out, err = CachePath(deps.Store, CachePathInput{Text: "hello world"})
	require.NoError(t, err)
	require.True(t, out.Exists)

	st, err := CacheStats(deps.Store)
	require.NoError(t, err)
	require.Equal(t, 1, st.Entries)

	_, err = CachePath(deps.Store, CachePathInput{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestSummarize_Text(t *testing.T) {
	deps, _, chat := newTestDeps(t)

	var progress []int
	out, err := Summarize(context.Background(), deps, SummarizeInput{
		Text:       words(5000),
		MaxContext: 1800,
		Progress:   func(done, total int) { progress = append(progress, done) },
	})
	require.NoError(t, err)
	require.True(t, out.Complete)
	require.False(t, out.Resumed)
	require.Equal(t, 3, out.ChunksTotal)
	require.Equal(t, 3, out.ChunksDone)
	require.Equal(t, "summary after 3", out.Summary)
	require.Equal(t, 30, out.UsedTokens)
	require.Positive(t, out.TokensEstimate)
	require.Equal(t, 3, chat.calls)
	require.Equal(t, []int{1, 2, 3}, progress)

	// A completed record is returned without collaborator calls.
	again, err := Summarize(context.Background(), deps, SummarizeInput{Text: words(5000), MaxContext: 1800})
	require.NoError(t, err)
	require.Equal(t, out.ID, again.ID)
	require.Equal(t, out.Summary, again.Summary)
	require.Equal(t, 3, chat.calls)
}

func TestSummarize_ResumesAfterFailure(t *testing.T) {
	deps, _, chat := newTestDeps(t)
	chat.failAt = 2
	input := SummarizeInput{Text: words(30), MaxContext: 10}

	_, err := Summarize(context.Background(), deps, input)
	require.True(t, errors.Is(err, errors.ErrCollaboratorFailure))

	list, err := ListSummaries(deps, ListSummariesInput{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, 1, list.Items[0].ChunksDone)
	require.False(t, list.Items[0].Complete)

	out, err := Summarize(context.Background(), deps, input)
	require.NoError(t, err)
	require.True(t, out.Resumed)
	require.True(t, out.Complete)
	require.Equal(t, 3, out.ChunksDone)
	// Calls: 1 ok, 2 failed, then 3 and 4 fold chunks 2 and 3.
	require.Equal(t, 4, chat.calls)
	require.Equal(t, 30, out.UsedTokens)
}

func TestSummarize_CancelledIsPartial(t *testing.T) {
	deps, _, chat := newTestDeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chat.onCall = func(n int) {
		if n == 1 {
			cancel()
		}
	}

	out, err := Summarize(ctx, deps, SummarizeInput{Text: words(30), MaxContext: 10})
	require.NoError(t, err)
	require.False(t, out.Complete)
	require.Equal(t, 1, out.ChunksDone)
	require.Equal(t, "summary after 1", out.Summary)

	fetched, err := FetchSummary(deps, FetchSummaryInput{ID: out.ID})
	require.NoError(t, err)
	require.Equal(t, 1, fetched.ChunksDone)
}

func TestSummarize_InvalidChunkSize(t *testing.T) {
	deps, _, chat := newTestDeps(t)

	_, err := Summarize(context.Background(), deps, SummarizeInput{Text: "a b c", MaxContext: -5})
	require.True(t, errors.Is(err, errors.ErrInvalidChunkSize))
	require.Zero(t, chat.calls)
}

func TestSummarize_SourceValidation(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	ctx := context.Background()

	_, err := Summarize(ctx, deps, SummarizeInput{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Summarize(ctx, deps, SummarizeInput{Text: "x", URL: "https://example.com/a.pdf"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Summarize(ctx, deps, SummarizeInput{Path: filepath.Join(t.TempDir(), "missing.txt")})
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSummarize_BlankSourceFieldsIgnored(t *testing.T) {
	deps, _, chat := newTestDeps(t)

	out, err := Summarize(context.Background(), deps, SummarizeInput{Path: "  ", URL: "\t", Text: "just a few words"})
	require.NoError(t, err)
	require.True(t, out.Complete)
	require.Equal(t, 1, chat.calls)

	fetched, err := FetchSummary(deps, FetchSummaryInput{ID: out.ID})
	require.NoError(t, err)
	require.Equal(t, "inline", fetched.Source)
}

func TestSummarize_RelativeParentPath(t *testing.T) {
	deps, _, chat := newTestDeps(t)
	root := t.TempDir()
	sub := filepath.Join(root, "work")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "paper.txt"), []byte("one two three"), 0o644))
	t.Chdir(sub)

	out, err := Summarize(context.Background(), deps, SummarizeInput{Path: "../paper.txt"})
	require.NoError(t, err)
	require.True(t, out.Complete)
	require.Equal(t, 1, chat.calls)
}

func TestSummarize_MarkdownFile(t *testing.T) {
	deps, _, chat := newTestDeps(t)
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes\n\nShort *markdown* document.\n"), 0o644))

	out, err := Summarize(context.Background(), deps, SummarizeInput{Path: path})
	require.NoError(t, err)
	require.True(t, out.Complete)
	require.Equal(t, 1, out.ChunksTotal)
	require.Equal(t, 1, chat.calls)

	fetched, err := FetchSummary(deps, FetchSummaryInput{ID: out.ID})
	require.NoError(t, err)
	require.Equal(t, "markdown", fetched.Kind)
	require.Equal(t, path, fetched.Source)
	require.Equal(t, 4, fetched.Words)
}

func TestSummarize_EmptyFile(t *testing.T) {
	deps, _, chat := newTestDeps(t)
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte(" \n\t\n"), 0o644))

	out, err := Summarize(context.Background(), deps, SummarizeInput{Path: path})
	require.NoError(t, err)
	require.True(t, out.Complete)
	require.Zero(t, out.ChunksTotal)
	require.Empty(t, out.Summary)
	require.Zero(t, chat.calls)
}

func TestFetchListDelete(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	ctx := context.Background()

	var ids []string
	for i := 1; i <= 3; i++ {
		out, err := Summarize(ctx, deps, SummarizeInput{Text: words(i * 5), MaxContext: 5})
		require.NoError(t, err)
		ids = append(ids, out.ID)
	}

	list, err := ListSummaries(deps, ListSummariesInput{Limit: 2})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	require.True(t, list.Pagination.HasMore)
	require.Equal(t, 3, list.Pagination.Total)
	require.Equal(t, "updated_at_desc", list.Sort)

	noText := false
	fetched, err := FetchSummary(deps, FetchSummaryInput{ID: ids[0], IncludeText: &noText})
	require.NoError(t, err)
	require.Nil(t, fetched.Summary)
	require.Positive(t, fetched.SummaryChars)

	withText, err := FetchSummary(deps, FetchSummaryInput{ID: ids[0]})
	require.NoError(t, err)
	require.NotNil(t, withText.Summary)

	del, err := DeleteSummary(deps, DeleteSummaryInput{ID: ids[0]})
	require.NoError(t, err)
	require.True(t, del.Deleted)

	_, err = FetchSummary(deps, FetchSummaryInput{ID: ids[0]})
	require.True(t, errors.Is(err, errors.ErrNotFound))
	_, err = DeleteSummary(deps, DeleteSummaryInput{ID: ids[0]})
	require.True(t, errors.Is(err, errors.ErrNotFound))
	_, err = FetchSummary(deps, FetchSummaryInput{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestListSummaries_Bounds(t *testing.T) {
	deps, _, _ := newTestDeps(t)

	out, err := ListSummaries(deps, ListSummariesInput{Limit: 1000, Offset: -3})
	require.NoError(t, err)
	require.Equal(t, MaxListLimit, out.Pagination.Limit)
	require.Zero(t, out.Pagination.Offset)
	require.NotNil(t, out.Items)
	require.Empty(t, out.Items)
}

func TestOps_RequireDB(t *testing.T) {
	deps := &Deps{}

	_, err := ListSummaries(deps, ListSummariesInput{})
	require.True(t, errors.Is(err, errors.ErrInternal))
	_, err = Summarize(context.Background(), deps, SummarizeInput{Text: "a"})
	require.True(t, errors.Is(err, errors.ErrInternal))
}
