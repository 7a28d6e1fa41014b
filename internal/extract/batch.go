package extract

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/fingerprint"
)

// DefaultWorkers bounds concurrent extractions when no positive limit is given.
const DefaultWorkers = 25

// ItemResult is the outcome for a single batch line.
type ItemResult struct {
	Text        string `json:"text"`
	Fingerprint string `json:"fingerprint"`
	Cached      bool   `json:"cached"`
	Dimension   int    `json:"dimension,omitempty"`
	Err         error  `json:"-"`
}

// BatchResult holds per-item results in input order.
type BatchResult struct {
	Items     []ItemResult `json:"items"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// Progress is called after each item completes with the number done so far.
// It may be called from several goroutines.
type Progress func(done, total int, item ItemResult)

// RunBatch extracts every line with at most n concurrent Get calls. A failing
// item is recorded and never aborts the others. Cancelling ctx fails the items
// that have not started yet. At most n worker goroutines exist at a time.
func (e *Extractor) RunBatch(ctx context.Context, lines []string, n int, progress Progress) *BatchResult {
	if n <= 0 {
		n = DefaultWorkers
	}
	res := &BatchResult{Items: make([]ItemResult, len(lines))}
	if len(lines) == 0 {
		return res
	}

	sem := semaphore.NewWeighted(int64(n))
	var (
		wg   sync.WaitGroup
		done atomic.Int64
	)
	finish := func(i int, item ItemResult) {
		res.Items[i] = item
		if progress != nil {
			progress(int(done.Add(1)), len(lines), item)
		}
	}
	for i, text := range lines {
		err := ctx.Err()
		if err == nil {
			err = sem.Acquire(ctx, 1)
		}
		if err != nil {
			finish(i, ItemResult{
				Text:        text,
				Fingerprint: fingerprint.Of(text),
				Err:         errors.NewInternal(fmt.Errorf("acquire worker: %w", err)),
			})
			continue
		}
		wg.Go(func() {
			defer sem.Release(1)
			finish(i, e.runItem(ctx, text))
		})
	}
	wg.Wait()

	for _, item := range res.Items {
		if item.Err != nil {
			res.Failed++
			e.log.Warn("embedding failed", "fingerprint", item.Fingerprint, "error", item.Err)
			continue
		}
		res.Succeeded++
	}
	e.log.Info("batch finished", "items", len(lines), "succeeded", res.Succeeded, "failed", res.Failed)
	return res
}

func (e *Extractor) runItem(ctx context.Context, text string) (item ItemResult) {
	item = ItemResult{Text: text, Fingerprint: fingerprint.Of(text)}
	defer func() {
		if r := recover(); r != nil {
			item.Err = errors.NewInternal(fmt.Errorf("panic: %v", r))
		}
	}()

	vec, cached, err := e.Lookup(ctx, text)
	if err != nil {
		item.Err = err
		return item
	}
	item.Cached = cached
	item.Dimension = len(vec)
	return item
}

// ReadLines reads a batch file: one text per line. See Normalize.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	return Normalize(lines), nil
}

// Normalize trims texts, drops empty ones and removes duplicates. The result
// is sorted.
func Normalize(texts []string) []string {
	seen := make(map[string]struct{}, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
