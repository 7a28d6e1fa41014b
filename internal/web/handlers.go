package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/ops"
)

// Handlers contains HTTP route handlers for the summary browser.
type Handlers struct {
	deps     *ops.Deps
	renderer *Renderer
}

// HandleList handles GET /summaries: summaries, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListSummaries(h.deps, ops.ListSummariesInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Summaries",
			Version: h.renderer.version,
			Nav:     "summaries",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// HandleDetail handles GET /summaries/{id}: a single summary.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("summary ID is required"))
		return
	}

	summary, err := ops.FetchSummary(h.deps, ops.FetchSummaryInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	text := ""
	if summary.Summary != nil {
		text = *summary.Summary
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   displayName(summary.Source, summary.ID),
			Version: h.renderer.version,
			Nav:     "summaries",
		},
		Summary:      summary,
		RenderedHTML: renderMarkdown(text),
		DisplayName:  displayName(summary.Source, summary.ID),
	})
}

// HandleDelete handles DELETE /summaries/{id} and the form POST fallback.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("summary ID is required"))
		return
	}

	result, err := ops.DeleteSummary(h.deps, ops.DeleteSummaryInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// HTMX request: redirect via HX-Redirect header
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/summaries")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/summaries", http.StatusSeeOther)
}

// HandleCache handles GET /cache: embedding cache statistics.
func (h *Handlers) HandleCache(w http.ResponseWriter, r *http.Request) {
	stats, err := ops.CacheStats(h.deps.Store)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, stats)
		return
	}

	h.renderer.renderPage(w, r, "cache", CachePageData{
		PageData: PageData{
			Title:   "Embedding cache",
			Version: h.renderer.version,
			Nav:     "cache",
		},
		Stats: stats,
	})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// displayName returns the base name of a summary's source, or a truncated ID.
func displayName(source, id string) string {
	if source != "" && source != "inline" {
		if i := strings.LastIndexAny(source, `/\`); i >= 0 && i < len(source)-1 {
			return source[i+1:]
		}
		return source
	}
	if len(id) > 10 {
		return id[:10] + "..."
	}
	return id
}
