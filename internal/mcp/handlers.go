package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/ops"
)

// MaxBatchTexts caps embedding_batch so one tool call stays a bounded
// response. The CLI batch path has no cap.
const MaxBatchTexts = 10000

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps *ops.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps *ops.Deps) *Handlers {
	return &Handlers{deps: deps}
}

// Request types for each tool

// EmbeddingGetRequest represents the arguments for embedding_get.
type EmbeddingGetRequest struct {
	Text          string `json:"text"`
	Model         string `json:"model,omitempty"`
	IncludeVector bool   `json:"include_vector,omitempty"`
}

// EmbeddingBatchRequest represents the arguments for embedding_batch.
type EmbeddingBatchRequest struct {
	Texts   []string `json:"texts"`
	Model   string   `json:"model,omitempty"`
	Workers int      `json:"workers,omitempty"`
}

// SummaryCreateRequest represents the arguments for summary_create.
type SummaryCreateRequest struct {
	Path       string `json:"path,omitempty"`
	URL        string `json:"url,omitempty"`
	Text       string `json:"text,omitempty"`
	Model      string `json:"model,omitempty"`
	MaxContext int    `json:"max_context,omitempty"`
}

// SummaryFetchRequest represents the arguments for summary_fetch.
type SummaryFetchRequest struct {
	ID          string `json:"id"`
	IncludeText *bool  `json:"include_text,omitempty"`
}

// SummaryListRequest represents the arguments for summary_list.
type SummaryListRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// SummaryDeleteRequest represents the arguments for summary_delete.
type SummaryDeleteRequest struct {
	ID string `json:"id"`
}

// Handler implementations

// HandleEmbeddingGet handles the embedding_get tool call.
func (h *Handlers) HandleEmbeddingGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EmbeddingGetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Embed(ctx, h.deps, ops.EmbedInput{
		Text:          input.Text,
		Model:         input.Model,
		IncludeVector: input.IncludeVector,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleEmbeddingBatch handles the embedding_batch tool call.
func (h *Handlers) HandleEmbeddingBatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EmbeddingBatchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if len(input.Texts) > MaxBatchTexts {
		return errorResult(errors.NewInvalidRequest(fmt.Sprintf("too many texts: %d (max %d)", len(input.Texts), MaxBatchTexts))), nil
	}

	result, err := ops.EmbedBatch(ctx, h.deps, ops.EmbedBatchInput{
		Texts:   input.Texts,
		Model:   input.Model,
		Workers: input.Workers,
	}, nil)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCacheStats handles the cache_stats tool call.
func (h *Handlers) HandleCacheStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.CacheStats(h.deps.Store)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSummaryCreate handles the summary_create tool call.
func (h *Handlers) HandleSummaryCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SummaryCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := ops.RejectTraversal(input.Path); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Summarize(ctx, h.deps, ops.SummarizeInput{
		Path:       input.Path,
		URL:        input.URL,
		Text:       input.Text,
		Model:      input.Model,
		MaxContext: input.MaxContext,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSummaryFetch handles the summary_fetch tool call.
func (h *Handlers) HandleSummaryFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SummaryFetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.FetchSummary(h.deps, ops.FetchSummaryInput{
		ID:          input.ID,
		IncludeText: input.IncludeText,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSummaryList handles the summary_list tool call.
func (h *Handlers) HandleSummaryList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SummaryListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListSummaries(h.deps, ops.ListSummariesInput{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSummaryDelete handles the summary_delete tool call.
func (h *Handlers) HandleSummaryDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SummaryDeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DeleteSummary(h.deps, ops.DeleteSummaryInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if aErr, ok := errors.As(err); ok {
		msg := aErr.Message
		if err != error(aErr) {
			// Keep wrapper context such as "items[2]: ..."
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    aErr.Code,
			"message": msg,
			"status":  aErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if aErr.Code != errors.ErrInternal && aErr.Details != nil {
			errorObj["details"] = aErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
