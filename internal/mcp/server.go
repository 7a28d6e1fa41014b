package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/akademi4eg/aka-assistant/internal/logger"
	"github.com/akademi4eg/aka-assistant/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"embedding_get": {
		def:     embeddingGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEmbeddingGet },
	},
	"embedding_batch": {
		def:     embeddingBatchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEmbeddingBatch },
	},
	"cache_stats": {
		def:     cacheStatsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCacheStats },
	},
	"summary_create": {
		def:     summaryCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSummaryCreate },
	},
	"summary_fetch": {
		def:     summaryFetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSummaryFetch },
	},
	"summary_list": {
		def:     summaryListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSummaryList },
	},
	"summary_delete": {
		def:     summaryDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSummaryDelete },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the aka tools registered.
// Tools listed in the config's DisabledTools are excluded from registration.
// Handlers see log through their context; nil discards logs.
func NewServer(deps *ops.Deps, version string, log logger.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"aka",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps)
	if log == nil {
		log = logger.Nop()
	}

	disabled := make(map[string]bool)
	if deps.Config != nil {
		for _, name := range deps.Config.DisabledTools {
			disabled[name] = true
		}
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, withLogger(log.With("tool", name), entry.handler(h)))
	}

	return s
}

func withLogger(log logger.Logger, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return next(logger.WithContext(ctx, log), req)
	}
}

// Run starts the MCP server using stdio transport.
func Run(deps *ops.Deps, version string, log logger.Logger) error {
	s := NewServer(deps, version, log)
	return server.ServeStdio(s)
}
