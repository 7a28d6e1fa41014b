package mcp

import "github.com/mark3labs/mcp-go/mcp"

var embeddingGetToolDef = mcp.NewTool("embedding_get",
	mcp.WithDescription("Return the embedding of a text. Served from the on-disk cache when present, otherwise computed and cached."),
	mcp.WithString("text", mcp.Required(), mcp.Description("Text to embed. Its SHA-256 fingerprint is the cache key.")),
	mcp.WithString("model", mcp.Description("Embedding model (default: config embedding_model)")),
	mcp.WithBoolean("include_vector", mcp.Description("Include the vector in the response (default: false)")),
)

var embeddingBatchToolDef = mcp.NewTool("embedding_batch",
	mcp.WithDescription("Embed many texts with a bounded worker pool. Entries are trimmed and de-duplicated; failed items are reported per item."),
	mcp.WithArray("texts", mcp.Required(),
		mcp.Description("Texts to embed (max 10000)"),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithString("model", mcp.Description("Embedding model (default: config embedding_model)")),
	mcp.WithNumber("workers", mcp.Description("Concurrent embedding calls (default: config nthreads)")),
)

var cacheStatsToolDef = mcp.NewTool("cache_stats",
	mcp.WithDescription("Count the entries and bytes in the embedding cache."),
)

var summaryCreateToolDef = mcp.NewTool("summary_create",
	mcp.WithDescription("Summarize a document chunk by chunk. Progress is checkpointed, so calling again with the same document resumes where it stopped. Provide exactly one of path, url or text."),
	mcp.WithString("path", mcp.Description("Local .txt, .md or .pdf file")),
	mcp.WithString("url", mcp.Description("PDF URL; downloaded once into the docs directory")),
	mcp.WithString("text", mcp.Description("Inline document text")),
	mcp.WithString("model", mcp.Description("Chat model (default: config chat_model)")),
	mcp.WithNumber("max_context", mcp.Description("Words per chunk (default: config max_context)")),
)

var summaryFetchToolDef = mcp.NewTool("summary_fetch",
	mcp.WithDescription("Fetch a stored summary by ID."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Summary ID")),
	mcp.WithBoolean("include_text", mcp.Description("Include the summary text (default: true)")),
)

var summaryListToolDef = mcp.NewTool("summary_list",
	mcp.WithDescription("List stored summaries, most recently updated first. Summary text is omitted."),
	mcp.WithNumber("limit", mcp.Description("Max items (default: 20, max: 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip (default: 0)")),
)

var summaryDeleteToolDef = mcp.NewTool("summary_delete",
	mcp.WithDescription("Permanently delete a stored summary."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Summary ID")),
)
