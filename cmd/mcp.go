package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/aarchijain1/custom-rag-engine/internal/store"
	"github.com/aarchijain1/custom-rag-engine/internal/transport"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the document tools to MCP hosts over stdio",
	Long: `Runs an MCP stdio server bridging to the document tool server.
The tool server is auto-started if it is not already running.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client := newToolClient(cfg, logger)

	s := mcpserver.NewMCPServer("rag-engine", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(searchDocumentsTool(), makeSearchHandler(client))
	s.AddTool(addDocumentTool(), makeAddDocumentHandler(client))
	s.AddTool(deleteDocumentTool(), makeDeleteHandler(client))
	s.AddTool(clearStoreTool(), makeClearHandler(client))
	s.AddTool(storeStatsTool(), makeStatsHandler(client))
	s.AddTool(loadDirectoryTool(), makeLoadDirectoryHandler(client))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchDocumentsTool() mcp.Tool {
	return mcp.NewTool("search_documents",
		mcp.WithDescription("Semantically search the indexed documents. Returns the most similar chunks with their metadata and distance."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query to search for"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of chunks to return (default 3)"),
		),
	)
}

func addDocumentTool() mcp.Tool {
	return mcp.NewTool("add_document",
		mcp.WithDescription("Chunk, embed, and index a document so it becomes searchable."),
		mcp.WithString("doc_id",
			mcp.Required(),
			mcp.Description("Stable identifier for the document"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Full document text"),
		),
	)
}

func deleteDocumentTool() mcp.Tool {
	return mcp.NewTool("delete_document",
		mcp.WithDescription("Remove all chunks of a document from the index."),
		mcp.WithString("doc_id",
			mcp.Required(),
			mcp.Description("Identifier of the document to remove"),
		),
	)
}

func clearStoreTool() mcp.Tool {
	return mcp.NewTool("clear_vector_store",
		mcp.WithDescription("Delete every indexed chunk. This cannot be undone."),
	)
}

func storeStatsTool() mcp.Tool {
	return mcp.NewTool("get_vector_store_stats",
		mcp.WithDescription("Report how many chunks and documents are indexed, and with which embedding model."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func loadDirectoryTool() mcp.Tool {
	return mcp.NewTool("load_directory",
		mcp.WithDescription("Load and index every supported file under a directory on the server's host."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Directory to load"),
		),
	)
}

// --- Handler factories ---

func makeSearchHandler(client *transport.Client) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("k", 3)

		results, err := client.Search(ctx, query, k)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatSearchResults(query, results)), nil
	}
}

func makeAddDocumentHandler(client *transport.Client) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docID := req.GetString("doc_id", "")
		text := req.GetString("text", "")
		if docID == "" {
			return mcp.NewToolResultError("doc_id is required"), nil
		}

		added, err := client.AddDocument(ctx, docID, text, nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("add failed: %v", err)), nil
		}
		if added.ChunksCreated == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("Document %q was empty; nothing indexed.", docID)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Indexed %q as %d chunks.", docID, added.ChunksCreated)), nil
	}
}

func makeDeleteHandler(client *transport.Client) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docID := req.GetString("doc_id", "")
		if docID == "" {
			return mcp.NewToolResultError("doc_id is required"), nil
		}
		deleted, err := client.DeleteDocument(ctx, docID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
		}
		if !deleted {
			return mcp.NewToolResultText(fmt.Sprintf("No document %q in the index.", docID)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Deleted %q from the index.", docID)), nil
	}
}

func makeClearHandler(client *transport.Client) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if _, err := client.ClearAll(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("clear failed: %v", err)), nil
		}
		return mcp.NewToolResultText("Vector store cleared."), nil
	}
}

func makeStatsHandler(client *transport.Client) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := client.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
		}
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode stats: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func makeLoadDirectoryHandler(client *transport.Client) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", "")
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}

		docs, loadErrs, err := client.LoadDirectory(ctx, path, true)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
		}
		batch, err := client.AddDocuments(ctx, docs)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("index failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Indexed %d documents (%d chunks) from %s.\n", batch.Successful, batch.TotalChunks, path)
		if batch.Failed > 0 {
			fmt.Fprintf(&sb, "Failed documents: %s\n", strings.Join(batch.FailedIDs, ", "))
		}
		for _, e := range loadErrs {
			fmt.Fprintf(&sb, "Load error: %s\n", e)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, results []store.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d chunks)\n\n", query, len(results))
	for i, r := range results {
		docID, _ := r.Metadata["doc_id"].(string)
		fmt.Fprintf(&sb, "### Result %d: `%s` (distance %.4f)\n\n", i+1, docID, r.Distance)
		fmt.Fprintf(&sb, "%s\n\n", r.Content)
	}
	return sb.String()
}
