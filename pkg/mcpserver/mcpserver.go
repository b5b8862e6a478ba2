// Package mcpserver exposes the document store to MCP clients over the
// streamable HTTP transport. Conversational agents use the tools to
// search indexed documents and browse uploads without going through the
// REST API.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fundus-dev/fundus/pkg/api"
	"github.com/fundus-dev/fundus/pkg/search"
	"github.com/fundus-dev/fundus/pkg/storage"
)

// Config wires the MCP server.
type Config struct {
	Engine *search.Engine
	Store  storage.Store

	// Version is reported to clients during initialization.
	Version string
}

// SearchInput is the argument schema of the search_documents tool.
type SearchInput struct {
	Query string `json:"query" jsonschema_description:"Text to search the indexed documents for"`
	Limit int    `json:"limit,omitempty" jsonschema_description:"Maximum number of results, default 10"`
}

// ListUploadsInput is the argument schema of the list_uploads tool.
type ListUploadsInput struct {
	Limit  int `json:"limit,omitempty" jsonschema_description:"Maximum number of uploads to return, default 20"`
	Offset int `json:"offset,omitempty" jsonschema_description:"Number of uploads to skip"`
}

// New creates an MCP server with the fundus retrieval tools registered.
func New(cfg Config) *mcp.Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	server := mcp.NewServer(
		&mcp.Implementation{Name: "fundus", Version: version},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Searches the indexed documents and returns ranked snippets with scores",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, struct{}, error) {
		resp, err := cfg.Engine.Search(ctx, api.SearchRequest{Text: input.Query, Limit: input.Limit})
		if err != nil {
			return nil, struct{}{}, fmt.Errorf("searching documents: %w", err)
		}
		return jsonResult(resp)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_uploads",
		Description: "Lists stored document uploads, newest first, with their indexing status",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input ListUploadsInput) (*mcp.CallToolResult, struct{}, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = 20
		}
		items, hasMore, err := cfg.Store.ListUploads(ctx, limit, input.Offset)
		if err != nil {
			return nil, struct{}{}, fmt.Errorf("listing uploads: %w", err)
		}
		next := -1
		if hasMore {
			next = input.Offset + len(items)
		}
		return jsonResult(api.UploadList{Items: items, NextOffset: next})
	})

	return server
}

// Handler serves the MCP server via streamable HTTP. Mount it at the
// desired path, typically /mcp.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, nil)
}

// jsonResult marshals a value as the tool's text content.
func jsonResult(v any) (*mcp.CallToolResult, struct{}, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, struct{}{}, fmt.Errorf("encoding tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, struct{}{}, nil
}
