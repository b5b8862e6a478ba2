package mcpserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fundus-dev/fundus/pkg/api"
	"github.com/fundus-dev/fundus/pkg/embedding"
	"github.com/fundus-dev/fundus/pkg/index"
	"github.com/fundus-dev/fundus/pkg/search"
	"github.com/fundus-dev/fundus/pkg/storage/memory"
)

// downIndex simulates an unreachable vector backend so the engine serves
// keyword mode from the store alone.
type downIndex struct{}

func (downIndex) EnsureCollection(context.Context, string, int) error { return index.ErrUnavailable }
func (downIndex) Upsert(context.Context, string, []index.Point) error { return index.ErrUnavailable }
func (downIndex) Query(context.Context, string, []float32, int, float32) ([]index.Match, error) {
	return nil, index.ErrUnavailable
}
func (downIndex) DeleteUpload(context.Context, string, string) error { return index.ErrUnavailable }
func (downIndex) Healthy(context.Context) error                      { return index.ErrUnavailable }

var _ index.Index = downIndex{}

func setupSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	up := &api.Upload{ID: "up_mcp1", Filename: "runbook.txt", SizeBytes: 42, CreatedAt: time.Now().UTC()}
	if err := store.SaveUpload(ctx, up); err != nil {
		t.Fatalf("saving upload: %v", err)
	}
	if err := store.ReplaceChunks(ctx, up.ID, []api.Chunk{
		{UploadID: up.ID, ChunkIndex: 0, TotalChunks: 1, ChunkType: api.ChunkTypeContent,
			Text: "database failover runbook with recovery steps"},
	}); err != nil {
		t.Fatalf("replacing chunks: %v", err)
	}

	provider, err := embedding.NewLocal(embedding.LocalConfig{Dimensions: 8})
	if err != nil {
		t.Fatalf("creating provider: %v", err)
	}

	engine := search.New(search.Config{
		Store:              store,
		Index:              downIndex{},
		Provider:           provider,
		FilenameCollection: "fn",
		ContentCollection:  "ct",
		MinScore:           0.01,
	})

	server := New(Config{Engine: engine, Store: store, Version: "test"})

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	go func() {
		_ = server.Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connecting client: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestServer_ListsTools(t *testing.T) {
	session := setupSession(t)

	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}

	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"search_documents", "list_uploads"} {
		if !names[want] {
			t.Errorf("tool %q not registered, got %v", want, names)
		}
	}
}

func TestServer_SearchDocuments(t *testing.T) {
	session := setupSession(t)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search_documents",
		Arguments: map[string]any{"query": "failover runbook"},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool returned error: %+v", res.Content)
	}

	text := toolText(t, res)
	if !strings.Contains(text, "up_mcp1") {
		t.Errorf("result missing upload ID: %s", text)
	}
	if !strings.Contains(text, `"mode": "keyword"`) {
		t.Errorf("result missing search mode: %s", text)
	}
}

func TestServer_ListUploads(t *testing.T) {
	session := setupSession(t)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "list_uploads",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool returned error: %+v", res.Content)
	}

	text := toolText(t, res)
	if !strings.Contains(text, "runbook.txt") {
		t.Errorf("listing missing upload: %s", text)
	}
	if !strings.Contains(text, `"next_offset": -1`) {
		t.Errorf("listing missing pagination marker: %s", text)
	}
}

func toolText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("tool returned no content")
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}
