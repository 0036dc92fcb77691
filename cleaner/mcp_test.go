package cleaner

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/feedclean/classify"
	"github.com/hazyhaar/feedclean/settings"
)

var testMCPImpl = &mcp.Implementation{Name: "feedclean-test", Version: "0.1.0"}

func mcpSession(t *testing.T, register func(*mcp.Server)) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	register(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCall(t *testing.T, session *mcp.ClientSession, name string, args any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return result
}

func mcpText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result.IsError {
		t.Fatalf("tool error: %s", toolErrorText(result))
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	return tc.Text
}

func toolErrorText(result *mcp.CallToolResult) string {
	if len(result.Content) > 0 {
		if tc, ok := result.Content[0].(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return "(no content)"
}

func stateless(srv *mcp.Server) { RegisterMCP(srv, quiet) }

func TestMCP_Defaults(t *testing.T) {
	session := mcpSession(t, stateless)
	text := mcpText(t, mcpCall(t, session, "feedclean_defaults", map[string]any{}))

	var cfg settings.Configuration
	if err := json.Unmarshal([]byte(text), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !cfg.HideReels || !cfg.HideStories || !cfg.HideSuggested || cfg.EnableBlacklist {
		t.Fatalf("defaults: %+v", cfg)
	}
}

func TestMCP_Scan(t *testing.T) {
	page, err := os.ReadFile("testdata/feed.html")
	if err != nil {
		t.Fatal(err)
	}
	session := mcpSession(t, stateless)

	text := mcpText(t, mcpCall(t, session, "feedclean_scan", map[string]any{
		"html":         string(page),
		"config":       map[string]any{"enableBlacklist": true, "blacklistWords": []string{"crypto"}, "hideReels": false},
		"include_html": true,
	}))

	var resp scanResp
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Report.Counts[classify.Reels] != 0 || resp.Report.Counts[classify.Blacklist] != 1 {
		t.Fatalf("counts: %+v", resp.Report.Counts)
	}
	if resp.Report.Total() != 3 {
		t.Fatalf("total: got %d, want 3", resp.Report.Total())
	}
	if !strings.Contains(resp.HTML, `id="post-spam" role="article" style="display: none;"`) {
		t.Errorf("cleaned html missing suppression")
	}
}

func TestMCP_RestoreUndoesScan(t *testing.T) {
	page, err := os.ReadFile("testdata/feed.html")
	if err != nil {
		t.Fatal(err)
	}
	session := mcpSession(t, stateless)

	var scanned scanResp
	text := mcpText(t, mcpCall(t, session, "feedclean_scan", map[string]any{
		"html":         string(page),
		"include_html": true,
	}))
	if err := json.Unmarshal([]byte(text), &scanned); err != nil {
		t.Fatalf("unmarshal scan: %v", err)
	}
	keys := make([]string, 0, len(scanned.Report.Entries))
	for _, e := range scanned.Report.Entries {
		keys = append(keys, e.Key)
	}

	var restored restoreResp
	text = mcpText(t, mcpCall(t, session, "feedclean_restore", map[string]any{
		"html": scanned.HTML,
		"keys": keys,
	}))
	if err := json.Unmarshal([]byte(text), &restored); err != nil {
		t.Fatalf("unmarshal restore: %v", err)
	}
	if restored.Restored != len(keys) {
		t.Fatalf("restored: got %d, want %d", restored.Restored, len(keys))
	}
	if strings.Contains(restored.HTML, "display: none") {
		t.Error("restored page still hides nodes")
	}
}

func TestMCP_ScanRequiresHTML(t *testing.T) {
	session := mcpSession(t, stateless)
	res := mcpCall(t, session, "feedclean_scan", map[string]any{"html": "  "})
	if !res.IsError {
		t.Fatal("expected tool error for empty html")
	}
	if msg := toolErrorText(res); !strings.Contains(msg, "html is required") {
		t.Fatalf("error text: %q", msg)
	}
}

func TestMCP_LiveTools(t *testing.T) {
	h := newFakeHost(t)
	c := New(Config{Host: h, Logger: quiet})
	session := mcpSession(t, c.RegisterMCP)

	if res := mcpCall(t, session, "feedclean_last_report", map[string]any{}); !res.IsError {
		t.Fatal("expected error before any pass")
	}
	if _, err := c.RunPass(context.Background()); err != nil {
		t.Fatal(err)
	}
	text := mcpText(t, mcpCall(t, session, "feedclean_last_report", map[string]any{}))
	var rep Report
	if err := json.Unmarshal([]byte(text), &rep); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rep.Total() != 3 {
		t.Fatalf("last report total: got %d, want 3", rep.Total())
	}

	text = mcpText(t, mcpCall(t, session, "feedclean_reload", map[string]any{}))
	if !strings.Contains(text, "scheduled") {
		t.Fatalf("reload: %s", text)
	}
}
