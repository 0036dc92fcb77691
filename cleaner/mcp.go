package cleaner

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/feedclean/kit"
	"github.com/hazyhaar/feedclean/settings"
)

// RegisterMCP registers the stateless feedclean tools on srv.
func RegisterMCP(srv *mcp.Server, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	registerScanTool(srv, logger)
	registerRestoreTool(srv, logger)
	registerDefaultsTool(srv, logger)
}

// RegisterMCP registers the stateless tools plus the ones bound to this
// running Cleaner: its last report and a reload trigger.
func (c *Cleaner) RegisterMCP(srv *mcp.Server) {
	RegisterMCP(srv, c.cfg.Logger)
	c.registerReportTool(srv)
	c.registerReloadTool(srv)
}

// --- scan ---

type scanReq struct {
	HTML        string           `json:"html"`
	Config      settings.Partial `json:"config"`
	IncludeHTML bool             `json:"include_html"`
}

// toolTimeout bounds a single tool call.
const toolTimeout = 30 * time.Second

func toolMiddleware(logger *slog.Logger, name string) kit.Middleware {
	return kit.Chain(kit.Logging(logger, name), kit.Timeout(toolTimeout))
}

type scanResp struct {
	Report Report `json:"report"`
	HTML   string `json:"html,omitempty"`
}

func registerScanTool(srv *mcp.Server, logger *slog.Logger) {
	tool := &mcp.Tool{
		Name:        "feedclean_scan",
		Description: "Run one cleaning pass over an HTML feed page and report which reels, stories, suggested posts and blacklisted posts would be hidden.",
		InputSchema: kit.InputSchema(map[string]any{
			"html": map[string]any{"type": "string", "description": "Full page markup"},
			"config": map[string]any{
				"type":        "object",
				"description": "Overrides over the default configuration (hideReels, hideStories, hideSuggested, enableBlacklist, blacklistWords)",
			},
			"include_html": map[string]any{"type": "boolean", "description": "Return the cleaned markup too"},
		}, []string{"html"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*scanReq)
		if strings.TrimSpace(r.HTML) == "" {
			return nil, errors.New("html is required")
		}
		rep, host, err := Scan(ctx, strings.NewReader(r.HTML), settings.Defaults().Apply(r.Config), logger)
		if err != nil {
			return nil, err
		}
		resp := scanResp{Report: rep}
		if r.IncludeHTML {
			var b strings.Builder
			if err := host.Render(&b); err != nil {
				return nil, err
			}
			resp.HTML = b.String()
		}
		return resp, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r scanReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, toolMiddleware(logger, tool.Name)(endpoint), decode)
}

// --- restore ---

type restoreReq struct {
	HTML string   `json:"html"`
	Keys []string `json:"keys"`
}

type restoreResp struct {
	Restored int    `json:"restored"`
	HTML     string `json:"html"`
}

func registerRestoreTool(srv *mcp.Server, logger *slog.Logger) {
	tool := &mcp.Tool{
		Name:        "feedclean_restore",
		Description: "Make previously hidden nodes of a cleaned page visible again, by the keys listed in a scan report.",
		InputSchema: kit.InputSchema(map[string]any{
			"html": map[string]any{"type": "string", "description": "Cleaned page markup"},
			"keys": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Entry keys from a feedclean_scan report",
			},
		}, []string{"html", "keys"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*restoreReq)
		if strings.TrimSpace(r.HTML) == "" {
			return nil, errors.New("html is required")
		}
		host, err := LoadStaticHost(strings.NewReader(r.HTML))
		if err != nil {
			return nil, err
		}
		n, err := host.Restore(ctx, r.Keys)
		if err != nil {
			return nil, err
		}
		var b strings.Builder
		if err := host.Render(&b); err != nil {
			return nil, err
		}
		return restoreResp{Restored: n, HTML: b.String()}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r restoreReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, toolMiddleware(logger, tool.Name)(endpoint), decode)
}

// --- defaults ---

func registerDefaultsTool(srv *mcp.Server, logger *slog.Logger) {
	tool := &mcp.Tool{
		Name:        "feedclean_defaults",
		Description: "Return the default feedclean configuration.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}
	endpoint := func(context.Context, any) (any, error) {
		return settings.Defaults(), nil
	}
	decode := func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	}
	kit.RegisterMCPTool(srv, tool, toolMiddleware(logger, tool.Name)(endpoint), decode)
}

// --- last report ---

func (c *Cleaner) registerReportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "feedclean_last_report",
		Description: "Return the report of the most recent pass on the live page.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}
	endpoint := func(context.Context, any) (any, error) {
		rep, ok := c.LastReport()
		if !ok {
			return nil, errors.New("no pass has completed yet")
		}
		return rep, nil
	}
	decode := func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	}
	kit.RegisterMCPTool(srv, tool, toolMiddleware(c.cfg.Logger, tool.Name)(endpoint), decode)
}

// --- reload ---

func (c *Cleaner) registerReloadTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "feedclean_reload",
		Description: "Reload the settings and re-run a pass on the live page.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}
	endpoint := func(context.Context, any) (any, error) {
		c.NotifyConfigurationChanged()
		return map[string]string{"status": "scheduled"}, nil
	}
	decode := func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	}
	kit.RegisterMCPTool(srv, tool, toolMiddleware(c.cfg.Logger, tool.Name)(endpoint), decode)
}
