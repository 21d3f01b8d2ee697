// CLAUDE:SUMMARY MCP agent surface over the clip store: search, get, recent, stats and pin tools, served on stdio without starting capture.
package clipkeeper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/clipkeeper/internal/store"
)

// Clip content shown to agents when the clip is sensitive and the
// caller did not opt in.
const sensitivePlaceholder = "[sensitive content hidden]"

// endpoint is the uniform shape the tools are implemented against.
type endpoint func(ctx context.Context, req any) (any, error)

type mcpTools struct {
	store  *store.Store
	logger *slog.Logger
}

// RegisterMCP registers the clipkeeper tools on an MCP server.
func RegisterMCP(srv *mcp.Server, st *store.Store, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &mcpTools{store: st, logger: logger}
	t.registerSearch(srv)
	t.registerGet(srv)
	t.registerRecent(srv)
	t.registerStats(srv)
	t.registerSetPinned(srv)
}

// RunMCPStdio serves the tools over stdio until ctx is canceled. Only
// the store is touched: no capture monitor, no instance lock, so MCP
// clients work while a daemon runs on the same data dir.
func RunMCPStdio(ctx context.Context, st *store.Store, logger *slog.Logger) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: "clipkeeper", Version: "1.0.0"}, nil)
	RegisterMCP(srv, st, logger)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

// registerTool binds an endpoint as an MCP tool. Tool failures are
// reported through the result, never as protocol errors.
func registerTool(srv *mcp.Server, tool *mcp.Tool, ep endpoint, decode func(*mcp.CallToolRequest) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		decoded, err := decode(req)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}

		resp, err := ep(ctx, decoded)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func redactClip(c store.Clip, includeSensitive bool) store.Clip {
	if c.Sensitive && !includeSensitive {
		c.Content = sensitivePlaceholder
	}
	return c
}

func redactClips(clips []store.Clip, includeSensitive bool) []store.Clip {
	out := make([]store.Clip, len(clips))
	for i, c := range clips {
		out[i] = redactClip(c, includeSensitive)
	}
	return out
}

// --- Tools ---

func (t *mcpTools) registerSearch(srv *mcp.Server) {
	type req struct {
		Query            string `json:"query"`
		Category         string `json:"category"`
		Limit            int    `json:"limit"`
		IncludeSensitive bool   `json:"include_sensitive"`
	}

	tool := &mcp.Tool{
		Name:        "clipkeeper_search",
		Description: "Search the clipboard history by content substring and category",
		InputSchema: inputSchema(map[string]any{
			"query":             map[string]any{"type": "string", "description": "Content substring to match"},
			"category":          map[string]any{"type": "string", "description": "Category filter: text, url, email, phone, code, color, image"},
			"limit":             map[string]any{"type": "integer", "description": "Max results (default 20)"},
			"include_sensitive": map[string]any{"type": "boolean", "description": "Include sensitive clip content verbatim"},
		}, []string{"query"}),
	}

	ep := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		limit := p.Limit
		if limit <= 0 {
			limit = 20
		}
		clips, err := t.store.List(ctx, store.Filter{
			Search:   p.Query,
			Category: p.Category,
			Limit:    limit,
		})
		if err != nil {
			return nil, err
		}
		return redactClips(clips, p.IncludeSensitive), nil
	}

	decode := func(r *mcp.CallToolRequest) (any, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &p, nil
	}

	registerTool(srv, tool, ep, decode)
}

func (t *mcpTools) registerGet(srv *mcp.Server) {
	type req struct {
		ID               int64 `json:"id"`
		IncludeSensitive bool  `json:"include_sensitive"`
	}

	tool := &mcp.Tool{
		Name:        "clipkeeper_get",
		Description: "Fetch one clip by id, including its metadata",
		InputSchema: inputSchema(map[string]any{
			"id":                map[string]any{"type": "integer", "description": "Clip id"},
			"include_sensitive": map[string]any{"type": "boolean", "description": "Include sensitive clip content verbatim"},
		}, []string{"id"}),
	}

	ep := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		c, err := t.store.Get(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return redactClip(c, p.IncludeSensitive), nil
	}

	decode := func(r *mcp.CallToolRequest) (any, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &p, nil
	}

	registerTool(srv, tool, ep, decode)
}

func (t *mcpTools) registerRecent(srv *mcp.Server) {
	type req struct {
		Limit            int  `json:"limit"`
		IncludeSensitive bool `json:"include_sensitive"`
	}

	tool := &mcp.Tool{
		Name:        "clipkeeper_recent",
		Description: "List the most recent clips, pinned first",
		InputSchema: inputSchema(map[string]any{
			"limit":             map[string]any{"type": "integer", "description": "Max results (default 10)"},
			"include_sensitive": map[string]any{"type": "boolean", "description": "Include sensitive clip content verbatim"},
		}, nil),
	}

	ep := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		limit := p.Limit
		if limit <= 0 {
			limit = 10
		}
		clips, err := t.store.List(ctx, store.Filter{Limit: limit})
		if err != nil {
			return nil, err
		}
		return redactClips(clips, p.IncludeSensitive), nil
	}

	decode := func(r *mcp.CallToolRequest) (any, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &p, nil
	}

	registerTool(srv, tool, ep, decode)
}

func (t *mcpTools) registerStats(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "clipkeeper_stats",
		Description: "Aggregate counts for the clipboard history",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	ep := func(ctx context.Context, _ any) (any, error) {
		return t.store.Stats(ctx)
	}

	decode := func(_ *mcp.CallToolRequest) (any, error) {
		return nil, nil
	}

	registerTool(srv, tool, ep, decode)
}

func (t *mcpTools) registerSetPinned(srv *mcp.Server) {
	type req struct {
		ID int64 `json:"id"`
		On bool  `json:"on"`
	}

	tool := &mcp.Tool{
		Name:        "clipkeeper_set_pinned",
		Description: "Pin or unpin a clip; pinned clips survive eviction and clearing",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "integer", "description": "Clip id"},
			"on": map[string]any{"type": "boolean", "description": "true pins, false unpins"},
		}, []string{"id", "on"}),
	}

	ep := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		if err := t.store.SetPinned(ctx, p.ID, p.On); err != nil {
			return nil, err
		}
		return map[string]any{"id": p.ID, "pinned": p.On}, nil
	}

	decode := func(r *mcp.CallToolRequest) (any, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &p, nil
	}

	registerTool(srv, tool, ep, decode)
}
