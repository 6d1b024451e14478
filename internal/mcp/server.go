// Package mcp exposes campaign history, timeline and recommendations as
// Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/blackwell-systems/campaigntrends/internal/adapter"
	"github.com/blackwell-systems/campaigntrends/internal/history"
	"github.com/blackwell-systems/campaigntrends/internal/timeline"
)

// Server registers the campaign tools on an MCP server.
type Server struct {
	store    *history.Store
	adapter  *adapter.Adapter
	timeline *timeline.Service
	limit    int
	version  string
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version reported to clients.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithTimelineLimit sets the default page size of get_timeline.
func WithTimelineLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithLogger sets the logger for failed tool calls.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a Server over the given components.
func NewServer(store *history.Store, a *adapter.Adapter, tl *timeline.Service, opts ...Option) *Server {
	s := &Server{
		store:    store,
		adapter:  a,
		timeline: tl,
		limit:    timeline.DefaultLimit,
		version:  "dev",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MCP builds an MCP server with every campaign tool registered.
func (s *Server) MCP() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "campaigntrends", Version: s.version}, nil)
	s.Register(srv)
	return srv
}

// Run serves the tools over t until the client disconnects or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.MCP().Run(ctx, t)
}

// toolFunc handles decoded arguments and returns a JSON-serializable result.
type toolFunc func(ctx context.Context, args toolArgs) (any, error)

// addTool wraps fn so argument errors and handler errors become tool
// errors rather than protocol errors.
func (s *Server) addTool(srv *mcp.Server, tool *mcp.Tool, fn toolFunc) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args toolArgs
		if raw := req.Params.Arguments; len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}

		resp, err := fn(ctx, args)
		if err != nil {
			s.logger.Debug("tool call failed", "tool", tool.Name, "err", err)
			return toolError(err), nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
