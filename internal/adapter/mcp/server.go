// Package mcp exposes replay and cost tools to AI agents over the Model
// Context Protocol.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/reverbhq/reverb/internal/domain/cost"
	"github.com/reverbhq/reverb/internal/domain/replay"
)

// SessionReplayer is the subset of the replay service the MCP tools need.
type SessionReplayer interface {
	Replay(ctx context.Context, sessionID string) (*replay.Result, error)
	WhatIf(ctx context.Context, sessionID string, ov replay.Override) (*replay.WhatIfResult, error)
}

// StatsReader reads cost and stats aggregates.
type StatsReader interface {
	SessionCost(ctx context.Context, sessionID string) (float64, error)
	AgentStats(ctx context.Context, agentID string) (*cost.AgentStats, error)
}

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
}

// ServerDeps are the services the MCP tools call into. Nil deps disable
// the corresponding tools with a tool-level error instead of a panic.
type ServerDeps struct {
	Replayer SessionReplayer
	Stats    StatsReader
}

// Server wraps an MCP server served over streamable HTTP.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *mcpserver.StreamableHTTPServer
	errCh      chan error
}

// NewServer creates an MCP server with all tools registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
		),
		errCh: make(chan error, 1),
	}
	s.registerTools()
	s.httpServer = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	return s
}

// MCPServer returns the underlying MCP server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start serves MCP over streamable HTTP in the background.
func (s *Server) Start() error {
	go func() {
		if err := s.httpServer.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server failed", "error", err)
			s.errCh <- err
		}
	}()
	slog.Info("mcp server started", "addr", s.cfg.Addr)
	return nil
}

// Stop gracefully shuts down the MCP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// toolResultJSON wraps a JSON string as a text tool result.
func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
