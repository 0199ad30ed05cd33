// Package mcp exposes the classification engine as MCP tools over stdio.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/bookkeeper/internal/audit"
	"github.com/ziadkadry99/bookkeeper/internal/engine"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes transaction classification tools.
type Server struct {
	engine *engine.Engine
	mcp    *server.MCPServer
}

// NewServer creates a new MCP server backed by eng.
func NewServer(eng *engine.Engine) *Server {
	s := &Server{engine: eng}

	s.mcp = server.NewMCPServer(
		"bookkeeper",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(predictCategoryTool, s.handlePredictCategory)
	s.mcp.AddTool(searchSimilarTool, s.handleSearchSimilar)
	s.mcp.AddTool(listCategoriesTool, s.handleListCategories)
	s.mcp.AddTool(indexStatsTool, s.handleIndexStats)
	s.mcp.AddTool(addRecordTool, s.handleAddRecord)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return audit.WithActor(ctx, audit.ActorMCP)
	}))
}
