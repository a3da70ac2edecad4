// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes read-only access to the aggregate documents via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/halvard/tally/internal/statsvc"
)

// Server wraps the MCP server with tally tools.
type Server struct {
	mcp *server.MCPServer
	svc *statsvc.Service
}

// New creates a new MCP server with all tally tools registered.
func New(svc *statsvc.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Tally",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("teacher_stats",
		mcp.WithDescription("Per-teacher contribution counters (notes, forms, youtube, total), sorted by total."),
	), s.teacherStats)

	s.mcp.AddTool(mcp.NewTool("uploaders",
		mcp.WithDescription("Note uploader names, globally and per subject abbreviation."),
		mcp.WithString("subject", mcp.Description("Optional subject abbreviation to filter by (e.g. PHY)")),
	), s.uploaders)

	s.mcp.AddTool(mcp.NewTool("link_uploaders",
		mcp.WithDescription("Names of everyone who has uploaded a link."),
	), s.linkUploaders)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) teacherStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.svc.TeacherStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(doc, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) uploaders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.svc.Uploaders(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if subject, err := req.RequireString("subject"); err == nil && subject != "" {
		names, ok := doc[subject]
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown subject: %s", subject)), nil
		}
		return mcp.NewToolResultText(strings.Join(names, "\n")), nil
	}

	out, _ := json.MarshalIndent(doc, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) linkUploaders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.svc.LinkUploaders(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(doc.Uploaders) == 0 {
		return mcp.NewToolResultText("no uploaders recorded"), nil
	}
	return mcp.NewToolResultText(strings.Join(doc.Uploaders, "\n")), nil
}
