// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes duckpond notebook and query tools via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/duckpond-io/pondctl/api"
	"github.com/duckpond-io/pondctl/reconcile"
)

// PondAPI is the client surface the tools drive.
type PondAPI interface {
	ListNotebooks(ctx context.Context) ([]api.NotebookFile, error)
	ListSessions(ctx context.Context) ([]api.Session, error)
	ReadNotebook(ctx context.Context, filename string) (string, error)
	CreateNotebook(ctx context.Context, filename, content string) (*api.NotebookFile, error)
	CreateSession(ctx context.Context, notebookPath string) (*api.CreateSessionResponse, error)
	TerminateSession(ctx context.Context, sessionID string) error
	Query(ctx context.Context, sql string, limit int) (*api.QueryResult, error)
}

// Server wraps the MCP server with pondctl tools.
type Server struct {
	mcp    *server.MCPServer
	client PondAPI
}

// New creates a new MCP server with all tools registered.
func New(client PondAPI) *Server {
	s := &Server{client: client}

	s.mcp = server.NewMCPServer(
		"pondctl",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notebooks",
		mcp.WithDescription("List notebooks with their live session status (running, starting, stopped...)."),
	), s.listNotebooks)

	s.mcp.AddTool(mcp.NewTool("read_notebook",
		mcp.WithDescription("Read the source of a notebook file."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Notebook filename (e.g. analysis.py)")),
	), s.readNotebook)

	s.mcp.AddTool(mcp.NewTool("create_notebook",
		mcp.WithDescription("Create a new notebook file on the server."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Filename for the new notebook (must end with .py)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Python source of the notebook")),
	), s.createNotebook)

	s.mcp.AddTool(mcp.NewTool("start_notebook",
		mcp.WithDescription("Start a compute session for a notebook and return its connection info."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Notebook filename to start")),
	), s.startNotebook)

	s.mcp.AddTool(mcp.NewTool("stop_notebook",
		mcp.WithDescription("Stop the compute session attached to a notebook."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Notebook filename to stop")),
	), s.stopNotebook)

	s.mcp.AddTool(mcp.NewTool("run_query",
		mcp.WithDescription("Run a read-only SQL query against the data lake."),
		mcp.WithString("sql", mcp.Required(), mcp.Description("SQL to execute")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows to return (default 100)")),
	), s.runQuery)

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

func (s *Server) merged(ctx context.Context) ([]reconcile.MergedNotebook, error) {
	files, err := s.client.ListNotebooks(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := s.client.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	return reconcile.Merge(files, sessions), nil
}

func (s *Server) listNotebooks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.merged(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.client.ReadNotebook(ctx, filename)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", filename)), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) createNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !strings.HasSuffix(filename, ".py") {
		return mcp.NewToolResultError("filename must end with .py"), nil
	}
	if _, err := s.client.CreateNotebook(ctx, filename, content); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", filename)), nil
}

func (s *Server) startNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := s.client.CreateSession(ctx, filename)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(resp, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) stopNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.merged(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	for _, it := range items {
		if it.Filename != filename {
			continue
		}
		if it.SessionID == "" {
			return mcp.NewToolResultError(fmt.Sprintf("no session attached to %s", filename)), nil
		}
		if err := s.client.TerminateSession(ctx, it.SessionID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("stopping: %s", filename)), nil
	}
	return mcp.NewToolResultError(fmt.Sprintf("not found: %s", filename)), nil
}

func (s *Server) runQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sql, err := req.RequireString("sql")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", 100)
	result, err := s.client.Query(ctx, sql, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
