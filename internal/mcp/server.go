package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/studyloop/edsync/internal/edapi"
	"github.com/studyloop/edsync/internal/orchestrator"
	"github.com/studyloop/edsync/internal/vectorstore"
)

// Server wraps the MCP server with its dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Index        *vectorstore.Index
	API          *edapi.Client
	Orchestrator *orchestrator.Orchestrator
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "course-discussion-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_course",
		Description: "Search a course's synced discussion content semantically. Returns matching threads, answers, and comments with relevance scores.",
	}, makeSearchHandler(cfg.Index))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "course_sync_status",
		Description: "Get the sync state of one course (or all courses): status, sync type, last sync times, thread counts, and any errors.",
	}, makeStatusHandler(cfg.Orchestrator))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_courses",
		Description: "List the caller's enrolled courses as reported by the discussion service.",
	}, makeListCoursesHandler(cfg.API))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance for transport
// handlers that need to wrap it.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
