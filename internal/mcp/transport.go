package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPHandlerOptions configures the HTTP transport behavior.
type HTTPHandlerOptions struct {
	// Stateless disables session management. Suits simple tool servers
	// that never issue server-to-client requests.
	Stateless bool
}

// NewHTTPHandler creates an HTTP handler for the MCP server using the
// Streamable HTTP transport. Mount it on any mux path, e.g. "/mcp".
func NewHTTPHandler(server *Server, opts *HTTPHandlerOptions) http.Handler {
	if opts == nil {
		opts = &HTTPHandlerOptions{}
	}

	sdkOpts := &mcp.StreamableHTTPOptions{
		Stateless: opts.Stateless,
	}

	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server.MCPServer()
	}, sdkOpts)
}
