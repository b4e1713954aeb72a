// Package server implements the graph-mcp server: an MCP server exposing
// Neo4j query tools (echo, server-info, get-schema, read-cypher,
// write-cypher) over stdio or streamable HTTP. This is the kind of backend
// a tool gateway fronts; the gateway client in internal/gateway talks to
// its tools under prefixed names.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/gatemcp/internal/graphdb"
	"github.com/standardbeagle/gatemcp/internal/logging"
)

const (
	serverName    = "graph-mcp"
	serverVersion = "0.1.0"
)

// toolNames lists the exposed tools in registration order.
var toolNames = []string{"echo", "server-info", "get-schema", "read-cypher", "write-cypher"}

// Server is the graph-mcp server.
type Server struct {
	mcpServer *mcp.Server
	db        *graphdb.DB
	logger    logging.Logger
}

// New creates a Server backed by db. A nil db means Neo4j credentials are
// not configured: echo and server-info still work while the schema and
// cypher tools report the missing credentials per call.
func New(db *graphdb.DB) *Server {
	s := &Server{
		db:     db,
		logger: logging.Default(),
	}

	s.mcpServer = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: serverVersion,
		},
		&mcp.ServerOptions{
			Capabilities: &mcp.ServerCapabilities{
				Tools: &mcp.ToolCapabilities{},
			},
		},
	)

	s.registerTools()

	return s
}

// NewFromEnv creates a Server with Neo4j settings from the environment.
// Missing credentials are not a startup error; the server runs degraded and
// reports them on the tools that need a database.
func NewFromEnv() (*Server, error) {
	cfg, ok := graphdb.ConfigFromEnv()
	if !ok {
		logging.Default().Warn("Neo4j credentials not configured; schema and cypher tools will return errors")
		return New(nil), nil
	}

	db, err := graphdb.Open(cfg, logging.Default())
	if err != nil {
		return nil, err
	}

	return New(db), nil
}

// Start verifies database connectivity in the background so a slow or down
// database does not block startup.
func (s *Server) Start(ctx context.Context) {
	if s.db == nil {
		return
	}
	go func() {
		if err := s.db.VerifyConnectivity(ctx); err != nil {
			s.logger.Warn("Neo4j connectivity check failed", "uri", s.db.URI(), "error", err)
		}
	}()
}

// RunStdio runs the server using stdio transport.
func (s *Server) RunStdio(ctx context.Context) error {
	s.Start(ctx)

	transport := &mcp.StdioTransport{}
	return s.mcpServer.Run(ctx, transport)
}

// RunHTTP runs the server using streamable HTTP transport on /mcp until
// ctx is cancelled, then drains in-flight requests and returns nil.
func (s *Server) RunHTTP(ctx context.Context, port int) error {
	s.Start(ctx)

	addr := fmt.Sprintf(":%d", port)

	mux := http.NewServeMux()
	mux.Handle("/mcp", s.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("graph-mcp server running", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Handler returns an http.Handler serving the streamable MCP endpoint.
// Exposed so tests can mount the server on ephemeral listeners.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}

// Close releases the database connection pool.
func (s *Server) Close(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close(ctx)
}

// CallTool calls a tool directly (for testing purposes).
func (s *Server) CallTool(ctx context.Context, toolName string, args map[string]any) (any, error) {
	switch toolName {
	case "echo":
		input := EchoInput{
			Message: getStringArg(args, "message"),
		}
		_, result, err := s.handleEcho(ctx, nil, input)
		return result, err

	case "server-info":
		_, result, err := s.handleServerInfo(ctx, nil, ServerInfoInput{})
		return result, err

	case "get-schema":
		_, result, err := s.handleGetSchema(ctx, nil, GetSchemaInput{})
		return result, err

	case "read-cypher":
		input := CypherInput{
			Query:      getStringArg(args, "query"),
			Parameters: getMapArg(args, "parameters"),
		}
		_, result, err := s.handleReadCypher(ctx, nil, input)
		return result, err

	case "write-cypher":
		input := CypherInput{
			Query:      getStringArg(args, "query"),
			Parameters: getMapArg(args, "parameters"),
		}
		_, result, err := s.handleWriteCypher(ctx, nil, input)
		return result, err

	default:
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}
}

func getStringArg(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getMapArg(args map[string]any, key string) map[string]any {
	if v, ok := args[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}
