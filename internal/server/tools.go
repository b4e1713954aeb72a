package server

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerTools registers all server tools with manually crafted schemas.
// This avoids the Go SDK's auto-generated schemas which use patterns like
// "type": ["null", "object"] that the gateway's strict schema validation
// rejects when it registers this server as a target.
func (s *Server) registerTools() {
	// 1. echo - Connectivity check
	s.mcpServer.AddTool(
		&mcp.Tool{
			Name:         "echo",
			Description:  "Echo back the provided message. Useful for testing connectivity.",
			InputSchema:  echoInputSchema,
			OutputSchema: echoOutputSchema,
		},
		s.wrapEcho,
	)

	// 2. server-info - Server and connection status
	s.mcpServer.AddTool(
		&mcp.Tool{
			Name:         "server-info",
			Description:  "Get information about this MCP server and the Neo4j connection status.",
			InputSchema:  serverInfoInputSchema,
			OutputSchema: serverInfoOutputSchema,
		},
		s.wrapServerInfo,
	)

	// 3. get-schema - Database schema discovery
	s.mcpServer.AddTool(
		&mcp.Tool{
			Name:         "get-schema",
			Description:  "Get the Neo4j database schema: node labels, relationship types, and property keys. Call this before writing Cypher queries.",
			InputSchema:  getSchemaInputSchema,
			OutputSchema: getSchemaOutputSchema,
		},
		s.wrapGetSchema,
	)

	// 4. read-cypher - Read-only Cypher execution
	s.mcpServer.AddTool(
		&mcp.Tool{
			Name:         "read-cypher",
			Description:  "Execute a read-only Cypher query against the Neo4j database. Pass values via the parameters map and reference them as $name.",
			InputSchema:  cypherInputSchema,
			OutputSchema: cypherOutputSchema,
		},
		s.wrapReadCypher,
	)

	// 5. write-cypher - Cypher execution with writes allowed
	s.mcpServer.AddTool(
		&mcp.Tool{
			Name:         "write-cypher",
			Description:  "Execute a Cypher query that modifies the Neo4j database. Use read-cypher for queries that only read data.",
			InputSchema:  cypherInputSchema,
			OutputSchema: cypherOutputSchema,
		},
		s.wrapWriteCypher,
	)
}

// Wrapper handlers that parse JSON manually and call the typed handlers.

func (s *Server) wrapEcho(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input EchoInput
	if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
		return nil, err
	}

	_, output, err := s.handleEcho(ctx, req, input)
	if err != nil {
		return errorResult(err), nil
	}

	return toCallToolResult(output)
}

func (s *Server) wrapServerInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input ServerInfoInput
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
			return nil, err
		}
	}

	_, output, err := s.handleServerInfo(ctx, req, input)
	if err != nil {
		return errorResult(err), nil
	}

	return toCallToolResult(output)
}

func (s *Server) wrapGetSchema(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input GetSchemaInput
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
			return nil, err
		}
	}

	_, output, err := s.handleGetSchema(ctx, req, input)
	if err != nil {
		return errorResult(err), nil
	}

	return toCallToolResult(output)
}

func (s *Server) wrapReadCypher(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input CypherInput
	if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
		return nil, err
	}

	_, output, err := s.handleReadCypher(ctx, req, input)
	if err != nil {
		return errorResult(err), nil
	}

	return toCallToolResult(output)
}

func (s *Server) wrapWriteCypher(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input CypherInput
	if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
		return nil, err
	}

	_, output, err := s.handleWriteCypher(ctx, req, input)
	if err != nil {
		return errorResult(err), nil
	}

	return toCallToolResult(output)
}

// errorResult creates an error CallToolResult.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

// toCallToolResult converts any output to a CallToolResult with JSON text content.
func toCallToolResult(output any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(output)
	if err != nil {
		return errorResult(err), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}
