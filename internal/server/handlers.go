package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/gatemcp/internal/graphdb"
)

// EchoInput is the input for the echo tool.
type EchoInput struct {
	Message string `json:"message" jsonschema:"Message to echo back"`
}

// EchoOutput is the output for the echo tool.
type EchoOutput struct {
	Text string `json:"text"`
}

func (s *Server) handleEcho(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EchoInput,
) (*mcp.CallToolResult, EchoOutput, error) {
	return nil, EchoOutput{Text: "Echo: " + input.Message}, nil
}

// ServerInfoInput is the input for the server-info tool.
type ServerInfoInput struct{}

// ServerInfoOutput is the output for the server-info tool.
type ServerInfoOutput struct {
	Name                  string   `json:"name"`
	Version               string   `json:"version"`
	Neo4jURI              string   `json:"neo4j_uri"`
	CredentialsConfigured bool     `json:"credentials_configured"`
	Tools                 []string `json:"tools"`
}

func (s *Server) handleServerInfo(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ServerInfoInput,
) (*mcp.CallToolResult, ServerInfoOutput, error) {
	uri := "not configured"
	if s.db != nil {
		uri = s.db.URI()
	}

	return nil, ServerInfoOutput{
		Name:                  serverName,
		Version:               serverVersion,
		Neo4jURI:              uri,
		CredentialsConfigured: s.db != nil,
		Tools:                 toolNames,
	}, nil
}

// GetSchemaInput is the input for the get-schema tool.
type GetSchemaInput struct{}

func (s *Server) handleGetSchema(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetSchemaInput,
) (*mcp.CallToolResult, *graphdb.Schema, error) {
	db, err := s.requireDB()
	if err != nil {
		return nil, nil, err
	}

	schema, err := db.Schema(ctx)
	if err != nil {
		return nil, nil, err
	}

	return nil, schema, nil
}

// CypherInput is the input for the read-cypher and write-cypher tools.
type CypherInput struct {
	Query      string         `json:"query" jsonschema:"Cypher query to execute"`
	Parameters map[string]any `json:"parameters,omitempty" jsonschema:"Optional query parameters"`
}

func (s *Server) handleReadCypher(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CypherInput,
) (*mcp.CallToolResult, *graphdb.QueryResult, error) {
	db, err := s.requireDB()
	if err != nil {
		return nil, nil, err
	}

	result, err := db.ReadCypher(ctx, input.Query, input.Parameters)
	if err != nil {
		return nil, nil, err
	}

	return nil, result, nil
}

func (s *Server) handleWriteCypher(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CypherInput,
) (*mcp.CallToolResult, *graphdb.QueryResult, error) {
	db, err := s.requireDB()
	if err != nil {
		return nil, nil, err
	}

	result, err := db.WriteCypher(ctx, input.Query, input.Parameters)
	if err != nil {
		return nil, nil, err
	}

	return nil, result, nil
}

// requireDB returns the database handle, or an error when Neo4j credentials
// were not configured at startup.
func (s *Server) requireDB() (*graphdb.DB, error) {
	if s.db == nil {
		return nil, fmt.Errorf("Neo4j credentials not configured")
	}
	return s.db, nil
}
