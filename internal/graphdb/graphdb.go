// Package graphdb wraps the Neo4j driver for the graph-mcp server.
//
// Connection settings come from the environment (NEO4J_URI, NEO4J_USERNAME,
// NEO4J_PASSWORD, NEO4J_DATABASE) and are loaded once at startup. Query
// results are converted to JSON-safe values: nodes and relationships flatten
// to their property maps, temporal and spatial values render as strings.
package graphdb

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/standardbeagle/gatemcp/internal/logging"
)

// Environment variable names for Neo4j connection settings.
const (
	EnvURI      = "NEO4J_URI"
	EnvUsername = "NEO4J_USERNAME"
	EnvPassword = "NEO4J_PASSWORD"
	EnvDatabase = "NEO4J_DATABASE"
)

// Defaults applied when the optional environment variables are unset.
const (
	DefaultUsername = "neo4j"
	DefaultDatabase = "neo4j"
)

// Config holds Neo4j connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// ConfigFromEnv loads connection settings from the environment. The second
// return value is false when NEO4J_URI or NEO4J_PASSWORD is unset; the
// server still starts in that case and reports the missing credentials per
// tool call rather than at boot.
func ConfigFromEnv() (Config, bool) {
	uri := os.Getenv(EnvURI)
	password := os.Getenv(EnvPassword)
	if uri == "" || password == "" {
		return Config{}, false
	}

	cfg := Config{
		URI:      uri,
		Username: os.Getenv(EnvUsername),
		Password: password,
		Database: os.Getenv(EnvDatabase),
	}
	cfg.applyDefaults()
	return cfg, true
}

func (c *Config) applyDefaults() {
	if c.Username == "" {
		c.Username = DefaultUsername
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
}

// Schema describes the labels, relationship types, and property keys known
// to the database.
type Schema struct {
	NodeLabels        []string `json:"node_labels"`
	RelationshipTypes []string `json:"relationship_types"`
	PropertyKeys      []string `json:"property_keys"`
}

// QueryResult holds the serialized records returned by a Cypher query.
type QueryResult struct {
	Records []map[string]any `json:"records"`
	Count   int              `json:"count"`
}

// DB is a handle to a Neo4j database. The underlying driver manages its own
// connection pool, so one DB is shared across all tool calls. Connection
// failures surface on the first query, not at Open time.
type DB struct {
	driver   neo4j.DriverWithContext
	uri      string
	database string
	logger   logging.Logger
}

// Open creates a DB from the given config. Defaults are applied for the
// username and database when empty. A nil logger disables logging.
func Open(cfg Config, logger logging.Logger) (*DB, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.Nop()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	return &DB{
		driver:   driver,
		uri:      cfg.URI,
		database: cfg.Database,
		logger:   logger,
	}, nil
}

// URI returns the connection URI.
func (db *DB) URI() string {
	return db.uri
}

// Database returns the target database name.
func (db *DB) Database() string {
	return db.database
}

// VerifyConnectivity checks that the database is reachable.
func (db *DB) VerifyConnectivity(ctx context.Context) error {
	return db.driver.VerifyConnectivity(ctx)
}

// Close releases the driver's connection pool.
func (db *DB) Close(ctx context.Context) error {
	return db.driver.Close(ctx)
}

// Schema queries the database for its node labels, relationship types, and
// property keys.
func (db *DB) Schema(ctx context.Context) (*Schema, error) {
	session := db.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: db.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	labels, err := collectStrings(ctx, session, "CALL db.labels()", "label")
	if err != nil {
		return nil, fmt.Errorf("failed to list node labels: %w", err)
	}

	relationships, err := collectStrings(ctx, session, "CALL db.relationshipTypes()", "relationshipType")
	if err != nil {
		return nil, fmt.Errorf("failed to list relationship types: %w", err)
	}

	properties, err := collectStrings(ctx, session, "CALL db.propertyKeys()", "propertyKey")
	if err != nil {
		return nil, fmt.Errorf("failed to list property keys: %w", err)
	}

	return &Schema{
		NodeLabels:        labels,
		RelationshipTypes: relationships,
		PropertyKeys:      properties,
	}, nil
}

// ReadCypher runs a Cypher query in a read-mode session.
func (db *DB) ReadCypher(ctx context.Context, query string, params map[string]any) (*QueryResult, error) {
	return db.runCypher(ctx, neo4j.AccessModeRead, query, params)
}

// WriteCypher runs a Cypher query in a write-mode session.
func (db *DB) WriteCypher(ctx context.Context, query string, params map[string]any) (*QueryResult, error) {
	return db.runCypher(ctx, neo4j.AccessModeWrite, query, params)
}

func (db *DB) runCypher(ctx context.Context, mode neo4j.AccessMode, query string, params map[string]any) (*QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if params == nil {
		params = map[string]any{}
	}

	db.logger.Debug("running cypher query", "database", db.database, "query", query)

	session := db.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: db.database,
		AccessMode:   mode,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	records := make([]map[string]any, 0)
	for result.Next(ctx) {
		record := result.Record()
		row := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = serializeValue(record.Values[i])
		}
		records = append(records, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	return &QueryResult{
		Records: records,
		Count:   len(records),
	}, nil
}

// collectStrings runs a query and collects the string values of one column.
func collectStrings(ctx context.Context, session neo4j.SessionWithContext, query, key string) ([]string, error) {
	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	values := make([]string, 0)
	for result.Next(ctx) {
		if v, ok := result.Record().Get(key); ok {
			if s, ok := v.(string); ok {
				values = append(values, s)
			}
		}
	}
	return values, result.Err()
}

// serializeValue converts a driver value into a JSON-safe form. Primitives
// and containers pass through (containers recursively); graph entities
// flatten to property maps; temporal and spatial values render as strings.
func serializeValue(v any) any {
	switch val := v.(type) {
	case nil, bool, int64, float64, string:
		return val
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = serializeValue(item)
		}
		return out
	case map[string]any:
		return serializeProps(val)
	case dbtype.Node:
		return serializeProps(val.Props)
	case dbtype.Relationship:
		return serializeProps(val.Props)
	case dbtype.Path:
		return serializePath(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case dbtype.Date:
		return val.String()
	case dbtype.LocalTime:
		return val.String()
	case dbtype.Time:
		return val.String()
	case dbtype.LocalDateTime:
		return val.String()
	case dbtype.Duration:
		return val.String()
	case dbtype.Point2D:
		return val.String()
	case dbtype.Point3D:
		return val.String()
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func serializeProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = serializeValue(v)
	}
	return out
}

func serializePath(p dbtype.Path) map[string]any {
	nodes := make([]any, len(p.Nodes))
	for i, n := range p.Nodes {
		nodes[i] = serializeProps(n.Props)
	}
	relationships := make([]any, len(p.Relationships))
	for i, r := range p.Relationships {
		relationships[i] = serializeProps(r.Props)
	}
	return map[string]any{
		"nodes":         nodes,
		"relationships": relationships,
	}
}
