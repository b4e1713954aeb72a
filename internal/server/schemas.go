package server

import "encoding/json"

// Tool schemas manually crafted to pass the gateway's strict target
// validation. The Go SDK's auto-generated schemas use patterns like
// "type": ["null", "object"] which are valid JSON Schema but rejected
// when the gateway registers this server's tools.

// echoInputSchema is the input schema for echo.
var echoInputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"message": {
			"type": "string",
			"description": "Message to echo back"
		}
	},
	"required": ["message"],
	"additionalProperties": false
}`)

// echoOutputSchema is the output schema for echo.
var echoOutputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"text": {"type": "string", "description": "The echoed message"}
	},
	"required": ["text"],
	"additionalProperties": false
}`)

// serverInfoInputSchema is the input schema for server-info.
var serverInfoInputSchema = json.RawMessage(`{
	"type": "object",
	"additionalProperties": false
}`)

// serverInfoOutputSchema is the output schema for server-info.
var serverInfoOutputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"version": {"type": "string"},
		"neo4j_uri": {"type": "string"},
		"credentials_configured": {"type": "boolean"},
		"tools": {
			"type": "array",
			"items": {"type": "string"}
		}
	},
	"required": ["name", "version", "neo4j_uri", "credentials_configured", "tools"],
	"additionalProperties": false
}`)

// getSchemaInputSchema is the input schema for get-schema.
var getSchemaInputSchema = json.RawMessage(`{
	"type": "object",
	"additionalProperties": false
}`)

// getSchemaOutputSchema is the output schema for get-schema.
var getSchemaOutputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"node_labels": {
			"type": "array",
			"items": {"type": "string"}
		},
		"relationship_types": {
			"type": "array",
			"items": {"type": "string"}
		},
		"property_keys": {
			"type": "array",
			"items": {"type": "string"}
		}
	},
	"required": ["node_labels", "relationship_types", "property_keys"],
	"additionalProperties": false
}`)

// cypherInputSchema is the input schema shared by read-cypher and write-cypher.
var cypherInputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "Cypher query to execute"
		},
		"parameters": {
			"type": "object",
			"description": "Optional query parameters referenced as $name in the query",
			"additionalProperties": true
		}
	},
	"required": ["query"],
	"additionalProperties": false
}`)

// cypherOutputSchema is the output schema shared by read-cypher and write-cypher.
var cypherOutputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"records": {
			"type": "array",
			"items": {
				"type": "object",
				"additionalProperties": true
			}
		},
		"count": {"type": "integer", "description": "Number of records returned"}
	},
	"required": ["records", "count"],
	"additionalProperties": false
}`)
