// graph-mcp serves Neo4j graph tools over MCP, either on stdio or as a
// streamable HTTP endpoint. It is the backend an MCP gateway fronts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/standardbeagle/gatemcp/internal/server"
)

const version = "0.1.0"

func main() {
	godotenv.Load()

	port := 0
	for i := 1; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--port", "-p":
			if i+1 < len(os.Args) {
				fmt.Sscanf(os.Args[i+1], "%d", &port)
				i++
			}
		case "version", "-v", "--version":
			fmt.Printf("graph-mcp version %s\n", version)
			return
		case "--help", "-h":
			printUsage()
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown option: %s\n\n", os.Args[i])
			printUsage()
			os.Exit(2)
		}
	}

	srv, err := server.NewFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// Probe Neo4j in the background; the server answers tool calls in
	// degraded mode until the database is reachable.
	srv.Start(ctx)
	defer srv.Close(context.Background())

	if port > 0 {
		err = srv.RunHTTP(ctx, port)
	} else {
		err = srv.RunStdio(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`graph-mcp - MCP server for Neo4j graph tools

Usage:
  graph-mcp [options]

Options:
  --port, -p PORT    Serve streamable HTTP on PORT
                     (default: stdio transport)
  --help, -h         Show this help

Tools:
  echo          Connectivity check
  server-info   Server name, version, and credential status
  get-schema    Node labels, relationship types, property keys
  read-cypher   Run a read-only Cypher query
  write-cypher  Run a write Cypher query

Configuration (environment):
  NEO4J_URI        Bolt URI, e.g. neo4j+s://host (required for database tools)
  NEO4J_USERNAME   Defaults to "neo4j"
  NEO4J_PASSWORD   Required for database tools
  NEO4J_DATABASE   Defaults to "neo4j"

Without Neo4j credentials the server still runs: echo and server-info work,
database tools report that credentials are not configured.
`)
}
