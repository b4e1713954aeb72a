// Mock OAuth2-protected MCP gateway for integration testing.
// Issues client-credentials tokens and serves ___-prefixed tools over
// streamable HTTP with deterministic responses and no external services.
//
// The process prints its base URL on stdout once it is listening and exits
// when stdin reaches EOF, so test harnesses manage its lifetime through a
// pipe. The -token-ttl and -expires-in flags can disagree: advertising a
// longer lifetime than the gateway honors forces clients through their
// 401-refresh-retry path.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type echoInput struct {
	Message string `json:"message"`
}

type addInput struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

type tokenIssuer struct {
	mu       sync.Mutex
	issued   int
	expiry   map[string]time.Time
	clientID string
	secret   string
	ttl      time.Duration
	// advertised is the expires_in value the token endpoint reports,
	// independent of the ttl the gateway actually honors.
	advertised int
}

func (ti *tokenIssuer) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.PostFormValue("grant_type") != "client_credentials" {
		http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
		return
	}
	if r.PostFormValue("client_id") != ti.clientID || r.PostFormValue("client_secret") != ti.secret {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
		return
	}

	ti.mu.Lock()
	ti.issued++
	token := fmt.Sprintf("mock-token-%d", ti.issued)
	ti.expiry[token] = time.Now().Add(ti.ttl)
	ti.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   ti.advertised,
	})
}

func (ti *tokenIssuer) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		ti.mu.Lock()
		expiry, ok := ti.expiry[token]
		ti.mu.Unlock()

		if !ok || time.Now().After(expiry) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func textResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}

func newGatewayServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "mock-gateway", Version: "1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{Name: "calc___echo", Description: "Echo a message back"},
		func(ctx context.Context, req *mcp.CallToolRequest, in echoInput) (*mcp.CallToolResult, any, error) {
			return textResult("Echo: " + in.Message), nil, nil
		})
	mcp.AddTool(server, &mcp.Tool{Name: "calc___add", Description: "Add two numbers"},
		func(ctx context.Context, req *mcp.CallToolRequest, in addInput) (*mcp.CallToolResult, any, error) {
			return textResult(fmt.Sprintf("The sum of %v and %v is %v.", in.A, in.B, in.A+in.B)), nil, nil
		})

	return server
}

func main() {
	addr := flag.String("addr", "127.0.0.1:0", "listen address")
	clientID := flag.String("client-id", "mock-client", "expected OAuth2 client ID")
	clientSecret := flag.String("client-secret", "mock-secret", "expected OAuth2 client secret")
	tokenTTL := flag.Duration("token-ttl", time.Hour, "how long issued tokens are honored")
	expiresIn := flag.Int("expires-in", 0, "expires_in seconds the token endpoint advertises (0 means token-ttl)")
	flag.Parse()

	advertised := *expiresIn
	if advertised == 0 {
		advertised = int(tokenTTL.Seconds())
	}

	issuer := &tokenIssuer{
		expiry:     make(map[string]time.Time),
		clientID:   *clientID,
		secret:     *clientSecret,
		ttl:        *tokenTTL,
		advertised: advertised,
	}

	server := newGatewayServer()
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", issuer.handleToken)
	mux.Handle("/mcp", issuer.requireBearer(mcpHandler))

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listen: %v\n", err)
		os.Exit(1)
	}

	// The harness scans stdout for this line to find the ephemeral port.
	fmt.Printf("http://%s\n", listener.Addr())

	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := os.Stdin.Read(buf); err != nil {
				os.Exit(0)
			}
		}
	}()

	if err := http.Serve(listener, mux); err != nil {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		os.Exit(1)
	}
}
