// Package gateway maintains authenticated MCP sessions with tool gateways.
//
// A gateway aggregates backend MCP servers and advertises their tools under
// prefixed names ("backend___tool"). Client hides both concerns: it injects
// the OAuth2 bearer token into every request through a wrapping
// http.RoundTripper, and it resolves the base tool names callers use to the
// full names the gateway expects.
//
// When the gateway rejects a token mid-session the client refreshes the
// token, rebuilds the session, and retries the request exactly once. A
// second rejection is a terminal auth.AuthError.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/gatemcp/internal/auth"
	"github.com/standardbeagle/gatemcp/internal/logging"
)

const (
	clientName    = "gatemcp"
	clientVersion = "0.1.0"
)

// Client is an authenticated MCP session with a single gateway.
// All methods are safe for concurrent use.
type Client struct {
	name string
	auth *auth.Manager
	hc   *http.Client
	log  logging.Logger

	connectTimeout time.Duration
	callTimeout    time.Duration

	mu       sync.RWMutex
	endpoint string
	session  *mcp.ClientSession
	tools    []ToolDescriptor
	toolMap  ToolMap
}

// ClientOptions customizes a Client.
type ClientOptions struct {
	// ConnectTimeout bounds the MCP handshake. Zero means
	// DefaultConnectionTimeout.
	ConnectTimeout time.Duration

	// CallTimeout bounds a single tool call. Zero means DefaultCallTimeout.
	CallTimeout time.Duration

	// HTTPClient is the client used for gateway requests. Its transport is
	// wrapped with the bearer round-tripper. Nil means a fresh client.
	HTTPClient *http.Client

	// Logger receives session activity. Nil means logging.Nop().
	Logger logging.Logger
}

// NewClient creates a gateway client with default options. The endpoint may
// be empty, in which case Connect reads it from the credentials bundle.
func NewClient(name, endpoint string, mgr *auth.Manager) *Client {
	return NewClientWithOptions(name, endpoint, mgr, ClientOptions{})
}

// NewClientWithOptions creates a gateway client with explicit options.
func NewClientWithOptions(name, endpoint string, mgr *auth.Manager, opts ClientOptions) *Client {
	connectTimeout := opts.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = DefaultConnectionTimeout
	}
	callTimeout := opts.CallTimeout
	if callTimeout == 0 {
		callTimeout = DefaultCallTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	hc := &http.Client{}
	if opts.HTTPClient != nil {
		hc = &http.Client{
			Transport:     opts.HTTPClient.Transport,
			CheckRedirect: opts.HTTPClient.CheckRedirect,
			Jar:           opts.HTTPClient.Jar,
			Timeout:       opts.HTTPClient.Timeout,
		}
	}
	hc.Transport = &bearerTransport{auth: mgr, base: hc.Transport}

	return &Client{
		name:           name,
		endpoint:       endpoint,
		auth:           mgr,
		hc:             hc,
		log:            log,
		connectTimeout: connectTimeout,
		callTimeout:    callTimeout,
	}
}

// bearerTransport injects the gateway access token into every request.
// Token lookup happens per request, so a refreshed token is picked up
// without rebuilding the HTTP client.
type bearerTransport struct {
	auth *auth.Manager
	base http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.auth.Token(req.Context())
	if err != nil {
		return nil, err
	}

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(clone)
}

// Name returns the gateway's configured name.
func (c *Client) Name() string { return c.name }

// Endpoint returns the gateway URL the client dials. Empty until Connect
// resolves it from the credentials bundle.
func (c *Client) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

// Auth returns the token manager backing this client.
func (c *Client) Auth() *auth.Manager { return c.auth }

// Connect establishes the MCP session and runs initial tool discovery.
// A discovery failure is logged, not fatal; the session is still usable
// once ListTools succeeds.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.RLock()
	endpoint := c.endpoint
	c.mu.RUnlock()

	if endpoint == "" {
		u, err := c.auth.GatewayURL()
		if err != nil {
			return err
		}
		endpoint = u
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	session, err := c.dial(dialCtx, endpoint)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.session != nil {
		c.session.Close()
	}
	c.session = session
	c.endpoint = endpoint
	c.mu.Unlock()

	c.log.Debug("connected to gateway", "gateway", c.name, "endpoint", endpoint)

	if _, err := c.ListTools(ctx); err != nil {
		c.log.Warn("failed to discover gateway tools", "gateway", c.name, "error", err)
	}
	return nil
}

func (c *Client) dial(ctx context.Context, endpoint string) (*mcp.ClientSession, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}, nil)

	transport := &mcp.StreamableClientTransport{
		Endpoint:   endpoint,
		HTTPClient: c.hc,
	}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gateway %s: %w", c.name, err)
	}
	return session, nil
}

// ListTools fetches the gateway's tool list and rebuilds the tool map.
func (c *Client) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	result, err := c.listOnce(ctx)
	if err != nil && isUnauthorized(err) {
		if rerr := c.refreshSession(ctx); rerr != nil {
			return nil, rerr
		}
		result, err = c.listOnce(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list tools from gateway %s: %w", c.name, err)
	}

	tools := make([]ToolDescriptor, 0, len(result.Tools))
	for _, tool := range result.Tools {
		tools = append(tools, ToolDescriptor{
			Name:        tool.Name,
			BaseName:    SplitToolName(tool.Name),
			Description: tool.Description,
			InputSchema: schemaToMap(tool.InputSchema),
		})
	}
	toolMap := BuildToolMap(tools, c.log)

	c.mu.Lock()
	c.tools = tools
	c.toolMap = toolMap
	c.mu.Unlock()

	c.log.Debug("discovered gateway tools", "gateway", c.name, "count", len(tools))
	return tools, nil
}

func (c *Client) listOnce(ctx context.Context) (*mcp.ListToolsResult, error) {
	session, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	return session.ListTools(ctx, nil)
}

// Tools returns the descriptors from the last discovery.
func (c *Client) Tools() []ToolDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tools := make([]ToolDescriptor, len(c.tools))
	copy(tools, c.tools)
	return tools
}

// Resolve maps a base tool name to the full name the gateway expects.
func (c *Client) Resolve(base string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.toolMap.Resolve(base)
}

// BaseNames returns the base names from the last discovery, sorted.
func (c *Client) BaseNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.toolMap.BaseNames()
}

// CallTool executes a tool by base name. A 401 from the gateway triggers one
// token refresh, session rebuild, and retry; a second 401 is a terminal
// auth.AuthError. Tool-level failures (IsError results) come back as errors
// carrying the concatenated text content.
func (c *Client) CallTool(ctx context.Context, base string, args map[string]any) (any, error) {
	full, err := c.Resolve(base)
	if err != nil {
		return nil, err
	}

	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	result, err := c.callOnce(ctx, full, args)
	if err != nil && isUnauthorized(err) {
		c.log.Debug("gateway rejected the access token, refreshing", "gateway", c.name, "tool", base)
		if rerr := c.refreshSession(ctx); rerr != nil {
			return nil, rerr
		}
		result, err = c.callOnce(ctx, full, args)
		if err != nil && isUnauthorized(err) {
			return nil, &auth.AuthError{
				Message: fmt.Sprintf("gateway %s rejected a freshly refreshed token", c.name),
				Status:  http.StatusUnauthorized,
			}
		}
	}
	if err != nil {
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "unknown") {
			return nil, &UnknownToolError{Name: base, Known: c.BaseNames()}
		}
		return nil, err
	}

	if result.IsError {
		var errMsg string
		for _, content := range result.Content {
			if text, ok := content.(*mcp.TextContent); ok {
				errMsg += text.Text
			}
		}
		if errMsg == "" {
			errMsg = "tool returned error"
		}
		return nil, fmt.Errorf("tool error: %s", errMsg)
	}

	return contentToAny(result), nil
}

func (c *Client) callOnce(ctx context.Context, full string, args map[string]any) (*mcp.CallToolResult, error) {
	session, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	if args == nil {
		// Gateways validate arguments strictly; null is rejected where an
		// empty object passes.
		args = map[string]any{}
	}
	return session.CallTool(ctx, &mcp.CallToolParams{
		Name:      full,
		Arguments: args,
	})
}

// Ping verifies the gateway session is alive.
func (c *Client) Ping(ctx context.Context) error {
	session, err := c.currentSession()
	if err != nil {
		return err
	}
	return session.Ping(ctx, nil)
}

// refreshSession forces a token refresh and rebuilds the MCP session. The
// bundle is re-read from the store first so rotated client secrets are
// picked up. Used after the gateway rejects a token that looked valid
// locally.
func (c *Client) refreshSession(ctx context.Context) error {
	c.auth.Clear()
	if _, err := c.auth.Refresh(ctx); err != nil {
		return err
	}
	if err := c.reconnect(ctx); err != nil {
		if isUnauthorized(err) {
			return &auth.AuthError{
				Message: fmt.Sprintf("gateway %s rejected a freshly refreshed token", c.name),
				Status:  http.StatusUnauthorized,
			}
		}
		return err
	}
	return nil
}

// reconnect replaces the session over the already-resolved endpoint. The
// tool map is kept; names do not change across a token refresh.
func (c *Client) reconnect(ctx context.Context) error {
	c.mu.RLock()
	endpoint := c.endpoint
	c.mu.RUnlock()

	if endpoint == "" {
		return fmt.Errorf("gateway %s is not connected", c.name)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	session, err := c.dial(dialCtx, endpoint)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.session != nil {
		c.session.Close()
	}
	c.session = session
	c.mu.Unlock()

	c.log.Debug("rebuilt gateway session", "gateway", c.name)
	return nil
}

// Close shuts down the MCP session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

func (c *Client) currentSession() (*mcp.ClientSession, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.session == nil {
		return nil, fmt.Errorf("gateway %s is not connected", c.name)
	}
	return c.session, nil
}

// isUnauthorized reports whether an MCP call failed because the gateway
// rejected the access token. The SDK surfaces the HTTP status inside the
// error text, so this is a string match like the tool-not-found checks.
func isUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized")
}

// schemaToMap flattens a tool input schema to a plain map. Schemas arrive
// as decoded JSON on the client side but may be typed structs when tools
// are registered in-process, so unknown shapes go through a JSON round
// trip.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return nil
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func contentToAny(result *mcp.CallToolResult) any {
	if result.StructuredContent != nil {
		return result.StructuredContent
	}

	if len(result.Content) == 0 {
		return nil
	}

	if len(result.Content) == 1 {
		return contentItemToAny(result.Content[0])
	}

	items := make([]any, 0, len(result.Content))
	for _, c := range result.Content {
		items = append(items, contentItemToAny(c))
	}
	return items
}

func contentItemToAny(content mcp.Content) any {
	switch c := content.(type) {
	case *mcp.TextContent:
		return c.Text
	case *mcp.ImageContent:
		return map[string]any{
			"type":     "image",
			"mimeType": c.MIMEType,
			"data":     c.Data,
		}
	case *mcp.AudioContent:
		return map[string]any{
			"type":     "audio",
			"mimeType": c.MIMEType,
			"data":     c.Data,
		}
	default:
		return fmt.Sprintf("%v", content)
	}
}
