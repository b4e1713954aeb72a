// Package auth obtains and refreshes OAuth2 access tokens for an MCP gateway.
//
// The gateway uses the client credentials grant: a client ID and secret are
// exchanged at the token endpoint for a short-lived bearer token. Manager
// keeps the current token in memory, re-reads the credentials bundle on a
// miss to pick up refreshes made by other processes, and only then requests
// a new token over the network.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/standardbeagle/gatemcp/internal/credentials"
	"github.com/standardbeagle/gatemcp/internal/logging"
)

const (
	// DefaultBuffer is how long before its expiry a token stops being
	// served, so calls made near the boundary do not race the gateway's
	// clock.
	DefaultBuffer = 5 * time.Minute

	// DefaultTimeout bounds a single token endpoint request.
	DefaultTimeout = 30 * time.Second

	// defaultExpiresIn is assumed when the token endpoint omits expires_in.
	defaultExpiresIn = 3600
)

// Manager exchanges client credentials for gateway access tokens.
// All methods are safe for concurrent use; a refresh holds the lock so
// concurrent callers share one token request instead of stampeding the
// endpoint.
type Manager struct {
	store     credentials.Store
	hc        *http.Client
	log       logging.Logger
	buffer    time.Duration
	onRefresh func(error)

	mu      sync.Mutex
	bundle  *credentials.Bundle
	tok     *oauth2.Token
	cleared bool
}

// ManagerOptions customizes a Manager.
type ManagerOptions struct {
	// Buffer is how long before expiry a token stops being served.
	// Zero means DefaultBuffer.
	Buffer time.Duration

	// Timeout bounds token endpoint requests. Zero means DefaultTimeout.
	// Ignored when HTTPClient is set.
	Timeout time.Duration

	// HTTPClient overrides the client used for token requests.
	HTTPClient *http.Client

	// Logger receives refresh activity. Nil means logging.Nop().
	Logger logging.Logger

	// OnRefresh observes the outcome of every token refresh attempt.
	// Called with the manager's lock held; it must not call back into
	// the Manager.
	OnRefresh func(error)
}

// NewManager creates a manager with default options.
func NewManager(store credentials.Store) *Manager {
	return NewManagerWithOptions(store, ManagerOptions{})
}

// NewManagerWithOptions creates a manager with explicit options.
func NewManagerWithOptions(store credentials.Store, opts ManagerOptions) *Manager {
	buffer := opts.Buffer
	if buffer == 0 {
		buffer = DefaultBuffer
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{store: store, hc: hc, log: log, buffer: buffer, onRefresh: opts.OnRefresh}
}

// Token returns a bearer token valid for at least the expiry buffer. Lookup
// order: the in-memory token, then the stored bundle (another process may
// have refreshed it), then the token endpoint.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.usable(m.tok) {
		return m.tok.AccessToken, nil
	}

	// Drop the cached bundle so loadLocked re-reads the store.
	m.bundle = nil
	if err := m.loadLocked(); err != nil {
		return "", err
	}
	// After Clear the stored token is distrusted: it is the one a previous
	// refresh persisted, so adopting it would undo the Clear.
	if !m.cleared {
		if tok := bundleToken(m.bundle); m.usable(tok) {
			m.log.Debug("adopted stored access token", "expires_at", tok.Expiry)
			m.tok = tok
			return tok.AccessToken, nil
		}
	}

	if err := m.refreshLocked(ctx); err != nil {
		return "", err
	}
	return m.tok.AccessToken, nil
}

// Refresh discards the in-memory token and requests a new one from the
// token endpoint. Used after the gateway rejects a token that looked valid
// locally; adoption from the stored bundle is skipped because that is where
// the rejected token came from.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(); err != nil {
		return "", err
	}
	if err := m.refreshLocked(ctx); err != nil {
		return "", err
	}
	return m.tok.AccessToken, nil
}

// Clear drops the in-memory token and bundle and distrusts whatever token
// the store holds, so the next Token call refreshes instead of re-adopting
// a previously persisted token. The stored bundle itself is left alone; its
// client credentials are still needed for that refresh.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tok = nil
	m.bundle = nil
	m.cleared = true
}

// GatewayURL returns the gateway endpoint from the credentials bundle.
func (m *Manager) GatewayURL() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(); err != nil {
		return "", err
	}
	if m.bundle.GatewayURL == "" {
		return "", &ConfigError{Missing: []string{"gateway_url"}}
	}
	return m.bundle.GatewayURL, nil
}

// Bundle returns a copy of the loaded credentials bundle.
func (m *Manager) Bundle() (*credentials.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(); err != nil {
		return nil, err
	}
	return m.bundle.Clone(), nil
}

// usable reports whether tok can still be served. Tokens without a known
// expiry are refreshed rather than trusted.
func (m *Manager) usable(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	if tok.Expiry.IsZero() {
		return false
	}
	return time.Now().Add(m.buffer).Before(tok.Expiry)
}

func (m *Manager) loadLocked() error {
	if m.bundle != nil {
		return nil
	}
	b, err := m.store.Load()
	if err != nil {
		return &ConfigError{Err: err}
	}
	m.bundle = b
	return nil
}

// bundleToken lifts the bundle's stored token into oauth2 form. A missing
// or malformed expiry yields a zero Expiry, which usable rejects.
func bundleToken(b *credentials.Bundle) *oauth2.Token {
	if b == nil || b.AccessToken == "" {
		return nil
	}
	tok := &oauth2.Token{AccessToken: b.AccessToken, TokenType: "Bearer"}
	if exp, ok := b.Expiry(); ok {
		tok.Expiry = exp
	}
	return tok
}

func (m *Manager) refreshLocked(ctx context.Context) error {
	err := m.exchangeLocked(ctx)
	if err == nil {
		// A fresh token supersedes any earlier Clear.
		m.cleared = false
	}
	if m.onRefresh != nil {
		m.onRefresh(err)
	}
	return err
}

// exchangeLocked performs the client credentials exchange and adopts the
// resulting token.
func (m *Manager) exchangeLocked(ctx context.Context) error {
	b := m.bundle

	var missing []string
	if b.TokenURL == "" {
		missing = append(missing, "token_url")
	}
	if b.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if b.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}

	m.log.Debug("requesting access token", "token_url", b.TokenURL, "client_id", b.ClientID)

	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {b.ClientID},
		"client_secret": {b.ClientSecret},
	}
	if b.Scope != "" {
		data.Set("scope", b.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return &TransportError{Op: "build token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.hc.Do(req)
	if err != nil {
		return &TransportError{Op: "request token", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: "read token response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return &AuthError{
			Message: "token request rejected",
			Status:  resp.StatusCode,
			Body:    strings.TrimSpace(string(body)),
		}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return &AuthError{Message: fmt.Sprintf("token response is not valid JSON: %v", err)}
	}
	if tokenResp.AccessToken == "" {
		return &AuthError{Message: "token response missing access_token"}
	}

	expiresIn := tokenResp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	expiry := time.Now().Add(time.Duration(expiresIn) * time.Second)

	m.tok = &oauth2.Token{
		AccessToken: tokenResp.AccessToken,
		TokenType:   tokenResp.TokenType,
		Expiry:      expiry,
	}
	if m.tok.TokenType == "" {
		m.tok.TokenType = "Bearer"
	}

	b.AccessToken = tokenResp.AccessToken
	b.SetExpiry(expiry)
	if err := m.store.Save(b); err != nil {
		// The token is good even when persisting it is not.
		m.log.Warn("failed to persist refreshed token", "error", err)
	}

	m.log.Info("access token refreshed", "expires_in", expiresIn)
	return nil
}
