// Package credentials manages the gateway credentials bundle.
//
// A bundle carries everything a client needs to reach an OAuth2-protected
// MCP gateway: the gateway URL, the token endpoint, the client-credentials
// pair, and the most recently issued access token. Bundles are exchanged as
// JSON files (typically .mcp-credentials.json, produced by deployment
// tooling) and rewritten whenever the token is refreshed.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultFile is the conventional bundle file name in a project directory.
const DefaultFile = ".mcp-credentials.json"

// Bundle is the on-disk credential set for one gateway.
// TokenExpiresAt is kept as a string so a malformed timestamp degrades to
// "expired, refresh on first use" instead of failing the whole load.
type Bundle struct {
	GatewayURL     string `json:"gateway_url"`
	AccessToken    string `json:"access_token,omitempty"`
	TokenExpiresAt string `json:"token_expires_at,omitempty"`
	TokenURL       string `json:"token_url"`
	ClientID       string `json:"client_id"`
	ClientSecret   string `json:"client_secret,omitempty"`
	Scope          string `json:"scope,omitempty"`
	Region         string `json:"region,omitempty"`
}

// Expiry parses TokenExpiresAt. ok is false when the field is absent or
// malformed; callers treat that as an expired token.
func (b *Bundle) Expiry() (time.Time, bool) {
	if b.TokenExpiresAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, b.TokenExpiresAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetExpiry stores an absolute expiry in the bundle's string form.
func (b *Bundle) SetExpiry(t time.Time) {
	b.TokenExpiresAt = t.UTC().Format(time.RFC3339)
}

// Clone returns a copy so callers can mutate without racing the store.
func (b *Bundle) Clone() *Bundle {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// Store is the persistence boundary for a bundle. FileStore keeps the
// bundle in a JSON file; MemoryStore keeps it in the process only.
type Store interface {
	// Load returns the current bundle. A missing file store source returns
	// an error wrapping os.ErrNotExist.
	Load() (*Bundle, error)

	// Save replaces the stored bundle.
	Save(*Bundle) error
}

// FileStore persists the bundle as a JSON file with restricted permissions.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore creates a file store at path. An empty path resolves to
// DefaultFile in the current directory.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFile
	}
	return &FileStore{path: path}
}

// Path returns the bundle file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the bundle from disk.
func (s *FileStore) Load() (*Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("credentials file %s: %w", s.path, os.ErrNotExist)
		}
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse credentials file %s: %w", s.path, err)
	}
	return &b, nil
}

// Save writes the bundle atomically (temp file + rename) with 0600 mode.
func (s *FileStore) Save(b *Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create credentials dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write credentials temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename credentials file: %w", err)
	}

	return nil
}

// ReadOnly wraps a store so refreshed tokens are never written back.
// Loads pass through; saves are silently dropped.
func ReadOnly(s Store) Store {
	return &readOnlyStore{inner: s}
}

type readOnlyStore struct {
	inner Store
}

func (s *readOnlyStore) Load() (*Bundle, error) {
	return s.inner.Load()
}

func (s *readOnlyStore) Save(*Bundle) error {
	return nil
}

// MemoryStore holds a bundle in memory. Used when persistence is disabled
// and the credentials come from config or environment.
type MemoryStore struct {
	mu     sync.RWMutex
	bundle *Bundle
}

// NewMemoryStore creates a memory store seeded with b (may be nil).
func NewMemoryStore(b *Bundle) *MemoryStore {
	return &MemoryStore{bundle: b.Clone()}
}

// Load returns the stored bundle.
func (s *MemoryStore) Load() (*Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.bundle == nil {
		return nil, errors.New("no credentials configured")
	}
	return s.bundle.Clone(), nil
}

// Save replaces the stored bundle.
func (s *MemoryStore) Save(b *Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bundle = b.Clone()
	return nil
}
