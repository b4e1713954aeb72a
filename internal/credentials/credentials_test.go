package credentials

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Bundle.Expiry Tests
// =============================================================================

func TestBundle_Expiry_Empty(t *testing.T) {
	b := &Bundle{}
	_, ok := b.Expiry()
	assert.False(t, ok, "empty expiry should not parse")
}

func TestBundle_Expiry_Malformed(t *testing.T) {
	b := &Bundle{TokenExpiresAt: "not-a-timestamp"}
	_, ok := b.Expiry()
	assert.False(t, ok, "malformed expiry should not parse")
}

func TestBundle_Expiry_Valid(t *testing.T) {
	b := &Bundle{TokenExpiresAt: "2026-01-15T12:00:00Z"}
	exp, ok := b.Expiry()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC), exp)
}

func TestBundle_SetExpiry_RoundTrips(t *testing.T) {
	b := &Bundle{}
	want := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	b.SetExpiry(want)

	got, ok := b.Expiry()
	require.True(t, ok)
	assert.True(t, got.Equal(want))
}

func TestBundle_SetExpiry_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	b := &Bundle{}
	b.SetExpiry(time.Date(2026, 3, 1, 14, 30, 0, 0, loc))

	// Stored string is UTC
	assert.Equal(t, "2026-03-01T09:30:00Z", b.TokenExpiresAt)
}

func TestBundle_Clone_Independent(t *testing.T) {
	b := &Bundle{GatewayURL: "https://gw.example.com/mcp", AccessToken: "tok"}
	c := b.Clone()
	c.AccessToken = "changed"
	assert.Equal(t, "tok", b.AccessToken, "clone should not alias the original")
}

func TestBundle_Clone_Nil(t *testing.T) {
	var b *Bundle
	assert.Nil(t, b.Clone())
}

// =============================================================================
// FileStore Load Tests
// =============================================================================

func TestFileStore_Load_MissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewFileStore(filepath.Join(tmpDir, ".mcp-credentials.json"))

	_, err := store.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist), "missing file should report os.ErrNotExist")
}

func TestFileStore_Load_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".mcp-credentials.json")
	err := os.WriteFile(path, []byte("not valid json {"), 0600)
	require.NoError(t, err)

	store := NewFileStore(path)
	_, err = store.Load()
	assert.Error(t, err)
}

func TestFileStore_Load_AllFields(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".mcp-credentials.json")

	// Pre-create bundle file the way deployment tooling writes it
	raw := `{
  "gateway_url": "https://gw.example.com/mcp",
  "access_token": "stored-token",
  "token_expires_at": "2026-06-01T00:00:00Z",
  "token_url": "https://auth.example.com/oauth2/token",
  "client_id": "client-123",
  "client_secret": "secret-456",
  "scope": "gateway/invoke",
  "region": "us-east-1"
}`
	err := os.WriteFile(path, []byte(raw), 0600)
	require.NoError(t, err)

	store := NewFileStore(path)
	b, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://gw.example.com/mcp", b.GatewayURL)
	assert.Equal(t, "stored-token", b.AccessToken)
	assert.Equal(t, "2026-06-01T00:00:00Z", b.TokenExpiresAt)
	assert.Equal(t, "https://auth.example.com/oauth2/token", b.TokenURL)
	assert.Equal(t, "client-123", b.ClientID)
	assert.Equal(t, "secret-456", b.ClientSecret)
	assert.Equal(t, "gateway/invoke", b.Scope)
	assert.Equal(t, "us-east-1", b.Region)
}

func TestFileStore_Load_UnknownFieldsIgnored(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".mcp-credentials.json")

	raw := `{"gateway_url": "https://gw.example.com/mcp", "deployment_id": "extra"}`
	err := os.WriteFile(path, []byte(raw), 0600)
	require.NoError(t, err)

	store := NewFileStore(path)
	b, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://gw.example.com/mcp", b.GatewayURL)
}

// =============================================================================
// FileStore Save Tests
// =============================================================================

func TestFileStore_Save_RoundTrips(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewFileStore(filepath.Join(tmpDir, ".mcp-credentials.json"))

	b := &Bundle{
		GatewayURL:  "https://gw.example.com/mcp",
		AccessToken: "new-token",
		TokenURL:    "https://auth.example.com/oauth2/token",
		ClientID:    "client-123",
	}
	err := store.Save(b)
	require.NoError(t, err)

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestFileStore_Save_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config", "gatemcp", "credentials.json")
	store := NewFileStore(path)

	err := store.Save(&Bundle{GatewayURL: "https://gw.example.com/mcp"})
	require.NoError(t, err)

	dirInfo, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm(), "directory should have 0700 permissions")
}

func TestFileStore_Save_FilePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".mcp-credentials.json")
	store := NewFileStore(path)

	err := store.Save(&Bundle{GatewayURL: "https://gw.example.com/mcp", ClientSecret: "secret"})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "file should have 0600 permissions")
}

func TestFileStore_Save_NoTempFileLeftBehind(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".mcp-credentials.json")
	store := NewFileStore(path)

	err := store.Save(&Bundle{GatewayURL: "https://gw.example.com/mcp"})
	require.NoError(t, err)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestFileStore_Save_FormatsJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".mcp-credentials.json")
	store := NewFileStore(path)

	err := store.Save(&Bundle{GatewayURL: "https://gw.example.com/mcp"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n", "JSON should be pretty printed")
	assert.Contains(t, string(data), "  ", "JSON should be indented")
}

func TestFileStore_Save_OmitsEmptyOptionalFields(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".mcp-credentials.json")
	store := NewFileStore(path)

	err := store.Save(&Bundle{
		GatewayURL: "https://gw.example.com/mcp",
		TokenURL:   "https://auth.example.com/oauth2/token",
		ClientID:   "client-123",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "client_secret")
	assert.NotContains(t, string(data), "access_token")
	assert.NotContains(t, string(data), "region")
}

func TestFileStore_Save_NonWritableDirectory(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("Test not applicable when running as root")
	}

	tmpDir := t.TempDir()
	restrictedDir := filepath.Join(tmpDir, "restricted")
	err := os.Mkdir(restrictedDir, 0555)
	require.NoError(t, err)

	t.Cleanup(func() {
		os.Chmod(restrictedDir, 0755)
	})

	store := NewFileStore(filepath.Join(restrictedDir, "credentials.json"))
	err = store.Save(&Bundle{GatewayURL: "https://gw.example.com/mcp"})
	assert.Error(t, err, "should fail to write to non-writable directory")
}

// =============================================================================
// FileStore Concurrency Tests
// =============================================================================

func TestFileStore_ConcurrentReadWrite(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".mcp-credentials.json")
	store := NewFileStore(path)

	err := store.Save(&Bundle{GatewayURL: "https://gw.example.com/mcp", AccessToken: "seed"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			if _, err := store.Load(); err != nil {
				errs <- err
			}
		}()

		go func(i int) {
			defer wg.Done()
			b := &Bundle{
				GatewayURL:  "https://gw.example.com/mcp",
				AccessToken: "token-" + string(rune('a'+i%26)),
			}
			if err := store.Save(b); err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent access error: %v", err)
	}

	// Verify file is valid JSON after the churn
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var b Bundle
	assert.NoError(t, json.Unmarshal(data, &b), "file should contain valid JSON after concurrent writes")
}

// =============================================================================
// NewFileStore Tests
// =============================================================================

func TestNewFileStore_DefaultPath(t *testing.T) {
	store := NewFileStore("")
	assert.Equal(t, DefaultFile, store.Path())
}

func TestNewFileStore_CustomPath(t *testing.T) {
	store := NewFileStore("/custom/path/creds.json")
	assert.Equal(t, "/custom/path/creds.json", store.Path())
}

// =============================================================================
// MemoryStore Tests
// =============================================================================

func TestMemoryStore_Empty(t *testing.T) {
	store := NewMemoryStore(nil)
	_, err := store.Load()
	assert.Error(t, err)
}

func TestMemoryStore_Seeded(t *testing.T) {
	store := NewMemoryStore(&Bundle{GatewayURL: "https://gw.example.com/mcp"})
	b, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://gw.example.com/mcp", b.GatewayURL)
}

func TestMemoryStore_SaveThenLoad(t *testing.T) {
	store := NewMemoryStore(nil)
	err := store.Save(&Bundle{GatewayURL: "https://gw.example.com/mcp", AccessToken: "tok"})
	require.NoError(t, err)

	b, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", b.AccessToken)
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	store := NewMemoryStore(&Bundle{AccessToken: "original"})

	b, err := store.Load()
	require.NoError(t, err)
	b.AccessToken = "mutated"

	b2, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "original", b2.AccessToken, "caller mutation should not leak into the store")
}

// =============================================================================
// ReadOnly Store Tests
// =============================================================================

func TestReadOnly_LoadPassesThrough(t *testing.T) {
	store := ReadOnly(NewMemoryStore(&Bundle{GatewayURL: "https://gw.example.com/mcp"}))

	b, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://gw.example.com/mcp", b.GatewayURL)
}

func TestReadOnly_SaveIsDropped(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".mcp-credentials.json")
	inner := NewFileStore(path)
	err := inner.Save(&Bundle{GatewayURL: "https://gw.example.com/mcp", AccessToken: "original"})
	require.NoError(t, err)

	store := ReadOnly(inner)
	err = store.Save(&Bundle{GatewayURL: "https://gw.example.com/mcp", AccessToken: "refreshed"})
	require.NoError(t, err, "save reports success without persisting")

	b, err := inner.Load()
	require.NoError(t, err)
	assert.Equal(t, "original", b.AccessToken, "the underlying file should be untouched")
}
