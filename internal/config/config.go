package config

import (
	"encoding/json"
	"os"

	"github.com/standardbeagle/gatemcp/internal/credentials"
)

// EnvClientSecret overrides the client secret from any config source so
// secrets can stay out of files checked into version control.
const EnvClientSecret = "GATEMCP_CLIENT_SECRET"

// DefaultGatewayName names gateways synthesized from a bare credentials
// bundle that has no KDL config.
const DefaultGatewayName = "default"

// Config represents the merged configuration from user and project sources.
type Config struct {
	Gateways map[string]GatewayConfig
	Agent    *AgentConfig
}

// GatewayConfig represents a single MCP gateway connection.
type GatewayConfig struct {
	Name                string `json:"name,omitempty"`
	URL                 string `json:"url,omitempty"` // overrides the bundle's gateway_url when set
	CredentialsFile     string `json:"credentials_file,omitempty"`
	TokenURL            string `json:"token_url,omitempty"`
	ClientID            string `json:"client_id,omitempty"`
	ClientSecret        string `json:"client_secret,omitempty"`
	Scope               string `json:"scope,omitempty"`
	Region              string `json:"region,omitempty"`
	Timeout             string `json:"timeout,omitempty"`
	CallTimeout         string `json:"call_timeout,omitempty"`
	Ephemeral           bool   `json:"ephemeral,omitempty"`
	MaxRetries          int    `json:"max_retries,omitempty"`
	HealthCheckInterval string `json:"health_check_interval,omitempty"`
	Source              Source `json:"-"`
}

// AgentConfig represents the agent model settings.
type AgentConfig struct {
	Model        string `json:"model,omitempty"`
	BaseURL      string `json:"base_url,omitempty"`
	APIKeyEnv    string `json:"api_key_env,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	MaxTurns     int    `json:"max_turns,omitempty"`
}

// Scope indicates where the config should be stored.
type Scope int

const (
	ScopeLocal   Scope = iota // .gatemcp.local.kdl, project-specific but not shared
	ScopeProject              // .gatemcp.kdl in project root, shared via git
	ScopeUser                 // ~/.config/gatemcp/config.kdl, personal cross-project
)

func (s Scope) String() string {
	switch s {
	case ScopeLocal:
		return "local"
	case ScopeProject:
		return "project"
	case ScopeUser:
		return "user"
	default:
		return "unknown"
	}
}

// ParseScope parses a scope string.
func ParseScope(s string) Scope {
	switch s {
	case "local":
		return ScopeLocal
	case "project":
		return ScopeProject
	case "user":
		return ScopeUser
	default:
		return ScopeProject // default
	}
}

// Source indicates where the config came from.
type Source int

const (
	SourceUser Source = iota
	SourceProject
	SourceLocal
	SourceRuntime // Dynamically registered at runtime
)

func (s Source) String() string {
	switch s {
	case SourceUser:
		return "user"
	case SourceProject:
		return "project"
	case SourceLocal:
		return "local"
	case SourceRuntime:
		return "runtime"
	default:
		return "unknown"
	}
}

// NewConfig creates an empty config.
func NewConfig() *Config {
	return &Config{
		Gateways: make(map[string]GatewayConfig),
	}
}

// JSONGatewayConfig represents a single gateway in JSON format, as accepted
// by "gatemcp gateway add --json".
type JSONGatewayConfig struct {
	URL                 string `json:"url,omitempty"`
	CredentialsFile     string `json:"credentials_file,omitempty"`
	TokenURL            string `json:"token_url,omitempty"`
	ClientID            string `json:"client_id,omitempty"`
	ClientSecret        string `json:"client_secret,omitempty"`
	Scope               string `json:"scope,omitempty"`
	Region              string `json:"region,omitempty"`
	Timeout             string `json:"timeout,omitempty"`
	CallTimeout         string `json:"call_timeout,omitempty"`
	Ephemeral           bool   `json:"ephemeral,omitempty"`
	MaxRetries          int    `json:"max_retries,omitempty"`
	HealthCheckInterval string `json:"health_check_interval,omitempty"`
}

// ParseJSONGateway parses a JSON gateway config string.
func ParseJSONGateway(data string) (*GatewayConfig, error) {
	var cfg JSONGatewayConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, err
	}

	return &GatewayConfig{
		URL:                 cfg.URL,
		CredentialsFile:     cfg.CredentialsFile,
		TokenURL:            cfg.TokenURL,
		ClientID:            cfg.ClientID,
		ClientSecret:        cfg.ClientSecret,
		Scope:               cfg.Scope,
		Region:              cfg.Region,
		Timeout:             cfg.Timeout,
		CallTimeout:         cfg.CallTimeout,
		Ephemeral:           cfg.Ephemeral,
		MaxRetries:          cfg.MaxRetries,
		HealthCheckInterval: cfg.HealthCheckInterval,
	}, nil
}

// ToJSON converts a GatewayConfig to JSON string.
func (c *GatewayConfig) ToJSON() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Bundle converts the gateway's inline credentials to a bundle. The client
// secret may come from GATEMCP_CLIENT_SECRET instead of the config file.
func (c *GatewayConfig) Bundle() *credentials.Bundle {
	secret := c.ClientSecret
	if env := os.Getenv(EnvClientSecret); env != "" {
		secret = env
	}
	return &credentials.Bundle{
		GatewayURL:   c.URL,
		TokenURL:     c.TokenURL,
		ClientID:     c.ClientID,
		ClientSecret: secret,
		Scope:        c.Scope,
		Region:       c.Region,
	}
}

// CredentialStore returns the credential store backing this gateway.
// Gateways configured inline (token-url and client-id in the config file)
// get an in-memory store; everything else reads a credentials bundle file.
// Ephemeral gateways never write refreshed tokens back.
func (c *GatewayConfig) CredentialStore() credentials.Store {
	var store credentials.Store
	if c.TokenURL != "" && c.ClientID != "" {
		store = credentials.NewMemoryStore(c.Bundle())
	} else {
		store = credentials.NewFileStore(c.CredentialsFile)
	}
	if c.Ephemeral {
		store = credentials.ReadOnly(store)
	}
	return store
}

// FromBundle synthesizes a gateway config backed by a credentials bundle
// file. Refreshed tokens persist back to that file.
func FromBundle(name, path string) GatewayConfig {
	return GatewayConfig{
		Name:            name,
		CredentialsFile: path,
	}
}
