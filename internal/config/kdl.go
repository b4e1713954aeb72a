package config

import (
	"os"
	"path/filepath"
	"strconv"

	kdl "github.com/sblinch/kdl-go"

	"github.com/standardbeagle/gatemcp/internal/credentials"
)

const (
	ProjectConfigFile = ".gatemcp.kdl"
	LocalConfigFile   = ".gatemcp.local.kdl"
	UserConfigDir     = "gatemcp"
	UserConfigFile    = "config.kdl"
)

// KDLConfig is the raw KDL structure for unmarshaling.
type KDLConfig struct {
	Gateways []KDLGatewayConfig `kdl:"gateway,multiple"`
	Agents   []KDLAgentConfig   `kdl:"agent,multiple"`
}

// KDLGatewayConfig represents a gateway node in KDL.
type KDLGatewayConfig struct {
	Name                string `kdl:",arg"`
	URL                 string `kdl:"url"`
	CredentialsFile     string `kdl:"credentials-file"`
	TokenURL            string `kdl:"token-url"`
	ClientID            string `kdl:"client-id"`
	ClientSecret        string `kdl:"client-secret"`
	Scope               string `kdl:"scope"`
	Region              string `kdl:"region"`
	Timeout             string `kdl:"timeout"`
	CallTimeout         string `kdl:"call-timeout"`
	Ephemeral           bool   `kdl:"ephemeral"`
	MaxRetries          int    `kdl:"max-retries"`
	HealthCheckInterval string `kdl:"health-check-interval"`
}

// KDLAgentConfig represents an agent node in KDL.
type KDLAgentConfig struct {
	Model        string `kdl:"model"`
	BaseURL      string `kdl:"base-url"`
	APIKeyEnv    string `kdl:"api-key-env"`
	SystemPrompt string `kdl:"system-prompt"`
	MaxTurns     int    `kdl:"max-turns"`
}

// UserConfigPath returns the path to the user config file.
func UserConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, UserConfigDir, UserConfigFile)
}

// LocalConfigPath returns the path to the local config file (project-specific, not shared).
func LocalConfigPath(dir string) string {
	return filepath.Join(dir, LocalConfigFile)
}

// ProjectConfigPath returns the path to the project config file.
func ProjectConfigPath(dir string) string {
	return filepath.Join(dir, ProjectConfigFile)
}

// BundleConfigPath returns the path to the project credentials bundle.
func BundleConfigPath(dir string) string {
	return filepath.Join(dir, credentials.DefaultFile)
}

// ConfigPathForScope returns the config path for a given scope.
func ConfigPathForScope(scope Scope, projectDir string) string {
	switch scope {
	case ScopeLocal:
		return LocalConfigPath(projectDir)
	case ScopeProject:
		return ProjectConfigPath(projectDir)
	case ScopeUser:
		return UserConfigPath()
	default:
		return ProjectConfigPath(projectDir)
	}
}

// LoadBundleConfig synthesizes gateway config from a project credentials
// bundle. Projects that carry only .mcp-credentials.json get a "default"
// gateway without any KDL config.
func LoadBundleConfig(dir string) (*Config, error) {
	cfg := NewConfig()

	path := BundleConfigPath(dir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	store := credentials.NewFileStore(path)
	if _, err := store.Load(); err != nil {
		return nil, err
	}

	gw := FromBundle(DefaultGatewayName, path)
	gw.Source = SourceProject
	cfg.Gateways[gw.Name] = gw
	return cfg, nil
}

// LoadUserConfig loads configuration from the user config file.
func LoadUserConfig() (*Config, error) {
	path := UserConfigPath()
	if path == "" {
		return NewConfig(), nil
	}
	return loadConfigFile(path, SourceUser)
}

// LoadProjectConfig loads configuration from the project config file.
func LoadProjectConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, ProjectConfigFile)
	return loadConfigFile(path, SourceProject)
}

// LoadLocalConfig loads configuration from the local config file.
func LoadLocalConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, LocalConfigFile)
	return loadConfigFile(path, SourceLocal)
}

// GetGateway returns a specific gateway config from a file.
// Handles both KDL config and credentials bundle JSON.
func GetGateway(path, name string) (*GatewayConfig, error) {
	// Try loading as KDL first
	cfg, err := loadConfigFile(path, SourceProject)
	if err == nil {
		if gw, ok := cfg.Gateways[name]; ok {
			gw.Name = name
			return &gw, nil
		}
	}

	// Try loading as a credentials bundle
	store := credentials.NewFileStore(path)
	if _, err := store.Load(); err != nil {
		return nil, nil
	}

	gw := FromBundle(name, path)
	return &gw, nil
}

// ConfigPaths returns all relevant config file paths.
func ConfigPaths(projectDir string) map[string]string {
	return map[string]string{
		"user":    UserConfigPath(),
		"project": ProjectConfigPath(projectDir),
		"local":   LocalConfigPath(projectDir),
		"bundle":  BundleConfigPath(projectDir),
	}
}

func loadConfigFile(path string, source Source) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewConfig(), nil
	}
	if err != nil {
		return nil, err
	}

	return ParseKDLConfig(string(data), source)
}

// ParseKDLConfig parses KDL configuration data.
func ParseKDLConfig(data string, source Source) (*Config, error) {
	var kdlCfg KDLConfig
	if err := kdl.Unmarshal([]byte(data), &kdlCfg); err != nil {
		return nil, err
	}

	cfg := NewConfig()
	for _, g := range kdlCfg.Gateways {
		cfg.Gateways[g.Name] = GatewayConfig{
			Name:                g.Name,
			URL:                 g.URL,
			CredentialsFile:     g.CredentialsFile,
			TokenURL:            g.TokenURL,
			ClientID:            g.ClientID,
			ClientSecret:        g.ClientSecret,
			Scope:               g.Scope,
			Region:              g.Region,
			Timeout:             g.Timeout,
			CallTimeout:         g.CallTimeout,
			Ephemeral:           g.Ephemeral,
			MaxRetries:          g.MaxRetries,
			HealthCheckInterval: g.HealthCheckInterval,
			Source:              source,
		}
	}

	// Last agent block wins
	for _, a := range kdlCfg.Agents {
		cfg.Agent = &AgentConfig{
			Model:        a.Model,
			BaseURL:      a.BaseURL,
			APIKeyEnv:    a.APIKeyEnv,
			SystemPrompt: a.SystemPrompt,
			MaxTurns:     a.MaxTurns,
		}
	}

	return cfg, nil
}

// AddGatewayToFile adds a gateway configuration to a KDL file.
func AddGatewayToFile(path, name, url string) error {
	return AddGatewayConfigToFile(path, GatewayConfig{
		Name: name,
		URL:  url,
	})
}

// AddGatewayConfigToFile adds a full gateway configuration to a KDL file.
func AddGatewayConfigToFile(path string, gw GatewayConfig) error {
	// Load existing config or create new
	cfg, err := loadConfigFile(path, SourceProject)
	if err != nil {
		return err
	}

	// Add the new gateway
	cfg.Gateways[gw.Name] = gw

	// Write back to file
	return WriteConfigFile(path, cfg)
}

// RemoveGatewayFromFile removes a gateway configuration from a KDL file.
func RemoveGatewayFromFile(path, name string) error {
	cfg, err := loadConfigFile(path, SourceProject)
	if err != nil {
		return err
	}

	delete(cfg.Gateways, name)
	return WriteConfigFile(path, cfg)
}

// WriteConfigFile writes a config to a KDL file.
func WriteConfigFile(path string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Build KDL content
	var content string
	for _, gw := range cfg.Gateways {
		content += formatGatewayBlock(gw)
	}
	if cfg.Agent != nil {
		content += formatAgentBlock(cfg.Agent)
	}

	return os.WriteFile(path, []byte(content), 0644)
}

func formatGatewayBlock(gw GatewayConfig) string {
	result := "gateway \"" + gw.Name + "\" {\n"

	if gw.URL != "" {
		result += "    url \"" + gw.URL + "\"\n"
	}

	if gw.CredentialsFile != "" {
		result += "    credentials-file \"" + gw.CredentialsFile + "\"\n"
	}

	if gw.TokenURL != "" {
		result += "    token-url \"" + gw.TokenURL + "\"\n"
	}

	if gw.ClientID != "" {
		result += "    client-id \"" + gw.ClientID + "\"\n"
	}

	if gw.ClientSecret != "" {
		result += "    client-secret \"" + gw.ClientSecret + "\"\n"
	}

	if gw.Scope != "" {
		result += "    scope \"" + gw.Scope + "\"\n"
	}

	if gw.Region != "" {
		result += "    region \"" + gw.Region + "\"\n"
	}

	if gw.Timeout != "" {
		result += "    timeout \"" + gw.Timeout + "\"\n"
	}

	if gw.CallTimeout != "" {
		result += "    call-timeout \"" + gw.CallTimeout + "\"\n"
	}

	if gw.Ephemeral {
		result += "    ephemeral true\n"
	}

	if gw.MaxRetries > 0 {
		result += "    max-retries " + strconv.Itoa(gw.MaxRetries) + "\n"
	}

	if gw.HealthCheckInterval != "" {
		result += "    health-check-interval \"" + gw.HealthCheckInterval + "\"\n"
	}

	result += "}\n\n"
	return result
}

func formatAgentBlock(a *AgentConfig) string {
	result := "agent {\n"

	if a.Model != "" {
		result += "    model \"" + a.Model + "\"\n"
	}

	if a.BaseURL != "" {
		result += "    base-url \"" + a.BaseURL + "\"\n"
	}

	if a.APIKeyEnv != "" {
		result += "    api-key-env \"" + a.APIKeyEnv + "\"\n"
	}

	if a.SystemPrompt != "" {
		result += "    system-prompt \"" + a.SystemPrompt + "\"\n"
	}

	if a.MaxTurns > 0 {
		result += "    max-turns " + strconv.Itoa(a.MaxTurns) + "\n"
	}

	result += "}\n\n"
	return result
}
