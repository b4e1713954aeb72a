package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKDLConfig_BundleBacked(t *testing.T) {
	tests := []struct {
		name     string
		kdl      string
		expected GatewayConfig
	}{
		{
			name: "url with credentials file",
			kdl: `gateway "prod" {
    url "https://gw.example.com/mcp"
    credentials-file ".mcp-credentials.json"
}`,
			expected: GatewayConfig{
				Name:            "prod",
				URL:             "https://gw.example.com/mcp",
				CredentialsFile: ".mcp-credentials.json",
				Source:          SourceProject,
			},
		},
		{
			name: "credentials file only",
			kdl: `gateway "bundle-only" {
    credentials-file "deploy/creds.json"
}`,
			expected: GatewayConfig{
				Name:            "bundle-only",
				CredentialsFile: "deploy/creds.json",
				Source:          SourceProject,
			},
		},
		{
			name: "url only",
			kdl: `gateway "simple" {
    url "https://gateway.internal/mcp"
}`,
			expected: GatewayConfig{
				Name:   "simple",
				URL:    "https://gateway.internal/mcp",
				Source: SourceProject,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseKDLConfig(tt.kdl, SourceProject)
			require.NoError(t, err)
			require.NotNil(t, cfg)
			require.Len(t, cfg.Gateways, 1)

			gw, ok := cfg.Gateways[tt.expected.Name]
			require.True(t, ok, "gateway %s not found", tt.expected.Name)

			assert.Equal(t, tt.expected.Name, gw.Name)
			assert.Equal(t, tt.expected.URL, gw.URL)
			assert.Equal(t, tt.expected.CredentialsFile, gw.CredentialsFile)
			assert.Equal(t, tt.expected.Source, gw.Source)
		})
	}
}

func TestParseKDLConfig_InlineCredentials(t *testing.T) {
	tests := []struct {
		name     string
		kdl      string
		expected GatewayConfig
	}{
		{
			name: "full client credentials",
			kdl: `gateway "staging" {
    url "https://staging.example.com/mcp"
    token-url "https://auth.example.com/oauth2/token"
    client-id "client-123"
    client-secret "secret-456"
    scope "gateway/invoke"
}`,
			expected: GatewayConfig{
				Name:         "staging",
				URL:          "https://staging.example.com/mcp",
				TokenURL:     "https://auth.example.com/oauth2/token",
				ClientID:     "client-123",
				ClientSecret: "secret-456",
				Scope:        "gateway/invoke",
				Source:       SourceProject,
			},
		},
		{
			name: "credentials without secret",
			kdl: `gateway "env-secret" {
    url "https://gw.example.com/mcp"
    token-url "https://auth.example.com/oauth2/token"
    client-id "client-123"
}`,
			expected: GatewayConfig{
				Name:     "env-secret",
				URL:      "https://gw.example.com/mcp",
				TokenURL: "https://auth.example.com/oauth2/token",
				ClientID: "client-123",
				Source:   SourceProject,
			},
		},
		{
			name: "with region",
			kdl: `gateway "aws" {
    url "https://gw.us-east-1.example.com/mcp"
    token-url "https://cognito.example.com/oauth2/token"
    client-id "client-789"
    region "us-east-1"
}`,
			expected: GatewayConfig{
				Name:     "aws",
				URL:      "https://gw.us-east-1.example.com/mcp",
				TokenURL: "https://cognito.example.com/oauth2/token",
				ClientID: "client-789",
				Region:   "us-east-1",
				Source:   SourceProject,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseKDLConfig(tt.kdl, SourceProject)
			require.NoError(t, err)
			require.NotNil(t, cfg)

			gw, ok := cfg.Gateways[tt.expected.Name]
			require.True(t, ok, "gateway %s not found", tt.expected.Name)

			assert.Equal(t, tt.expected.Name, gw.Name)
			assert.Equal(t, tt.expected.URL, gw.URL)
			assert.Equal(t, tt.expected.TokenURL, gw.TokenURL)
			assert.Equal(t, tt.expected.ClientID, gw.ClientID)
			assert.Equal(t, tt.expected.ClientSecret, gw.ClientSecret)
			assert.Equal(t, tt.expected.Scope, gw.Scope)
			assert.Equal(t, tt.expected.Region, gw.Region)
			assert.Equal(t, tt.expected.Source, gw.Source)
		})
	}
}

func TestParseKDLConfig_InvalidSyntax(t *testing.T) {
	tests := []struct {
		name string
		kdl  string
	}{
		{
			name: "unclosed brace",
			kdl: `gateway "broken" {
    url "https://gw.example.com/mcp"
`,
		},
		{
			name: "unclosed string",
			kdl: `gateway "broken {
    url "https://gw.example.com/mcp"
}`,
		},
		{
			name: "invalid nesting",
			kdl: `gateway "broken" {
    url "https://gw.example.com/mcp"
}
}`,
		},
		{
			name: "missing node name",
			kdl: `{
    url "https://gw.example.com/mcp"
}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseKDLConfig(tt.kdl, SourceProject)
			// Either returns error or empty config for invalid input
			if err != nil {
				assert.Error(t, err)
			} else {
				// Some invalid KDL may not parse the gateway node correctly
				assert.NotNil(t, cfg)
			}
		})
	}
}

func TestParseKDLConfig_EmptyAndMinimal(t *testing.T) {
	tests := []struct {
		name        string
		kdl         string
		expectEmpty bool
		expectCount int
	}{
		{
			name:        "empty string",
			kdl:         "",
			expectEmpty: true,
			expectCount: 0,
		},
		{
			name:        "whitespace only",
			kdl:         "   \n\t  \n",
			expectEmpty: true,
			expectCount: 0,
		},
		{
			name: "comment only",
			kdl: `// This is a comment
// Another comment`,
			expectEmpty: true,
			expectCount: 0,
		},
		{
			name: "minimal valid config",
			kdl: `gateway "minimal" {
}`,
			expectEmpty: false,
			expectCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseKDLConfig(tt.kdl, SourceProject)
			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.expectEmpty {
				assert.Len(t, cfg.Gateways, 0)
			} else {
				assert.Len(t, cfg.Gateways, tt.expectCount)
			}
		})
	}
}

func TestParseKDLConfig_MultipleGateways(t *testing.T) {
	kdl := `gateway "prod" {
    url "https://prod.example.com/mcp"
    credentials-file ".mcp-credentials.json"
}

gateway "staging" {
    url "https://staging.example.com/mcp"
    token-url "https://auth.example.com/oauth2/token"
    client-id "client-staging"
}

gateway "local" {
    url "http://localhost:8080/mcp"
    ephemeral true
}`

	cfg, err := ParseKDLConfig(kdl, SourceProject)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Len(t, cfg.Gateways, 3)

	// Verify prod
	prod, ok := cfg.Gateways["prod"]
	require.True(t, ok)
	assert.Equal(t, "https://prod.example.com/mcp", prod.URL)
	assert.Equal(t, ".mcp-credentials.json", prod.CredentialsFile)

	// Verify staging
	staging, ok := cfg.Gateways["staging"]
	require.True(t, ok)
	assert.Equal(t, "https://auth.example.com/oauth2/token", staging.TokenURL)
	assert.Equal(t, "client-staging", staging.ClientID)

	// Verify local
	local, ok := cfg.Gateways["local"]
	require.True(t, ok)
	assert.Equal(t, "http://localhost:8080/mcp", local.URL)
	assert.True(t, local.Ephemeral)
}

func TestParseKDLConfig_SourcePreservation(t *testing.T) {
	kdl := `gateway "test" {
    url "https://gw.example.com/mcp"
}`

	sources := []Source{SourceUser, SourceProject, SourceLocal, SourceRuntime}

	for _, source := range sources {
		t.Run(source.String(), func(t *testing.T) {
			cfg, err := ParseKDLConfig(kdl, source)
			require.NoError(t, err)

			gw, ok := cfg.Gateways["test"]
			require.True(t, ok)
			assert.Equal(t, source, gw.Source)
		})
	}
}

func TestParseKDLConfig_CompleteConfig(t *testing.T) {
	kdl := `gateway "complete-gateway" {
    url "https://gw.example.com/mcp"
    credentials-file "creds/prod.json"
    token-url "https://auth.example.com/oauth2/token"
    client-id "client-123"
    client-secret "secret-456"
    scope "gateway/invoke gateway/read"
    region "eu-west-1"
    timeout "45s"
    call-timeout "3m"
    ephemeral true
    max-retries 3
    health-check-interval "30s"
}`

	cfg, err := ParseKDLConfig(kdl, SourceProject)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	gw, ok := cfg.Gateways["complete-gateway"]
	require.True(t, ok)

	assert.Equal(t, "complete-gateway", gw.Name)
	assert.Equal(t, "https://gw.example.com/mcp", gw.URL)
	assert.Equal(t, "creds/prod.json", gw.CredentialsFile)
	assert.Equal(t, "https://auth.example.com/oauth2/token", gw.TokenURL)
	assert.Equal(t, "client-123", gw.ClientID)
	assert.Equal(t, "secret-456", gw.ClientSecret)
	assert.Equal(t, "gateway/invoke gateway/read", gw.Scope)
	assert.Equal(t, "eu-west-1", gw.Region)
	assert.Equal(t, "45s", gw.Timeout)
	assert.Equal(t, "3m", gw.CallTimeout)
	assert.True(t, gw.Ephemeral)
	assert.Equal(t, 3, gw.MaxRetries)
	assert.Equal(t, "30s", gw.HealthCheckInterval)
}

func TestParseKDLConfig_DuplicateGatewayNames(t *testing.T) {
	// When there are duplicate gateway names, the last one should win
	kdl := `gateway "duplicate" {
    url "https://first.example.com/mcp"
}

gateway "duplicate" {
    url "https://second.example.com/mcp"
    region "us-west-2"
}`

	cfg, err := ParseKDLConfig(kdl, SourceProject)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Only one entry for "duplicate" should exist
	assert.Len(t, cfg.Gateways, 1)

	gw, ok := cfg.Gateways["duplicate"]
	require.True(t, ok)

	// Last one wins
	assert.Equal(t, "https://second.example.com/mcp", gw.URL)
	assert.Equal(t, "us-west-2", gw.Region)
}

func TestParseKDLConfig_SpecialCharactersInName(t *testing.T) {
	tests := []struct {
		name        string
		kdl         string
		gatewayName string
	}{
		{
			name: "hyphenated name",
			kdl: `gateway "my-prod-gateway" {
    url "https://gw.example.com/mcp"
}`,
			gatewayName: "my-prod-gateway",
		},
		{
			name: "underscored name",
			kdl: `gateway "my_prod_gateway" {
    url "https://gw.example.com/mcp"
}`,
			gatewayName: "my_prod_gateway",
		},
		{
			name: "name with dots",
			kdl: `gateway "com.example.gateway" {
    url "https://gw.example.com/mcp"
}`,
			gatewayName: "com.example.gateway",
		},
		{
			name: "name with slash",
			kdl: `gateway "team/payments" {
    url "https://gw.example.com/mcp"
}`,
			gatewayName: "team/payments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseKDLConfig(tt.kdl, SourceProject)
			require.NoError(t, err)
			require.NotNil(t, cfg)

			gw, ok := cfg.Gateways[tt.gatewayName]
			require.True(t, ok, "gateway %s not found", tt.gatewayName)
			assert.Equal(t, tt.gatewayName, gw.Name)
		})
	}
}

func TestParseKDLConfig_Timeouts(t *testing.T) {
	tests := []struct {
		name    string
		kdl     string
		connect string
		call    string
	}{
		{
			name: "connect timeout in seconds",
			kdl: `gateway "slow" {
    url "https://slow.example.com/mcp"
    timeout "60s"
}`,
			connect: "60s",
		},
		{
			name: "call timeout in minutes",
			kdl: `gateway "long-running" {
    url "https://gw.example.com/mcp"
    call-timeout "5m"
}`,
			call: "5m",
		},
		{
			name: "both timeouts",
			kdl: `gateway "tuned" {
    url "https://gw.example.com/mcp"
    timeout "10s"
    call-timeout "90s"
}`,
			connect: "10s",
			call:    "90s",
		},
		{
			name: "without timeouts",
			kdl: `gateway "default" {
    url "https://gw.example.com/mcp"
}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseKDLConfig(tt.kdl, SourceProject)
			require.NoError(t, err)
			require.NotNil(t, cfg)
			require.Len(t, cfg.Gateways, 1)

			var gw GatewayConfig
			for _, g := range cfg.Gateways {
				gw = g
				break
			}

			assert.Equal(t, tt.connect, gw.Timeout)
			assert.Equal(t, tt.call, gw.CallTimeout)
		})
	}
}

func TestParseKDLConfig_Ephemeral(t *testing.T) {
	tests := []struct {
		name              string
		kdl               string
		expectedEphemeral bool
	}{
		{
			name: "with ephemeral true",
			kdl: `gateway "throwaway" {
    url "https://gw.example.com/mcp"
    ephemeral true
}`,
			expectedEphemeral: true,
		},
		{
			name: "with ephemeral false",
			kdl: `gateway "persistent" {
    url "https://gw.example.com/mcp"
    ephemeral false
}`,
			expectedEphemeral: false,
		},
		{
			name: "without ephemeral (default false)",
			kdl: `gateway "default" {
    url "https://gw.example.com/mcp"
}`,
			expectedEphemeral: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseKDLConfig(tt.kdl, SourceProject)
			require.NoError(t, err)
			require.NotNil(t, cfg)
			require.Len(t, cfg.Gateways, 1)

			var gw GatewayConfig
			for _, g := range cfg.Gateways {
				gw = g
				break
			}

			assert.Equal(t, tt.expectedEphemeral, gw.Ephemeral)
		})
	}
}

func TestParseKDLConfig_AgentBlock(t *testing.T) {
	kdl := `gateway "prod" {
    url "https://gw.example.com/mcp"
}

agent {
    model "gpt-4o"
    base-url "https://api.openai.com/v1"
    api-key-env "OPENAI_API_KEY"
    system-prompt "You are a helpful assistant."
    max-turns 10
}`

	cfg, err := ParseKDLConfig(kdl, SourceProject)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.Agent)

	assert.Equal(t, "gpt-4o", cfg.Agent.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Agent.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Agent.APIKeyEnv)
	assert.Equal(t, "You are a helpful assistant.", cfg.Agent.SystemPrompt)
	assert.Equal(t, 10, cfg.Agent.MaxTurns)
}

func TestParseKDLConfig_NoAgentBlock(t *testing.T) {
	kdl := `gateway "prod" {
    url "https://gw.example.com/mcp"
}`

	cfg, err := ParseKDLConfig(kdl, SourceProject)
	require.NoError(t, err)
	assert.Nil(t, cfg.Agent)
}

func TestParseKDLConfig_LastAgentBlockWins(t *testing.T) {
	kdl := `agent {
    model "gpt-4o-mini"
}

agent {
    model "gpt-4o"
    max-turns 5
}`

	cfg, err := ParseKDLConfig(kdl, SourceProject)
	require.NoError(t, err)
	require.NotNil(t, cfg.Agent)
	assert.Equal(t, "gpt-4o", cfg.Agent.Model)
	assert.Equal(t, 5, cfg.Agent.MaxTurns)
}

func TestFormatGatewayBlock(t *testing.T) {
	tests := []struct {
		name     string
		gw       GatewayConfig
		contains []string
	}{
		{
			name: "bundle backed",
			gw: GatewayConfig{
				Name:            "prod",
				URL:             "https://gw.example.com/mcp",
				CredentialsFile: ".mcp-credentials.json",
			},
			contains: []string{
				`gateway "prod"`,
				`url "https://gw.example.com/mcp"`,
				`credentials-file ".mcp-credentials.json"`,
			},
		},
		{
			name: "inline credentials",
			gw: GatewayConfig{
				Name:     "staging",
				URL:      "https://staging.example.com/mcp",
				TokenURL: "https://auth.example.com/oauth2/token",
				ClientID: "client-123",
				Scope:    "gateway/invoke",
			},
			contains: []string{
				`gateway "staging"`,
				`token-url "https://auth.example.com/oauth2/token"`,
				`client-id "client-123"`,
				`scope "gateway/invoke"`,
			},
		},
		{
			name: "with retries and health check",
			gw: GatewayConfig{
				Name:                "watched",
				URL:                 "https://gw.example.com/mcp",
				MaxRetries:          5,
				HealthCheckInterval: "1m",
			},
			contains: []string{
				`gateway "watched"`,
				"max-retries 5",
				`health-check-interval "1m"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatGatewayBlock(tt.gw)

			for _, expected := range tt.contains {
				assert.Contains(t, result, expected, "output should contain: %s", expected)
			}
		})
	}
}

func TestFormatGatewayBlock_WithEphemeral(t *testing.T) {
	gw := GatewayConfig{
		Name:      "throwaway",
		URL:       "https://gw.example.com/mcp",
		Ephemeral: true,
	}

	result := formatGatewayBlock(gw)
	assert.Contains(t, result, "ephemeral true")
	assert.Contains(t, result, `gateway "throwaway"`)
}

func TestFormatGatewayBlock_WithoutEphemeral(t *testing.T) {
	gw := GatewayConfig{
		Name: "persistent",
		URL:  "https://gw.example.com/mcp",
	}

	result := formatGatewayBlock(gw)
	assert.NotContains(t, result, "ephemeral")
}

func TestFormatGatewayBlock_RoundTrip(t *testing.T) {
	// Test that we can format and then parse back
	original := GatewayConfig{
		Name:         "roundtrip",
		URL:          "https://gw.example.com/mcp",
		TokenURL:     "https://auth.example.com/oauth2/token",
		ClientID:     "client-123",
		ClientSecret: "secret-456",
		Scope:        "gateway/invoke",
		Region:       "us-east-1",
	}

	formatted := formatGatewayBlock(original)
	cfg, err := ParseKDLConfig(formatted, SourceProject)
	require.NoError(t, err)

	parsed, ok := cfg.Gateways["roundtrip"]
	require.True(t, ok)

	assert.Equal(t, original.Name, parsed.Name)
	assert.Equal(t, original.URL, parsed.URL)
	assert.Equal(t, original.TokenURL, parsed.TokenURL)
	assert.Equal(t, original.ClientID, parsed.ClientID)
	assert.Equal(t, original.ClientSecret, parsed.ClientSecret)
	assert.Equal(t, original.Scope, parsed.Scope)
	assert.Equal(t, original.Region, parsed.Region)
}

func TestFormatGatewayBlock_RoundTripWithTimeouts(t *testing.T) {
	original := GatewayConfig{
		Name:        "roundtrip-timeout",
		URL:         "https://gw.example.com/mcp",
		Timeout:     "90s",
		CallTimeout: "4m",
	}

	formatted := formatGatewayBlock(original)
	cfg, err := ParseKDLConfig(formatted, SourceProject)
	require.NoError(t, err)

	parsed, ok := cfg.Gateways["roundtrip-timeout"]
	require.True(t, ok)

	assert.Equal(t, original.Timeout, parsed.Timeout)
	assert.Equal(t, original.CallTimeout, parsed.CallTimeout)
}

func TestFormatGatewayBlock_RoundTripWithRetries(t *testing.T) {
	original := GatewayConfig{
		Name:                "roundtrip-retries",
		URL:                 "https://gw.example.com/mcp",
		MaxRetries:          7,
		HealthCheckInterval: "45s",
	}

	formatted := formatGatewayBlock(original)
	cfg, err := ParseKDLConfig(formatted, SourceProject)
	require.NoError(t, err)

	parsed, ok := cfg.Gateways["roundtrip-retries"]
	require.True(t, ok)

	assert.Equal(t, original.MaxRetries, parsed.MaxRetries)
	assert.Equal(t, original.HealthCheckInterval, parsed.HealthCheckInterval)
}

func TestFormatAgentBlock_RoundTrip(t *testing.T) {
	original := &AgentConfig{
		Model:        "gpt-4o",
		BaseURL:      "https://api.openai.com/v1",
		APIKeyEnv:    "OPENAI_API_KEY",
		SystemPrompt: "You answer tersely.",
		MaxTurns:     8,
	}

	formatted := formatAgentBlock(original)
	cfg, err := ParseKDLConfig(formatted, SourceProject)
	require.NoError(t, err)
	require.NotNil(t, cfg.Agent)

	assert.Equal(t, original.Model, cfg.Agent.Model)
	assert.Equal(t, original.BaseURL, cfg.Agent.BaseURL)
	assert.Equal(t, original.APIKeyEnv, cfg.Agent.APIKeyEnv)
	assert.Equal(t, original.SystemPrompt, cfg.Agent.SystemPrompt)
	assert.Equal(t, original.MaxTurns, cfg.Agent.MaxTurns)
}
