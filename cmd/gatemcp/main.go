package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/standardbeagle/gatemcp/internal/auth"
	"github.com/standardbeagle/gatemcp/internal/config"
	"github.com/standardbeagle/gatemcp/internal/gateway"
	"github.com/standardbeagle/gatemcp/internal/logging"
)

const version = "0.1.0"

// Exit codes: 0 success, 1 operational error, 2 usage error.
const (
	exitError = 1
	exitUsage = 2
)

func main() {
	// Secrets like GATEMCP_CLIENT_SECRET and OPENAI_API_KEY may live in a
	// project .env file. Missing file is fine.
	godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitUsage)
	}

	switch os.Args[1] {
	case "auth":
		cmdAuth(os.Args[2:])
	case "gateway":
		cmdGateway(os.Args[2:])
	case "tools":
		cmdTools(os.Args[2:])
	case "call":
		cmdCall(os.Args[2:])
	case "agent":
		cmdAgent(os.Args[2:])
	case "invoke":
		cmdInvoke(os.Args[2:])
	case "version", "-v", "--version":
		fmt.Printf("gatemcp version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(exitUsage)
	}
}

func printUsage() {
	fmt.Print(`gatemcp - OAuth2-protected MCP gateway client

Usage:
  gatemcp <command> [options]

Commands:
  auth login       Authenticate with the gateway's token endpoint
  auth status      Show cached token status
  auth inspect     Decode the cached access token's JWT claims
  auth logout      Drop the cached token
  gateway add      Register a gateway in the config
  gateway add-json Register a gateway from JSON config
  gateway remove   Unregister a gateway
  gateway list     List configured gateways
  gateway status   Show live gateway connection status
  gateway paths    Show config file paths
  tools list       List the gateway's tools
  tools search     Search tools by name or description
  call             Call a gateway tool by base name
  agent ask        Ask the LLM agent a question
  agent demo       Run the showcase questions
  invoke           Send a prompt to a running agent runtime
  version          Show version
  help             Show this help

Run 'gatemcp <command> --help' for more information on a command.
`)
}

// fail prints an operational error and exits.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(exitError)
}

// loadConfig merges every config layer for the working directory.
func loadConfig() *config.Config {
	cwd, err := os.Getwd()
	if err != nil {
		fail("getting current directory: %v", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		fail("loading config: %v", err)
	}
	return cfg
}

// selectGateway picks the gateway to talk to. An explicit name must exist;
// with no name, a single configured gateway or one named "default" wins.
func selectGateway(cfg *config.Config, name string) config.GatewayConfig {
	if name != "" {
		gw, ok := cfg.Gateways[name]
		if !ok {
			fail("gateway %q is not configured (known: %s)", name, gatewayNames(cfg))
		}
		return gw
	}

	if len(cfg.Gateways) == 1 {
		for _, gw := range cfg.Gateways {
			return gw
		}
	}
	if gw, ok := cfg.Gateways[config.DefaultGatewayName]; ok {
		return gw
	}
	if len(cfg.Gateways) == 0 {
		fail("no gateways configured; add one with 'gatemcp gateway add' or place a %s file here", ".mcp-credentials.json")
	}
	fail("multiple gateways configured, pick one with --gateway (known: %s)", gatewayNames(cfg))
	return config.GatewayConfig{} // unreachable
}

func gatewayNames(cfg *config.Config) string {
	names := ""
	for name := range cfg.Gateways {
		if names != "" {
			names += ", "
		}
		names += name
	}
	if names == "" {
		return "none"
	}
	return names
}

// newManager builds the auth manager for a gateway config.
func newManager(gwCfg config.GatewayConfig) *auth.Manager {
	return auth.NewManagerWithOptions(gwCfg.CredentialStore(), auth.ManagerOptions{
		Logger: logging.Default().With("gateway", gwCfg.Name),
	})
}

// connectGateway opens an authenticated MCP session with a gateway.
func connectGateway(ctx context.Context, gwCfg config.GatewayConfig) *gateway.Client {
	log := logging.Default().With("gateway", gwCfg.Name)
	client := gateway.NewClientWithOptions(gwCfg.Name, gwCfg.URL, newManager(gwCfg), gateway.ClientOptions{
		ConnectTimeout: gateway.GetConnectionTimeout(gwCfg),
		CallTimeout:    gateway.GetCallTimeout(gwCfg),
		Logger:         log,
	})
	if err := client.Connect(ctx); err != nil {
		fail("connecting to gateway %q: %v", gwCfg.Name, err)
	}
	return client
}

// commandContext returns the root context for one CLI invocation.
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
