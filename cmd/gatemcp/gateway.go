package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/standardbeagle/gatemcp/internal/config"
	"github.com/standardbeagle/gatemcp/internal/logging"
	"github.com/standardbeagle/gatemcp/internal/registry"
)

func cmdGateway(args []string) {
	if len(args) < 1 {
		printGatewayUsage()
		os.Exit(exitUsage)
	}

	switch args[0] {
	case "add":
		cmdGatewayAdd(args[1:])
	case "add-json":
		cmdGatewayAddJSON(args[1:])
	case "remove", "rm":
		cmdGatewayRemove(args[1:])
	case "list", "ls":
		cmdGatewayList(args[1:])
	case "status":
		cmdGatewayStatus(args[1:])
	case "paths":
		cmdGatewayPaths(args[1:])
	case "help", "-h", "--help":
		printGatewayUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown gateway subcommand: %s\n\n", args[0])
		printGatewayUsage()
		os.Exit(exitUsage)
	}
}

func cmdGatewayAdd(args []string) {
	scope := config.ScopeProject
	gw := config.GatewayConfig{}

	var positional []string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--local":
			scope = config.ScopeLocal
		case args[i] == "--project":
			scope = config.ScopeProject
		case args[i] == "--user":
			scope = config.ScopeUser
		case strings.HasPrefix(args[i], "--token-url="):
			gw.TokenURL = strings.TrimPrefix(args[i], "--token-url=")
		case strings.HasPrefix(args[i], "--client-id="):
			gw.ClientID = strings.TrimPrefix(args[i], "--client-id=")
		case strings.HasPrefix(args[i], "--scope="):
			gw.Scope = strings.TrimPrefix(args[i], "--scope=")
		case strings.HasPrefix(args[i], "--region="):
			gw.Region = strings.TrimPrefix(args[i], "--region=")
		case strings.HasPrefix(args[i], "--credentials-file="):
			gw.CredentialsFile = strings.TrimPrefix(args[i], "--credentials-file=")
		case strings.HasPrefix(args[i], "--timeout="):
			gw.Timeout = strings.TrimPrefix(args[i], "--timeout=")
		case strings.HasPrefix(args[i], "--call-timeout="):
			gw.CallTimeout = strings.TrimPrefix(args[i], "--call-timeout=")
		case args[i] == "--ephemeral":
			gw.Ephemeral = true
		case args[i] == "--help" || args[i] == "-h":
			printGatewayAddUsage()
			return
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) < 1 {
		fmt.Fprintln(os.Stderr, "Error: name is required")
		printGatewayAddUsage()
		os.Exit(exitUsage)
	}
	gw.Name = positional[0]
	if len(positional) > 1 {
		gw.URL = positional[1]
	}
	if gw.URL == "" && gw.CredentialsFile == "" {
		fmt.Fprintln(os.Stderr, "Error: a gateway URL or --credentials-file is required")
		os.Exit(exitUsage)
	}
	// Client secrets never go into config files; GATEMCP_CLIENT_SECRET or
	// the credentials bundle carries them.

	cwd, _ := os.Getwd()
	cfgPath := config.ConfigPathForScope(scope, cwd)
	if cfgPath == "" {
		fail("could not determine config path")
	}

	if err := config.AddGatewayConfigToFile(cfgPath, gw); err != nil {
		fail("%v", err)
	}
	fmt.Printf("Added gateway '%s' to %s config (%s)\n", gw.Name, scope, cfgPath)
}

func printGatewayAddUsage() {
	fmt.Print(`gatemcp gateway add - Register a gateway

Usage:
  gatemcp gateway add <name> [url] [options]

Arguments:
  <name>       Name for the gateway
  [url]        MCP endpoint URL (omit when --credentials-file carries it)

Options:
  --local      Add to local config (.gatemcp.local.kdl, gitignored)
  --project    Add to project config (.gatemcp.kdl) [default]
  --user       Add to user config (~/.config/gatemcp/config.kdl)

  --token-url=<url>          OAuth2 token endpoint
  --client-id=<id>           OAuth2 client ID
  --scope=<scope>            OAuth2 scope
  --region=<region>          Deployment region hint
  --credentials-file=<path>  Credentials bundle backing this gateway
  --timeout=<dur>            Connection timeout (e.g. 30s)
  --call-timeout=<dur>       Tool call timeout (e.g. 120s)
  --ephemeral                Never write refreshed tokens to disk

The client secret is never stored in config files: set GATEMCP_CLIENT_SECRET
or use a credentials bundle.

Examples:
  gatemcp gateway add prod https://gw.example.com/mcp \
    --token-url=https://auth.example.com/oauth2/token --client-id=abc123
  gatemcp gateway add local --credentials-file=.mcp-credentials.json
`)
}

func cmdGatewayAddJSON(args []string) {
	scope := config.ScopeProject

	var positional []string
	for _, arg := range args {
		switch arg {
		case "--local":
			scope = config.ScopeLocal
		case "--project":
			scope = config.ScopeProject
		case "--user":
			scope = config.ScopeUser
		case "--help", "-h":
			printGatewayAddJSONUsage()
			return
		default:
			positional = append(positional, arg)
		}
	}

	if len(positional) < 2 {
		fmt.Fprintln(os.Stderr, "Error: name and JSON config are required")
		printGatewayAddJSONUsage()
		os.Exit(exitUsage)
	}

	gw, err := config.ParseJSONGateway(positional[1])
	if err != nil {
		fail("parsing JSON: %v", err)
	}
	gw.Name = positional[0]

	cwd, _ := os.Getwd()
	cfgPath := config.ConfigPathForScope(scope, cwd)
	if cfgPath == "" {
		fail("could not determine config path")
	}

	if err := config.AddGatewayConfigToFile(cfgPath, *gw); err != nil {
		fail("%v", err)
	}
	fmt.Printf("Added gateway '%s' from JSON to %s config (%s)\n", gw.Name, scope, cfgPath)
}

func printGatewayAddJSONUsage() {
	fmt.Print(`gatemcp gateway add-json - Register a gateway from JSON config

Usage:
  gatemcp gateway add-json <name> '<json>' [--local|--project|--user]

Examples:
  gatemcp gateway add-json prod '{"url":"https://gw.example.com/mcp","token_url":"https://auth.example.com/oauth2/token","client_id":"abc123"}'
`)
}

func cmdGatewayRemove(args []string) {
	name := ""
	scope := config.ScopeProject

	for _, arg := range args {
		switch arg {
		case "--local":
			scope = config.ScopeLocal
		case "--project":
			scope = config.ScopeProject
		case "--user":
			scope = config.ScopeUser
		case "--help", "-h":
			fmt.Println("Usage: gatemcp gateway remove <name> [--local|--project|--user]")
			return
		default:
			if name == "" {
				name = arg
			}
		}
	}

	if name == "" {
		fmt.Fprintln(os.Stderr, "Usage: gatemcp gateway remove <name> [--local|--project|--user]")
		os.Exit(exitUsage)
	}

	cwd, _ := os.Getwd()
	cfgPath := config.ConfigPathForScope(scope, cwd)
	if cfgPath == "" {
		fail("could not determine config path")
	}

	if err := config.RemoveGatewayFromFile(cfgPath, name); err != nil {
		fail("%v", err)
	}
	fmt.Printf("Removed gateway '%s' from %s config (%s)\n", name, scope, cfgPath)
}

func cmdGatewayList(args []string) {
	outputJSON := false
	for _, arg := range args {
		switch arg {
		case "--json":
			outputJSON = true
		case "--help", "-h":
			fmt.Println("Usage: gatemcp gateway list [--json]")
			return
		}
	}

	cfg := loadConfig()

	if outputJSON {
		data, _ := json.MarshalIndent(cfg.Gateways, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(cfg.Gateways) == 0 {
		fmt.Println("No gateways configured")
		return
	}
	for name, gw := range cfg.Gateways {
		fmt.Printf("  %s:\n", name)
		if gw.URL != "" {
			fmt.Printf("    url: %s\n", gw.URL)
		}
		if gw.CredentialsFile != "" {
			fmt.Printf("    credentials-file: %s\n", gw.CredentialsFile)
		}
		if gw.TokenURL != "" {
			fmt.Printf("    token-url: %s\n", gw.TokenURL)
		}
		if gw.Scope != "" {
			fmt.Printf("    scope: %s\n", gw.Scope)
		}
		if gw.Ephemeral {
			fmt.Printf("    ephemeral: true\n")
		}
		fmt.Printf("    source: %s\n", gw.Source)
	}
}

func cmdGatewayStatus(args []string) {
	outputJSON := false
	for _, arg := range args {
		switch arg {
		case "--json":
			outputJSON = true
		case "--help", "-h":
			fmt.Println("Usage: gatemcp gateway status [--json]")
			return
		}
	}

	cfg := loadConfig()
	if len(cfg.Gateways) == 0 {
		fmt.Println("No gateways configured")
		return
	}

	ctx, cancel := commandContext(2 * time.Minute)
	defer cancel()

	reg := registry.NewWithLogger(logging.Default())
	defer reg.Close()
	reg.ConnectFromConfig(ctx, cfg)

	statuses := reg.Status()
	if outputJSON {
		data, _ := json.MarshalIndent(statuses, "", "  ")
		fmt.Println(string(data))
		return
	}

	for _, st := range statuses {
		fmt.Printf("  %s: %s", st.Name, st.State)
		if st.ToolCount > 0 {
			fmt.Printf(" (%d tools)", st.ToolCount)
		}
		if st.HealthError != "" {
			fmt.Printf(" - %s", st.HealthError)
		}
		fmt.Println()
	}
}

func cmdGatewayPaths(args []string) {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			fmt.Println("Usage: gatemcp gateway paths")
			return
		}
	}

	cwd, _ := os.Getwd()
	paths := config.ConfigPaths(cwd)

	fmt.Println("Config file paths:")
	fmt.Printf("  Local:   %s\n", paths["local"])
	fmt.Printf("  Project: %s\n", paths["project"])
	fmt.Printf("  User:    %s\n", paths["user"])
	fmt.Printf("  Bundle:  %s\n", paths["bundle"])

	fmt.Println("\nFile status:")
	for name, path := range paths {
		exists := "not found"
		if _, err := os.Stat(path); err == nil {
			exists = "exists"
		}
		fmt.Printf("  %-8s  %s\n", name+":", exists)
	}
}

func printGatewayUsage() {
	fmt.Print(`gatemcp gateway - Manage gateway registrations

Usage:
  gatemcp gateway <subcommand> [options]

Subcommands:
  add <name> [url] [options]      Register a gateway
  add-json <name> '<json>'        Register a gateway from JSON config
  remove <name>                   Unregister a gateway
  list [--json]                   List configured gateways
  status [--json]                 Connect and report live status
  paths                           Show config file paths

Scope Options:
  --local      Local config (.gatemcp.local.kdl) - gitignored
  --project    Project config (.gatemcp.kdl) [default]
  --user       User config (~/.config/gatemcp/config.kdl)
`)
}
