package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/standardbeagle/gatemcp/internal/cache"
	"github.com/standardbeagle/gatemcp/internal/config"
	"github.com/standardbeagle/gatemcp/internal/gateway"
	"github.com/standardbeagle/gatemcp/internal/logging"
	"github.com/standardbeagle/gatemcp/internal/registry"
)

func cmdTools(args []string) {
	if len(args) < 1 {
		printToolsUsage()
		os.Exit(exitUsage)
	}

	switch args[0] {
	case "list", "ls":
		cmdToolsList(args[1:])
	case "search":
		cmdToolsSearch(args[1:])
	case "help", "-h", "--help":
		printToolsUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown tools subcommand: %s\n\n", args[0])
		printToolsUsage()
		os.Exit(exitUsage)
	}
}

func cmdToolsList(args []string) {
	gatewayName := ""
	outputJSON := false
	refresh := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--gateway", "-g":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --gateway requires a value")
				os.Exit(exitUsage)
			}
			i++
			gatewayName = args[i]
		case "--json":
			outputJSON = true
		case "--refresh":
			refresh = true
		case "--help", "-h":
			printToolsUsage()
			return
		}
	}

	cfg := loadConfig()
	gwCfg := selectGateway(cfg, gatewayName)
	store := cache.NewStore()

	// Serve from the cache when the gateway identity has not changed.
	if !refresh && store.IsValid(gwCfg.Name, gwCfg) {
		entry, err := store.GetEntry(gwCfg.Name)
		if err == nil && entry != nil {
			printCachedTools(gwCfg.Name, entry, outputJSON)
			return
		}
	}

	ctx, cancel := commandContext(2 * time.Minute)
	defer cancel()

	client := connectGateway(ctx, gwCfg)
	defer client.Close()

	descriptors := client.Tools()
	saveToolCache(store, gwCfg, descriptors)

	if outputJSON {
		data, _ := json.MarshalIndent(descriptors, "", "  ")
		fmt.Println(string(data))
		return
	}
	fmt.Printf("Tools on gateway '%s':\n", gwCfg.Name)
	for _, d := range descriptors {
		printTool(d.BaseName, d.Name, d.Description)
	}
}

func printCachedTools(name string, entry *cache.CacheEntry, outputJSON bool) {
	if outputJSON {
		data, _ := json.MarshalIndent(entry.Tools, "", "  ")
		fmt.Println(string(data))
		return
	}
	fmt.Printf("Tools on gateway '%s' (cached %s):\n", name, entry.CachedAt.Local().Format(time.RFC3339))
	for _, t := range entry.Tools {
		printTool(t.BaseName, t.Name, t.Description)
	}
}

func printTool(base, full, description string) {
	name := base
	if name == "" {
		name = full
	}
	fmt.Printf("  %s", name)
	if full != "" && full != name {
		fmt.Printf(" (%s)", full)
	}
	fmt.Println()
	if description != "" {
		fmt.Printf("      %s\n", description)
	}
}

func saveToolCache(store *cache.Store, gwCfg config.GatewayConfig, descriptors []gateway.ToolDescriptor) {
	tools := make([]cache.CachedToolInfo, 0, len(descriptors))
	for _, d := range descriptors {
		tools = append(tools, cache.CachedToolInfo{
			Name:        d.Name,
			BaseName:    d.BaseName,
			Description: d.Description,
			Gateway:     gwCfg.Name,
			InputSchema: d.InputSchema,
		})
	}
	entry := &cache.CacheEntry{
		ConfigHash: cache.ConfigHash(gwCfg),
		Tools:      tools,
		CachedAt:   time.Now(),
	}
	if err := store.SetEntry(gwCfg.Name, entry); err != nil {
		// The cache is an optimization; a failed write is not fatal.
		logging.Default().Warn("failed to write tool cache", "gateway", gwCfg.Name, "error", err)
	}
}

func cmdToolsSearch(args []string) {
	gatewayName := ""
	outputJSON := false
	query := ""

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--gateway", "-g":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --gateway requires a value")
				os.Exit(exitUsage)
			}
			i++
			gatewayName = args[i]
		case "--json":
			outputJSON = true
		case "--help", "-h":
			printToolsUsage()
			return
		default:
			if query == "" {
				query = args[i]
			}
		}
	}

	if query == "" {
		fmt.Fprintln(os.Stderr, "Error: a search query is required")
		printToolsUsage()
		os.Exit(exitUsage)
	}

	cfg := loadConfig()

	ctx, cancel := commandContext(2 * time.Minute)
	defer cancel()

	reg := registry.NewWithLogger(logging.Default())
	defer reg.Close()
	reg.ConnectFromConfig(ctx, cfg)

	results := reg.SearchTools(query, gatewayName)
	if outputJSON {
		data, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(results) == 0 {
		fmt.Printf("No tools matching %q\n", query)
		return
	}
	for _, t := range results {
		fmt.Printf("  [%s] ", t.Gateway)
		printTool(t.BaseName, t.Name, t.Description)
	}
}

func printToolsUsage() {
	fmt.Print(`gatemcp tools - Discover gateway tools

Usage:
  gatemcp tools list [--gateway <name>] [--json] [--refresh]
  gatemcp tools search <query> [--gateway <name>] [--json]

Options:
  --gateway, -g <name>   Gateway to query (default: the only one, or "default")
  --json                 Output as JSON
  --refresh              Bypass the tool cache and re-discover
  --help, -h             Show this help

Examples:
  gatemcp tools list
  gatemcp tools list --refresh
  gatemcp tools search cypher
`)
}
