package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

func cmdCall(args []string) {
	gatewayName := ""
	toolName := ""
	rawArgs := ""

	var positional []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--gateway", "-g":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --gateway requires a value")
				os.Exit(exitUsage)
			}
			i++
			gatewayName = args[i]
		case "--help", "-h":
			printCallUsage()
			return
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) < 1 {
		fmt.Fprintln(os.Stderr, "Error: tool name is required")
		printCallUsage()
		os.Exit(exitUsage)
	}
	toolName = positional[0]
	if len(positional) > 1 {
		rawArgs = positional[1]
	}

	toolArgs := map[string]any{}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
			fmt.Fprintf(os.Stderr, "Error: arguments must be a JSON object: %v\n", err)
			os.Exit(exitUsage)
		}
	}

	cfg := loadConfig()
	gwCfg := selectGateway(cfg, gatewayName)

	ctx, cancel := commandContext(5 * time.Minute)
	defer cancel()

	client := connectGateway(ctx, gwCfg)
	defer client.Close()

	result, err := client.CallTool(ctx, toolName, toolArgs)
	if err != nil {
		fail("%v", err)
	}

	switch v := result.(type) {
	case string:
		fmt.Println(v)
	case nil:
		fmt.Println("(no content)")
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fail("formatting result: %v", err)
		}
		fmt.Println(string(data))
	}
}

func printCallUsage() {
	fmt.Print(`gatemcp call - Call a gateway tool by base name

Usage:
  gatemcp call <tool> [json-args] [--gateway <name>]

Arguments:
  <tool>       Base tool name ("read-cypher", not "graph___read-cypher")
  [json-args]  Tool arguments as a JSON object

Options:
  --gateway, -g <name>   Gateway to call (default: the only one, or "default")
  --help, -h             Show this help

Examples:
  gatemcp call get-schema
  gatemcp call read-cypher '{"query":"MATCH (n) RETURN count(n) AS total"}'
  gatemcp call echo '{"message":"hello"}' --gateway prod
`)
}
