package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/standardbeagle/gatemcp/internal/agent"
	"github.com/standardbeagle/gatemcp/internal/config"
	"github.com/standardbeagle/gatemcp/internal/logging"
	"github.com/standardbeagle/gatemcp/internal/runtime"
)

// demoQuestions are the showcase queries run by "gatemcp agent demo".
var demoQuestions = []struct {
	title    string
	question string
}{
	{"Database Schema Overview", "What is the database schema? Give me a brief summary."},
	{"Count of Aircraft", "How many Aircraft are in the database?"},
	{"List Airports", "List 5 airports with their city and country."},
}

func cmdAgent(args []string) {
	if len(args) < 1 {
		printAgentUsage()
		os.Exit(exitUsage)
	}

	switch args[0] {
	case "ask":
		cmdAgentAsk(args[1:])
	case "demo":
		cmdAgentDemo(args[1:])
	case "help", "-h", "--help":
		printAgentUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown agent subcommand: %s\n\n", args[0])
		printAgentUsage()
		os.Exit(exitUsage)
	}
}

func cmdAgentAsk(args []string) {
	gatewayName := ""
	var questionParts []string

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
			printAgentUsage()
			return
		default:
			questionParts = append(questionParts, args[i])
		}
	}

	question := strings.TrimSpace(strings.Join(questionParts, " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "Error: a question is required")
		printAgentUsage()
		os.Exit(exitUsage)
	}

	ctx, cancel := commandContext(10 * time.Minute)
	defer cancel()

	a, cleanup := buildAgent(ctx, gatewayName)
	defer cleanup()

	runQuestion(ctx, a, question)
}

func cmdAgentDemo(args []string) {
	gatewayName := ""
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
			printAgentUsage()
			return
		}
	}

	ctx, cancel := commandContext(30 * time.Minute)
	defer cancel()

	a, cleanup := buildAgent(ctx, gatewayName)
	defer cleanup()

	for i, demo := range demoQuestions {
		fmt.Println()
		fmt.Println(strings.Repeat("=", 76))
		fmt.Printf("  QUERY %d: %s\n", i+1, demo.title)
		fmt.Println(strings.Repeat("=", 76))
		fmt.Println()
		fmt.Printf("Question: %s\n\n", demo.question)
		runQuestion(ctx, a, demo.question)
		fmt.Println()
	}
}

// buildAgent wires the chat model and gateway session into an agent. The
// returned cleanup closes the gateway session.
func buildAgent(ctx context.Context, gatewayName string) (*agent.Agent, func()) {
	cfg := loadConfig()

	agentCfg := config.AgentConfig{}
	if cfg.Agent != nil {
		agentCfg = *cfg.Agent
	}

	chatModel, err := agent.NewChatModel(ctx, agentCfg)
	if err != nil {
		fail("building chat model: %v", err)
	}

	gwCfg := selectGateway(cfg, gatewayName)
	client := connectGateway(ctx, gwCfg)

	a, err := agent.New(agent.Options{
		Model:        chatModel,
		Gateway:      client,
		GatewayName:  gwCfg.Name,
		SystemPrompt: agentCfg.SystemPrompt,
		MaxTurns:     agentCfg.MaxTurns,
		Logger:       logging.Default(),
	})
	if err != nil {
		client.Close()
		fail("building agent: %v", err)
	}
	return a, func() { client.Close() }
}

// runQuestion streams the answer to stdout as it arrives.
func runQuestion(ctx context.Context, a *agent.Agent, question string) {
	streamed := false
	answer, err := a.AskStream(ctx, question, func(delta string) {
		streamed = true
		fmt.Print(delta)
	})
	if err != nil {
		if streamed {
			fmt.Println()
		}
		fail("agent run failed: %v", err)
	}
	if streamed {
		fmt.Println()
		return
	}
	fmt.Println(answer)
}

func printAgentUsage() {
	fmt.Print(`gatemcp agent - Run the LLM agent against the gateway

Usage:
  gatemcp agent ask "<question>" [--gateway <name>]
  gatemcp agent demo [--gateway <name>]

The model comes from the agent config block; the API key comes from the
environment (OPENAI_API_KEY by default, or the configured api-key-env).

Options:
  --gateway, -g <name>   Gateway to use (default: the only one, or "default")
  --help, -h             Show this help

Examples:
  gatemcp agent ask "How many nodes are in the database?"
  gatemcp agent demo
`)
}

func cmdInvoke(args []string) {
	var positional []string
	for _, arg := range args {
		switch arg {
		case "--help", "-h":
			printInvokeUsage()
			return
		default:
			positional = append(positional, arg)
		}
	}

	if len(positional) < 2 {
		fmt.Fprintln(os.Stderr, "Error: runtime URL and prompt are required")
		printInvokeUsage()
		os.Exit(exitUsage)
	}
	url := positional[0]
	prompt := strings.Join(positional[1:], " ")

	ctx, cancel := commandContext(10 * time.Minute)
	defer cancel()

	var failed string
	err := runtime.Invoke(ctx, url, prompt, func(ev runtime.Event) error {
		switch ev.Type {
		case runtime.EventChunk:
			fmt.Print(ev.Data)
		case runtime.EventError:
			failed = ev.Error
		case runtime.EventComplete:
			fmt.Println()
		}
		return nil
	})
	if err != nil {
		fail("%v", err)
	}
	if failed != "" {
		fail("runtime reported: %s", failed)
	}
}

func printInvokeUsage() {
	fmt.Print(`gatemcp invoke - Send a prompt to a running agent runtime

Usage:
  gatemcp invoke <runtime-url> "<prompt>"

Examples:
  gatemcp invoke http://localhost:8080 "How many nodes are in the database?"
`)
}
