// agent-runtime hosts the LLM agent behind an HTTP invocation contract:
// POST /invocations streams NDJSON events, GET /ping reports health,
// GET /metrics serves Prometheus.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/standardbeagle/gatemcp/internal/agent"
	"github.com/standardbeagle/gatemcp/internal/auth"
	"github.com/standardbeagle/gatemcp/internal/config"
	"github.com/standardbeagle/gatemcp/internal/gateway"
	"github.com/standardbeagle/gatemcp/internal/logging"
	"github.com/standardbeagle/gatemcp/internal/metrics"
	"github.com/standardbeagle/gatemcp/internal/runtime"
)

const version = "0.1.0"

const defaultPort = 8080

func main() {
	godotenv.Load()
	log := logging.Default()

	port := 0
	gatewayName := ""
	for i := 1; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--port", "-p":
			if i+1 < len(os.Args) {
				fmt.Sscanf(os.Args[i+1], "%d", &port)
				i++
			}
		case "--gateway", "-g":
			if i+1 < len(os.Args) {
				gatewayName = os.Args[i+1]
				i++
			}
		case "version", "-v", "--version":
			fmt.Printf("agent-runtime version %s\n", version)
			return
		case "--help", "-h":
			printUsage()
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown option: %s\n\n", os.Args[i])
			printUsage()
			os.Exit(2)
		}
	}
	if port == 0 {
		if v, err := strconv.Atoi(os.Getenv("PORT")); err == nil && v > 0 {
			port = v
		} else {
			port = defaultPort
		}
	}

	if err := run(port, gatewayName, log); err != nil {
		log.Error("agent runtime failed", "error", err)
		os.Exit(1)
	}
}

func run(port int, gatewayName string, log logging.Logger) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	agentCfg := config.AgentConfig{}
	if cfg.Agent != nil {
		agentCfg = *cfg.Agent
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chatModel, err := agent.NewChatModel(ctx, agentCfg)
	if err != nil {
		return fmt.Errorf("building chat model: %w", err)
	}

	m := metrics.New(nil)

	var client *gateway.Client
	gwCfg, ok := pickGateway(cfg, gatewayName)
	if ok {
		client, err = connectGateway(ctx, gwCfg, m, log)
		if err != nil {
			return err
		}
		defer client.Close()
	} else {
		log.Warn("no gateway configured; agent runs with local tools only")
	}

	agentOpts := agent.Options{
		Model:        chatModel,
		GatewayName:  gwCfg.Name,
		SystemPrompt: agentCfg.SystemPrompt,
		MaxTurns:     agentCfg.MaxTurns,
		Logger:       log,
		Metrics:      m,
	}
	if client != nil {
		agentOpts.Gateway = client
	}
	a, err := agent.New(agentOpts)
	if err != nil {
		return fmt.Errorf("building agent: %w", err)
	}

	srv, err := runtime.New(runtime.Options{
		Agent:   a,
		Logger:  log,
		Metrics: m,
	})
	if err != nil {
		return fmt.Errorf("building runtime server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf(":%d", port))
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// pickGateway mirrors the CLI's selection rule but tolerates having no
// gateway at all: the agent then runs with local tools only.
func pickGateway(cfg *config.Config, name string) (config.GatewayConfig, bool) {
	if name != "" {
		gw, ok := cfg.Gateways[name]
		return gw, ok
	}
	if len(cfg.Gateways) == 1 {
		for _, gw := range cfg.Gateways {
			return gw, true
		}
	}
	if gw, ok := cfg.Gateways[config.DefaultGatewayName]; ok {
		return gw, true
	}
	return config.GatewayConfig{}, false
}

func connectGateway(ctx context.Context, gwCfg config.GatewayConfig, m *metrics.Metrics, log logging.Logger) (*gateway.Client, error) {
	gwLog := log.With("gateway", gwCfg.Name)
	mgr := auth.NewManagerWithOptions(gwCfg.CredentialStore(), auth.ManagerOptions{
		Logger:    gwLog,
		OnRefresh: m.ObserveTokenRefresh,
	})
	client := gateway.NewClientWithOptions(gwCfg.Name, gwCfg.URL, mgr, gateway.ClientOptions{
		ConnectTimeout: gateway.GetConnectionTimeout(gwCfg),
		CallTimeout:    gateway.GetCallTimeout(gwCfg),
		Logger:         gwLog,
	})
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting to gateway %q: %w", gwCfg.Name, err)
	}
	log.Info("connected to gateway", "gateway", gwCfg.Name, "tools", len(client.Tools()))
	return client, nil
}

func printUsage() {
	fmt.Print(`agent-runtime - HTTP host for the gateway LLM agent

Usage:
  agent-runtime [options]

Options:
  --port, -p PORT        Listen port (default: $PORT, then 8080)
  --gateway, -g <name>   Gateway to use (default: the only one, or "default")
  --help, -h             Show this help

Endpoints:
  POST /invocations   Run the agent; responds with an NDJSON event stream
  GET  /ping          Health check
  GET  /metrics       Prometheus metrics

The model API key comes from the environment (OPENAI_API_KEY by default).
`)
}
