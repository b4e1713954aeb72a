// Package runtime hosts the agent behind the AgentCore-style invocation
// contract: POST /invocations answers with an NDJSON event stream, GET
// /ping reports health, GET /metrics serves Prometheus. The package also
// provides the matching client, Invoke.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/standardbeagle/gatemcp/internal/logging"
	"github.com/standardbeagle/gatemcp/internal/metrics"
)

// Asker is the agent surface the server drives. *agent.Agent satisfies it.
type Asker interface {
	AskStream(ctx context.Context, question string, onChunk func(string)) (string, error)
}

// Server hosts one agent behind the invocation contract.
type Server struct {
	e       *echo.Echo
	agent   Asker
	log     logging.Logger
	metrics *metrics.Metrics
}

// Options configures a Server.
type Options struct {
	// Agent answers invocations. Required.
	Agent Asker

	// Logger receives request activity. Nil means logging.Nop().
	Logger logging.Logger

	// Metrics, when set, observes invocations.
	Metrics *metrics.Metrics

	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
}

// New creates a runtime server.
func New(opts Options) (*Server, error) {
	if opts.Agent == nil {
		return nil, fmt.Errorf("agent is required")
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	s := &Server{agent: opts.Agent, log: log, metrics: opts.Metrics}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/ping" || path == "/metrics"
		},
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.String(),
			)
			return nil
		},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error("panic recovered", "error", err, "stack", string(stack))
			return err
		},
	}))

	e.POST("/invocations", s.handleInvocation)
	e.GET("/ping", s.handlePing)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(opts.Gatherer)))

	s.e = e
	return s, nil
}

// Handler exposes the routes for tests and embedding.
func (s *Server) Handler() http.Handler { return s.e }

// Start serves on addr until Shutdown or failure.
func (s *Server) Start(addr string) error {
	s.log.Info("agent runtime listening", "addr", addr)
	return s.e.Start(addr)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// invocationRequest accepts the prompt under any of the field names
// deployed clients use.
type invocationRequest struct {
	Prompt    string `json:"prompt"`
	Message   string `json:"message"`
	Query     string `json:"query"`
	InputText string `json:"inputText"`
	Input     string `json:"input"`
	SessionID string `json:"session_id"`
}

func (r *invocationRequest) prompt() string {
	for _, candidate := range []string{r.Prompt, r.Message, r.Query, r.InputText, r.Input} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

func (s *Server) handleInvocation(c echo.Context) error {
	var req invocationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be JSON")
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	log := s.log.With("session_id", sessionID)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "application/x-ndjson")
	resp.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(resp)
	emit := func(ev Event) {
		if err := enc.Encode(ev); err != nil {
			log.Warn("failed to write stream event", "error", err)
			return
		}
		resp.Flush()
	}

	prompt := req.prompt()
	if prompt == "" {
		log.Warn("invocation without a prompt")
		emit(Event{Type: EventError, Error: "No prompt provided. Please include 'prompt' in your request."})
		return nil
	}

	log.Info("invocation started", "prompt_chars", len(prompt))
	started := time.Now()

	answer, err := s.agent.AskStream(c.Request().Context(), prompt, func(delta string) {
		emit(Event{Type: EventChunk, Data: delta})
	})
	s.metrics.ObserveInvocation(time.Since(started), err)

	if err != nil {
		log.Error("agent run failed", "error", err)
		emit(Event{Type: EventError, Error: err.Error()})
		return nil
	}
	if answer == "" {
		emit(Event{Type: EventChunk, Data: "No response from agent"})
	}
	emit(Event{Type: EventComplete})

	log.Info("invocation complete", "duration", time.Since(started).String())
	return nil
}

func (s *Server) handlePing(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "Healthy"})
}
