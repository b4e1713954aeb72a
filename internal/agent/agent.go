// Package agent runs an LLM tool loop over a gateway's graph tools.
//
// The model is offered the gateway's tools under their base names plus a
// small set of local utility tools. Each turn the model either answers or
// requests tool calls; results are fed back as tool messages until it
// produces a final answer or the turn limit is hit.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/standardbeagle/gatemcp/internal/gateway"
	"github.com/standardbeagle/gatemcp/internal/logging"
	"github.com/standardbeagle/gatemcp/internal/metrics"
)

// DefaultMaxTurns bounds the model loop when the config does not.
const DefaultMaxTurns = 10

// DefaultSystemPrompt steers the model toward schema-first, read-only
// graph exploration.
const DefaultSystemPrompt = `You are a helpful Neo4j database assistant with access to tools that let you query a Neo4j graph database.

Your capabilities include:
- Retrieve the database schema to understand node labels, relationship types, and properties
- Execute read-only Cypher queries to answer questions about the data
- Do not execute any write Cypher queries

When answering questions about the database:
1. First retrieve the schema to understand the database structure
2. Formulate appropriate Cypher queries based on the actual schema
3. If a query returns no results, explain what you looked for and suggest alternatives
4. Format results in a clear, human-readable way
5. Cite the actual data returned in your response

Important Cypher notes:
- Use MATCH patterns that align with the actual schema
- For counting, use MATCH (n:Label) RETURN count(n)
- For listing items, add LIMIT to avoid overwhelming results
- Handle potential NULL values gracefully

Be concise but thorough in your responses.`

// ToolCaller is how the agent reaches gateway tools. *gateway.Client
// satisfies it.
type ToolCaller interface {
	Tools() []gateway.ToolDescriptor
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)
}

// Agent drives a tool-calling chat model over gateway and local tools.
type Agent struct {
	model       model.ToolCallingChatModel
	gateway     ToolCaller
	gatewayName string
	local       *LocalRegistry
	prompt      string
	maxTurns    int
	log         logging.Logger
	metrics     *metrics.Metrics
}

// Options configures an Agent.
type Options struct {
	// Model is the chat model. Required.
	Model model.ToolCallingChatModel

	// Gateway provides remote tools. Nil means the agent runs with local
	// tools only.
	Gateway ToolCaller

	// GatewayName labels gateway tool calls in metrics. Empty means
	// "gateway".
	GatewayName string

	// Local provides in-process tools. Nil means DefaultLocalTools().
	// A local tool shadows a gateway tool with the same base name.
	Local *LocalRegistry

	// SystemPrompt overrides DefaultSystemPrompt.
	SystemPrompt string

	// MaxTurns bounds the loop. Zero means DefaultMaxTurns.
	MaxTurns int

	// Logger receives loop activity. Nil means logging.Nop().
	Logger logging.Logger

	// Metrics, when set, observes tool calls and turns taken.
	Metrics *metrics.Metrics
}

// New creates an agent.
func New(opts Options) (*Agent, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	local := opts.Local
	if local == nil {
		local = DefaultLocalTools()
	}
	prompt := opts.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	gatewayName := opts.GatewayName
	if gatewayName == "" {
		gatewayName = "gateway"
	}

	return &Agent{
		model:       opts.Model,
		gateway:     opts.Gateway,
		gatewayName: gatewayName,
		local:       local,
		prompt:      prompt,
		maxTurns:    maxTurns,
		log:         log,
		metrics:     opts.Metrics,
	}, nil
}

// Ask runs the loop to completion and returns the final answer.
func (a *Agent) Ask(ctx context.Context, question string) (string, error) {
	return a.run(ctx, question, nil)
}

// AskStream runs the loop forwarding model output deltas to onChunk as
// they arrive. The returned string is the assembled final answer.
func (a *Agent) AskStream(ctx context.Context, question string, onChunk func(string)) (string, error) {
	return a.run(ctx, question, onChunk)
}

func (a *Agent) run(ctx context.Context, question string, onChunk func(string)) (string, error) {
	bound, err := a.bindModel()
	if err != nil {
		return "", err
	}

	messages := []*schema.Message{
		schema.SystemMessage(a.prompt),
		schema.UserMessage(question),
	}

	turns := 0
	defer func() { a.metrics.ObserveAgentTurns(turns) }()

	for turns < a.maxTurns {
		turns++
		reply, err := a.generate(ctx, bound, messages, onChunk)
		if err != nil {
			return "", err
		}

		if len(reply.ToolCalls) == 0 {
			a.log.Debug("agent finished", "turns", turns)
			return reply.Content, nil
		}

		messages = append(messages, reply)
		for _, call := range reply.ToolCalls {
			content := a.executeToolCall(ctx, call)
			messages = append(messages, schema.ToolMessage(content, call.ID))
		}
	}

	return "", fmt.Errorf("no final answer after %d turns", a.maxTurns)
}

// bindModel declares the available tools to the model. Gateway tools come
// first; a local tool with the same name replaces the gateway one, matching
// how executeToolCall routes.
func (a *Agent) bindModel() (model.ToolCallingChatModel, error) {
	var infos []*schema.ToolInfo
	seen := map[string]int{}

	if a.gateway != nil {
		for _, info := range gatewayToolInfos(a.gateway.Tools()) {
			if idx, ok := seen[info.Name]; ok {
				infos[idx] = info
				continue
			}
			seen[info.Name] = len(infos)
			infos = append(infos, info)
		}
	}
	for _, info := range a.local.toolInfos() {
		if idx, ok := seen[info.Name]; ok {
			a.log.Warn("local tool shadows gateway tool", "tool", info.Name)
			infos[idx] = info
			continue
		}
		seen[info.Name] = len(infos)
		infos = append(infos, info)
	}

	if len(infos) == 0 {
		return a.model, nil
	}

	bound, err := a.model.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("failed to bind tools: %w", err)
	}
	return bound, nil
}

func (a *Agent) generate(ctx context.Context, bound model.ToolCallingChatModel, messages []*schema.Message, onChunk func(string)) (*schema.Message, error) {
	if onChunk == nil {
		reply, err := bound.Generate(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("model generate failed: %w", err)
		}
		return reply, nil
	}

	stream, err := bound.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("model stream failed: %w", err)
	}
	defer stream.Close()

	var chunks []*schema.Message
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("model stream failed: %w", err)
		}
		if chunk.Content != "" {
			onChunk(chunk.Content)
		}
		chunks = append(chunks, chunk)
	}

	reply, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble streamed reply: %w", err)
	}
	return reply, nil
}

// executeToolCall runs one requested tool call. Errors are rendered into
// the tool message so the model can adjust instead of aborting the loop.
func (a *Agent) executeToolCall(ctx context.Context, call schema.ToolCall) string {
	name := call.Function.Name

	args, err := parseArguments(call.Function.Arguments)
	if err != nil {
		a.log.Warn("model produced invalid tool arguments", "tool", name, "error", err)
		return fmt.Sprintf("error: invalid tool arguments: %v", err)
	}

	a.log.Debug("executing tool call", "tool", name)
	result, err := a.callTool(ctx, name, args)
	if err != nil {
		a.log.Warn("tool call failed", "tool", name, "error", err)
		return fmt.Sprintf("error: %v", err)
	}
	return result
}

func (a *Agent) callTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if tool := a.local.Get(name); tool != nil {
		started := time.Now()
		out, err := tool.Handler(ctx, args)
		a.metrics.ObserveToolCall("local", name, time.Since(started), err)
		return out, err
	}

	if a.gateway == nil {
		return "", fmt.Errorf("unknown tool: %s", name)
	}

	started := time.Now()
	result, err := a.gateway.CallTool(ctx, name, args)
	a.metrics.ObserveToolCall(a.gatewayName, name, time.Since(started), err)
	if err != nil {
		return "", err
	}
	return renderResult(result), nil
}

func parseArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// renderResult flattens a tool result to text for the model.
func renderResult(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
