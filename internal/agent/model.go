package agent

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/standardbeagle/gatemcp/internal/config"
)

const (
	// DefaultModel is used when the agent config does not name one.
	DefaultModel = "gpt-4o-mini"

	// DefaultAPIKeyEnv is the environment variable read for the model API
	// key when the config does not name one.
	DefaultAPIKeyEnv = "OPENAI_API_KEY"
)

// NewChatModel builds the OpenAI-compatible chat model from the agent
// config. The API key always comes from the environment, never the config
// file.
func NewChatModel(ctx context.Context, cfg config.AgentConfig) (model.ToolCallingChatModel, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = DefaultAPIKeyEnv
	}
	apiKey := strings.TrimSpace(os.Getenv(keyEnv))
	if apiKey == "" {
		return nil, fmt.Errorf("model API key is required: set %s", keyEnv)
	}

	name := cfg.Model
	if name == "" {
		name = DefaultModel
	}

	mc := &openai.ChatModelConfig{
		Model:  name,
		APIKey: apiKey,
	}
	if cfg.BaseURL != "" {
		mc.BaseURL = cfg.BaseURL
	}
	return openai.NewChatModel(ctx, mc)
}
