package agent

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/standardbeagle/gatemcp/internal/gateway"
)

// LocalTool is a tool executed in-process instead of through a gateway.
type LocalTool struct {
	Name        string
	Description string
	Params      map[string]*schema.ParameterInfo
	Handler     func(ctx context.Context, args map[string]any) (string, error)
}

// LocalRegistry manages the in-process tools offered to the model.
type LocalRegistry struct {
	mu    sync.RWMutex
	tools map[string]*LocalTool
}

// NewLocalRegistry creates an empty local tool registry.
func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{tools: make(map[string]*LocalTool)}
}

// Register adds a tool to the registry, replacing any previous tool with
// the same name.
func (r *LocalRegistry) Register(tool *LocalTool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// Get retrieves a tool by name, or nil.
func (r *LocalRegistry) Get(name string) *LocalTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns the registered tool names, sorted.
func (r *LocalRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *LocalRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs a tool by name.
func (r *LocalRegistry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool := r.Get(name)
	if tool == nil {
		return "", fmt.Errorf("local tool not found: %s", name)
	}
	return tool.Handler(ctx, args)
}

// toolInfos returns the registry's tools as model tool declarations.
func (r *LocalRegistry) toolInfos() []*schema.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, tool := range r.tools {
		infos = append(infos, &schema.ToolInfo{
			Name:        tool.Name,
			Desc:        tool.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(tool.Params),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// DefaultLocalTools returns a registry with the built-in utility tools.
func DefaultLocalTools() *LocalRegistry {
	r := NewLocalRegistry()

	r.Register(&LocalTool{
		Name:        "current_time",
		Description: "Get the current date and time.",
		Params:      map[string]*schema.ParameterInfo{},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return time.Now().Format("2006-01-02 15:04:05"), nil
		},
	})

	r.Register(&LocalTool{
		Name:        "add_numbers",
		Description: "Add two numbers together.",
		Params: map[string]*schema.ParameterInfo{
			"a": {Type: schema.Number, Desc: "First number", Required: true},
			"b": {Type: schema.Number, Desc: "Second number", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := numberArg(args, "a")
			if err != nil {
				return "", err
			}
			b, err := numberArg(args, "b")
			if err != nil {
				return "", err
			}
			return strconv.FormatFloat(a+b, 'f', -1, 64), nil
		},
	})

	return r
}

func numberArg(args map[string]any, name string) (float64, error) {
	raw, ok := args[name]
	if !ok {
		return 0, fmt.Errorf("missing required argument: %s", name)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("argument %s must be a number, got %T", name, raw)
	}
}

// gatewayToolInfos converts gateway tool descriptors to model tool
// declarations under their base names.
func gatewayToolInfos(descriptors []gateway.ToolDescriptor) []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(descriptors))
	for _, d := range descriptors {
		name := d.BaseName
		if name == "" {
			name = d.Name
		}
		infos = append(infos, &schema.ToolInfo{
			Name:        name,
			Desc:        d.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(paramsFromSchema(d.InputSchema)),
		})
	}
	return infos
}

// paramsFromSchema maps a JSON schema's properties to parameter
// declarations, recursing into objects and arrays.
func paramsFromSchema(js map[string]any) map[string]*schema.ParameterInfo {
	params := map[string]*schema.ParameterInfo{}

	props, _ := js["properties"].(map[string]any)
	required := map[string]bool{}
	if raw, ok := js["required"].([]any); ok {
		for _, name := range raw {
			if s, ok := name.(string); ok {
				required[s] = true
			}
		}
	}

	for name, rawProp := range props {
		prop, ok := rawProp.(map[string]any)
		if !ok {
			continue
		}
		info := parameterFromProp(prop)
		info.Required = required[name]
		params[name] = info
	}
	return params
}

func parameterFromProp(prop map[string]any) *schema.ParameterInfo {
	info := &schema.ParameterInfo{Type: schema.String}
	if desc, ok := prop["description"].(string); ok {
		info.Desc = desc
	}

	typ, _ := prop["type"].(string)
	switch typ {
	case "number":
		info.Type = schema.Number
	case "integer":
		info.Type = schema.Integer
	case "boolean":
		info.Type = schema.Boolean
	case "array":
		info.Type = schema.Array
		info.ElemInfo = &schema.ParameterInfo{Type: schema.String}
		if items, ok := prop["items"].(map[string]any); ok {
			info.ElemInfo = parameterFromProp(items)
		}
	case "object":
		info.Type = schema.Object
		info.SubParams = paramsFromSchema(prop)
	}

	if raw, ok := prop["enum"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				info.Enum = append(info.Enum, s)
			}
		}
	}
	return info
}
