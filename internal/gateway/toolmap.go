package gateway

import (
	"fmt"
	"sort"
	"strings"

	"github.com/standardbeagle/gatemcp/internal/logging"
)

// ToolNameDelimiter separates the backend prefix from the tool name in the
// full names a gateway advertises, e.g. "graph___read-cypher".
const ToolNameDelimiter = "___"

// ToolDescriptor describes one tool advertised by a gateway.
type ToolDescriptor struct {
	// Name is the full name as the gateway advertises it.
	Name string `json:"name"`
	// BaseName is the name callers use, with the backend prefix stripped.
	BaseName string `json:"base_name,omitempty"`
	// Description is the tool's description from the gateway.
	Description string `json:"description,omitempty"`
	// InputSchema is the tool's JSON schema for arguments.
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// SplitToolName strips the backend prefix from a full gateway tool name.
// The split is on the first delimiter, so a backend tool that itself
// contains the delimiter keeps its own name intact. Names without a
// delimiter are already base names.
func SplitToolName(full string) string {
	if _, base, ok := strings.Cut(full, ToolNameDelimiter); ok {
		return base
	}
	return full
}

// ToolMap maps base tool names to the full names the gateway expects.
type ToolMap map[string]string

// BuildToolMap builds the base-name lookup from a gateway tool list. When
// two backends advertise the same base name the later entry wins.
func BuildToolMap(tools []ToolDescriptor, log logging.Logger) ToolMap {
	if log == nil {
		log = logging.Nop()
	}

	m := make(ToolMap, len(tools))
	for _, tool := range tools {
		base := tool.BaseName
		if base == "" {
			base = SplitToolName(tool.Name)
		}
		if prev, ok := m[base]; ok && prev != tool.Name {
			log.Debug("duplicate base tool name, keeping later entry",
				"base", base, "previous", prev, "replacement", tool.Name)
		}
		m[base] = tool.Name
	}
	return m
}

// Resolve returns the full gateway name for a base tool name. There is no
// fuzzy matching; a miss is an UnknownToolError listing the known names.
func (m ToolMap) Resolve(base string) (string, error) {
	full, ok := m[base]
	if !ok {
		return "", &UnknownToolError{Name: base, Known: m.BaseNames()}
	}
	return full, nil
}

// BaseNames returns the known base names, sorted.
func (m ToolMap) BaseNames() []string {
	names := make([]string, 0, len(m))
	for base := range m {
		names = append(names, base)
	}
	sort.Strings(names)
	return names
}

// UnknownToolError is returned when a base tool name is not in the tool map.
type UnknownToolError struct {
	Name  string
	Known []string
}

func (e *UnknownToolError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("unknown tool %q: no tools discovered yet", e.Name)
	}
	return fmt.Sprintf("unknown tool %q (known tools: %s)", e.Name, strings.Join(e.Known, ", "))
}
