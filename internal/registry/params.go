package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// similarParamThreshold is the minimum similarity score for a parameter
// name suggestion.
const similarParamThreshold = 60

// ParamInfo describes one parameter from a tool's input schema.
type ParamInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// normalizeParam strips separators and lowercases a parameter name so
// snake_case, kebab-case, and camelCase spellings compare equal.
func normalizeParam(s string) string {
	return normalize(s)
}

// similarity scores how close two strings are, 0 to 100. Substring
// containment is scored by length ratio; otherwise edit distance decides.
func similarity(a, b string) int {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) {
		return 100 * len(shorter) / len(longer)
	}

	dist := levenshtein(a, b)
	maxLen := len(longer)
	if dist >= maxLen {
		return 0
	}
	return 100 * (maxLen - dist) / maxLen
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// findSimilarParams suggests corrections for provided parameter names that
// do not match any expected parameter. Exact and separator-insensitive
// matches need no suggestion.
func findSimilarParams(provided []string, expected []ParamInfo) map[string]string {
	suggestions := make(map[string]string)

	for _, p := range provided {
		pNorm := normalizeParam(p)

		matched := false
		for _, e := range expected {
			if p == e.Name || pNorm == normalizeParam(e.Name) {
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		bestScore := 0
		bestName := ""
		for _, e := range expected {
			score := similarity(pNorm, normalizeParam(e.Name))
			if score > bestScore {
				bestScore = score
				bestName = e.Name
			}
		}
		if bestScore >= similarParamThreshold {
			suggestions[p] = bestName
		}
	}

	return suggestions
}

// extractParamsFromSchema reads parameter info from a JSON schema, sorted
// by name. Returns nil when the schema has no object properties.
func extractParamsFromSchema(schema map[string]any) []ParamInfo {
	if schema == nil {
		return nil
	}

	props, ok := schema["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return nil
	}

	required := make(map[string]bool)
	if reqList, ok := schema["required"].([]any); ok {
		for _, r := range reqList {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}

	params := make([]ParamInfo, 0, len(props))
	for name, prop := range props {
		info := ParamInfo{Name: name, Required: required[name]}
		if propMap, ok := prop.(map[string]any); ok {
			if t, ok := propMap["type"].(string); ok {
				info.Type = t
			}
			if d, ok := propMap["description"].(string); ok {
				info.Description = d
			}
		}
		params = append(params, info)
	}

	sort.Slice(params, func(i, j int) bool {
		return params[i].Name < params[j].Name
	})

	return params
}

// looksLikeParameterError reports whether a tool call failure reads like an
// argument validation problem rather than a transport or tool failure.
func looksLikeParameterError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "param") ||
		strings.Contains(msg, "argument") ||
		strings.Contains(msg, "invalid_type") ||
		strings.Contains(msg, "required") ||
		strings.Contains(msg, "-32602")
}

// diagnoseParameters compares the provided arguments against the indexed
// schema for the tool. Returns nil when the schema is unknown or the
// arguments look consistent with it.
func (r *Registry) diagnoseParameters(gatewayName, toolName string, callErr error, params map[string]any) error {
	tool := r.toolIndex.GetTool(gatewayName, toolName)
	if tool == nil || tool.InputSchema == nil {
		return nil
	}

	expected := extractParamsFromSchema(tool.InputSchema)
	if expected == nil {
		return nil
	}

	provided := make([]string, 0, len(params))
	for name := range params {
		provided = append(provided, name)
	}
	sort.Strings(provided)

	known := make(map[string]bool, len(expected))
	for _, p := range expected {
		known[p.Name] = true
	}
	var unknown []string
	for _, name := range provided {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}

	providedSet := make(map[string]bool, len(provided))
	for _, name := range provided {
		providedSet[name] = true
	}
	var missing []string
	for _, p := range expected {
		if p.Required && !providedSet[p.Name] {
			missing = append(missing, p.Name)
		}
	}

	if len(unknown) == 0 && len(missing) == 0 {
		return nil
	}

	return &InvalidParameterError{
		Gateway:         gatewayName,
		Tool:            toolName,
		OriginalError:   callErr.Error(),
		ProvidedParams:  provided,
		ExpectedParams:  expected,
		SimilarParams:   findSimilarParams(provided, expected),
		UnknownParams:   unknown,
		MissingRequired: missing,
	}
}

// InvalidParameterError is a tool call rejected over its arguments, with
// the schema's expectations and likely typo corrections attached.
type InvalidParameterError struct {
	Gateway         string
	Tool            string
	OriginalError   string
	ProvidedParams  []string
	ExpectedParams  []ParamInfo
	SimilarParams   map[string]string
	UnknownParams   []string
	MissingRequired []string
}

func (e *InvalidParameterError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Invalid parameters for tool '%s' on gateway '%s'\n\n", e.Tool, e.Gateway))
	sb.WriteString(fmt.Sprintf("Error: %s\n", e.OriginalError))

	if len(e.UnknownParams) > 0 {
		sb.WriteString("\nUnknown parameters:\n")
		for _, p := range e.UnknownParams {
			if suggestion, ok := e.SimilarParams[p]; ok {
				sb.WriteString(fmt.Sprintf("  - '%s' (did you mean '%s'?)\n", p, suggestion))
			} else {
				sb.WriteString(fmt.Sprintf("  - '%s'\n", p))
			}
		}
	}

	if len(e.MissingRequired) > 0 {
		sb.WriteString(fmt.Sprintf("\nMissing required parameters: %s\n", strings.Join(e.MissingRequired, ", ")))
	}

	if len(e.ExpectedParams) > 0 {
		sb.WriteString("\nExpected parameters:\n")
		for _, p := range e.ExpectedParams {
			line := fmt.Sprintf("  - %s (%s)", p.Name, p.Type)
			if p.Required {
				line += " (required)"
			}
			if p.Description != "" {
				line += ": " + p.Description
			}
			sb.WriteString(line + "\n")
		}
	}

	return sb.String()
}

// ProtocolError is a tool call failure at the MCP protocol layer, with a
// suggested fix where the failure shape is recognized.
type ProtocolError struct {
	Gateway       string
	Tool          string
	OriginalError string
	ErrorCode     string
	Path          string
	Suggestion    string
}

func (e *ProtocolError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Protocol error calling tool '%s' on gateway '%s'\n\n", e.Tool, e.Gateway))
	sb.WriteString(fmt.Sprintf("Error: %s\n", e.OriginalError))
	if e.ErrorCode != "" {
		sb.WriteString(fmt.Sprintf("Code: %s\n", e.ErrorCode))
	}
	if e.Path != "" {
		sb.WriteString(fmt.Sprintf("Path: %s\n", e.Path))
	}
	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("\nFix: %s\n", e.Suggestion))
	}
	return sb.String()
}

// zodIssue is one entry of a zod validation error array, the shape
// TypeScript-based gateway backends return for bad arguments.
type zodIssue struct {
	Expected string `json:"expected"`
	Code     string `json:"code"`
	Path     []any  `json:"path"`
	Message  string `json:"message"`
}

// parseProtocolError recognizes structured validation failures (zod issue
// arrays, JSON-RPC error codes) and attaches a fix suggestion. Returns nil
// for errors that are not protocol-shaped.
func parseProtocolError(gatewayName, toolName string, err error) *ProtocolError {
	msg := err.Error()

	if trimmed := strings.TrimSpace(msg); strings.HasPrefix(trimmed, "[") {
		var issues []zodIssue
		if jsonErr := json.Unmarshal([]byte(trimmed), &issues); jsonErr == nil && len(issues) > 0 {
			issue := issues[0]
			if issue.Code == "invalid_type" {
				pe := &ProtocolError{
					Gateway:       gatewayName,
					Tool:          toolName,
					OriginalError: msg,
					ErrorCode:     issue.Code,
					Path:          joinSchemaPath(issue.Path),
				}
				if issue.Expected == "record" {
					pe.Suggestion = "Pass an empty object {} instead of null for parameters"
				} else {
					pe.Suggestion = fmt.Sprintf("Pass a value of type %s", issue.Expected)
				}
				return pe
			}
		}
	}

	if strings.Contains(msg, "-32602") {
		return &ProtocolError{
			Gateway:       gatewayName,
			Tool:          toolName,
			OriginalError: msg,
			ErrorCode:     "invalid_params",
			Suggestion:    "Check the parameter names and types against the tool schema",
		}
	}

	if strings.Contains(msg, "-32601") {
		return &ProtocolError{
			Gateway:       gatewayName,
			Tool:          toolName,
			OriginalError: msg,
			ErrorCode:     "method_not_found",
			Suggestion:    "The gateway does not expose this method; refresh the tool list",
		}
	}

	return nil
}

func joinSchemaPath(path []any) string {
	parts := make([]string, 0, len(path))
	for _, p := range path {
		parts = append(parts, fmt.Sprintf("%v", p))
	}
	return strings.Join(parts, ".")
}
