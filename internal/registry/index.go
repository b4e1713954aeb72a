package registry

import (
	"sort"
	"strings"
	"sync"
)

// Search scoring constants - higher scores rank first
const (
	scoreExactToolName   = 1000 // query exactly matches tool name
	scoreGatewayMatch    = 800  // query matches gateway name (beats prefix+term combos)
	scoreToolNamePrefix  = 300  // tool name starts with query
	scoreAllTermsInName  = 200  // all query terms found in tool name
	scoreAllTermsCrossed = 150  // all terms found across gateway name + tool name
	scoreAllTermsInDesc  = 100  // all query terms found in description
	scorePartialTermName = 50   // per term found in tool name
	scorePartialTermDesc = 25   // per term found in description
	scoreFuzzyMatch      = 10   // fuzzy normalized match (fallback)
)

// normalize converts a string to lowercase and normalizes separators
// (underscores, hyphens, spaces) to enable fuzzy matching.
// e.g., "read_cypher", "read-cypher", "read cypher" all become "readcypher"
func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// tokenize splits a string into lowercase terms, splitting on common separators
func tokenize(s string) []string {
	s = strings.ToLower(s)
	// Replace common separators with spaces
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, ".", " ")

	fields := strings.Fields(s)
	// Filter out empty strings
	result := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			result = append(result, f)
		}
	}
	return result
}

// containsAllTerms checks if all terms are found in the text
func containsAllTerms(text string, terms []string) bool {
	textLower := strings.ToLower(text)
	for _, term := range terms {
		if !strings.Contains(textLower, term) {
			return false
		}
	}
	return true
}

// countMatchingTerms counts how many terms are found in the text
func countMatchingTerms(text string, terms []string) int {
	textLower := strings.ToLower(text)
	count := 0
	for _, term := range terms {
		if strings.Contains(textLower, term) {
			count++
		}
	}
	return count
}

// scoredTool holds a tool with its search relevance score
type scoredTool struct {
	tool  ToolInfo
	score int
}

// ToolIndex indexes tools for efficient searching.
type ToolIndex struct {
	// gateway name -> list of tools
	byGateway map[string][]ToolInfo
	mu        sync.RWMutex
}

// NewToolIndex creates a new ToolIndex.
func NewToolIndex() *ToolIndex {
	return &ToolIndex{
		byGateway: make(map[string][]ToolInfo),
	}
}

// Add adds tools for a gateway.
func (idx *ToolIndex) Add(gatewayName string, tools []ToolInfo) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byGateway[gatewayName] = tools
}

// Remove removes all tools for a gateway.
func (idx *ToolIndex) Remove(gatewayName string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.byGateway, gatewayName)
}

// Search searches tools by query and optionally filters by gateway name.
// Uses multiple ranking strategies to return the most relevant results first:
//  1. Exact tool name match, full or base name (highest priority)
//  2. Gateway name match
//  3. Tool name prefix match
//  4. All query terms in tool name
//  5. All query terms across gateway name + tool name
//  6. All query terms in description
//  7. Partial term matches (scored by count)
//  8. Fuzzy normalized match (fallback)
func (idx *ToolIndex) Search(query, gatewayName string) []ToolInfo {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	// If no query, return all tools (optionally filtered by gateway)
	if query == "" {
		var results []ToolInfo
		for gw, tools := range idx.byGateway {
			if gatewayName != "" && gw != gatewayName {
				continue
			}
			results = append(results, tools...)
		}
		return results
	}

	queryLower := strings.ToLower(query)
	queryNorm := normalize(query)
	queryTerms := tokenize(query)

	var scored []scoredTool

	for gw, tools := range idx.byGateway {
		// Filter by gateway name if specified
		if gatewayName != "" && gw != gatewayName {
			continue
		}

		gwLower := strings.ToLower(gw)

		for _, tool := range tools {
			score := idx.scoreTool(tool, gw, gwLower, queryLower, queryNorm, queryTerms)
			if score > 0 {
				scored = append(scored, scoredTool{tool: tool, score: score})
			}
		}
	}

	// Sort by score descending
	sort.Slice(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	// Extract tools from scored results
	results := make([]ToolInfo, len(scored))
	for i, s := range scored {
		results[i] = s.tool
	}

	return results
}

// scoreTool calculates the relevance score for a tool given a query.
// Returns 0 if the tool doesn't match at all.
func (idx *ToolIndex) scoreTool(tool ToolInfo, gatewayName, gwLower, queryLower, queryNorm string, queryTerms []string) int {
	nameLower := strings.ToLower(tool.Name)
	descLower := strings.ToLower(tool.Description)
	nameNorm := normalize(tool.Name)
	descNorm := normalize(tool.Description)
	baseLower := strings.ToLower(tool.BaseName)
	baseNorm := normalize(tool.BaseName)

	score := 0

	// Strategy 1: Exact tool name match (case-insensitive), on the full
	// gateway name or the base name callers actually use
	if nameLower == queryLower || nameNorm == queryNorm {
		score += scoreExactToolName
	} else if tool.BaseName != "" && (baseLower == queryLower || baseNorm == queryNorm) {
		score += scoreExactToolName
	}

	// Strategy 2: Query matches gateway name
	if gwLower == queryLower || normalize(gatewayName) == queryNorm {
		score += scoreGatewayMatch
	}

	// Strategy 3: Tool name starts with query
	if strings.HasPrefix(nameLower, queryLower) || strings.HasPrefix(nameNorm, queryNorm) {
		score += scoreToolNamePrefix
	} else if tool.BaseName != "" && (strings.HasPrefix(baseLower, queryLower) || strings.HasPrefix(baseNorm, queryNorm)) {
		score += scoreToolNamePrefix
	}

	// Multi-term strategies (only if we have terms)
	if len(queryTerms) > 0 {
		// Strategy 4: All terms found in tool name
		if containsAllTerms(nameLower, queryTerms) {
			score += scoreAllTermsInName
		}

		// Strategy 5: All terms found across gateway name + tool name
		combined := gwLower + " " + nameLower
		if containsAllTerms(combined, queryTerms) {
			score += scoreAllTermsCrossed
		}

		// Strategy 6: All terms found in description
		if containsAllTerms(descLower, queryTerms) {
			score += scoreAllTermsInDesc
		}

		// Strategy 7a: Partial term matches in name
		nameMatches := countMatchingTerms(nameLower, queryTerms)
		if nameMatches > 0 {
			score += nameMatches * scorePartialTermName
		}

		// Strategy 7b: Partial term matches in description
		descMatches := countMatchingTerms(descLower, queryTerms)
		if descMatches > 0 {
			score += descMatches * scorePartialTermDesc
		}
	}

	// Strategy 8: Fuzzy normalized match (fallback)
	if score == 0 {
		if strings.Contains(nameLower, queryLower) ||
			strings.Contains(descLower, queryLower) ||
			strings.Contains(nameNorm, queryNorm) ||
			strings.Contains(descNorm, queryNorm) {
			score += scoreFuzzyMatch
		}
	}

	return score
}

// CountForGateway returns the number of tools for a gateway.
func (idx *ToolIndex) CountForGateway(gatewayName string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byGateway[gatewayName])
}

// ListForGateway returns tool names for a gateway.
func (idx *ToolIndex) ListForGateway(gatewayName string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	tools := idx.byGateway[gatewayName]
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}

// GetAllForGateway returns all tool info for a gateway.
func (idx *ToolIndex) GetAllForGateway(gatewayName string) []ToolInfo {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	tools := idx.byGateway[gatewayName]
	result := make([]ToolInfo, len(tools))
	copy(result, tools)
	return result
}

// GetAll returns all indexed tools.
func (idx *ToolIndex) GetAll() []ToolInfo {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var all []ToolInfo
	for _, tools := range idx.byGateway {
		all = append(all, tools...)
	}
	return all
}

// GetTool returns the ToolInfo for a specific tool on a gateway, matching
// the full name first, then the base name. Returns nil if not found.
func (idx *ToolIndex) GetTool(gatewayName, toolName string) *ToolInfo {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	tools, ok := idx.byGateway[gatewayName]
	if !ok {
		return nil
	}

	for _, tool := range tools {
		if tool.Name == toolName {
			return &tool
		}
	}
	for _, tool := range tools {
		if tool.BaseName != "" && tool.BaseName == toolName {
			return &tool
		}
	}
	return nil
}
