package tools

import (
	"context"
	"fmt"
)

// Searcher performs a web search and returns rendered result text
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) (string, error)
}

// SearcherFunc adapts a function to the Searcher interface
type SearcherFunc func(ctx context.Context, query string, maxResults int) (string, error)

func (f SearcherFunc) Search(ctx context.Context, query string, maxResults int) (string, error) {
	return f(ctx, query, maxResults)
}

// WebSearchTool answers questions about current events through a search
// backend
type WebSearchTool struct {
	searcher Searcher
}

// NewWebSearchTool creates the search_web tool
func NewWebSearchTool(searcher Searcher) *WebSearchTool {
	return &WebSearchTool{searcher: searcher}
}

func (t *WebSearchTool) Name() string {
	return "search_web"
}

func (t *WebSearchTool) Description() string {
	return "Search the web for current information. Use for questions about recent events or anything outside stored knowledge."
}

func (t *WebSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "The search query",
			},
			"max_results": map[string]interface{}{
				"type":        "number",
				"description": "Maximum results to return, default 5",
			},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	query, err := StringArg(args, "query")
	if err != nil {
		return "", err
	}
	maxResults := int(FloatArg(args, "max_results", 5))
	if maxResults <= 0 {
		maxResults = 5
	}

	results, err := t.searcher.Search(ctx, query, maxResults)
	if err != nil {
		return "", fmt.Errorf("web search failed: %w", err)
	}
	if results == "" {
		return fmt.Sprintf("No results found for '%s'.", query), nil
	}
	return results, nil
}
