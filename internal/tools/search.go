package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/marchhare/go-crew/internal/ai"
)

// SearchProvider is the interface every search backend implements.
// Available() checks provider-specific readiness (e.g. API key present).
type SearchProvider interface {
	Name() string        // e.g. "brave_search", "duckduckgo"
	Description() string // human-readable label
	Available() bool
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// SearchResult is one hit returned by a provider.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchOutput is the tool's JSON result payload.
type SearchOutput struct {
	Results  []SearchResult `json:"results"`
	Provider string         `json:"provider,omitempty"`
}

// RegisterSearch adds the web_search tool backed by the given providers,
// ordered by preference.
func RegisterSearch(c *Catalog, providers []SearchProvider) error {
	def := ai.ToolDef{
		Name:        "web_search",
		Description: "Search the web for current information. Returns results with titles, URLs, and snippets.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
			},
			"required":             []string{"query"},
			"additionalProperties": false,
		},
	}
	return c.Register(def, func(ctx context.Context, args map[string]any) (string, error) {
		query, _ := args["query"].(string)
		out, err := search(ctx, query, providers)
		if err != nil {
			return "", err
		}
		raw, err := json.Marshal(out)
		if err != nil {
			return "", fmt.Errorf("encode search output: %w", err)
		}
		return string(raw), nil
	})
}

// search routes a query through the ordered provider list: skip unavailable,
// try search, fall through on error. First success wins.
func search(ctx context.Context, query string, providers []SearchProvider) (SearchOutput, error) {
	if query == "" {
		return SearchOutput{}, fmt.Errorf("empty search query")
	}

	slog.Info("web_search tool called", "query", query)

	for _, p := range providers {
		if !p.Available() {
			continue
		}
		results, err := p.Search(ctx, query)
		if err != nil {
			slog.Warn("search provider failed, trying next", "provider", p.Name(), "error", err)
			continue
		}
		if len(results) == 0 {
			return SearchOutput{Provider: p.Name(), Results: []SearchResult{{
				Title:   "No results found",
				Snippet: fmt.Sprintf("No results found for %q.", query),
			}}}, nil
		}
		return SearchOutput{Provider: p.Name(), Results: results}, nil
	}

	return SearchOutput{Results: []SearchResult{{
		Title:   "Search unavailable",
		Snippet: fmt.Sprintf("Could not search for %q. Configure a search provider API key.", query),
	}}}, nil
}

// BuildProviders constructs the provider list with optional preference
// reordering. Default order: Brave then DuckDuckGo.
func BuildProviders(braveAPIKey, preferred string) []SearchProvider {
	providers := []SearchProvider{
		NewBraveProvider(braveAPIKey),
		NewDDGProvider(),
	}
	if preferred == "" {
		return providers
	}
	for i, p := range providers {
		if p.Name() == preferred && i > 0 {
			reordered := make([]SearchProvider, 0, len(providers))
			reordered = append(reordered, p)
			reordered = append(reordered, providers[:i]...)
			reordered = append(reordered, providers[i+1:]...)
			return reordered
		}
	}
	return providers
}
