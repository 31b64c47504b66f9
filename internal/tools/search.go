package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/andywolf/concierge/internal/version"
)

const (
	DefaultSearchURL  = "https://api.tavily.com/search"
	defaultMaxResults = 5
)

// SearchResult is one web hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Search queries the Tavily search API.
type Search struct {
	APIKey  string
	Depth   string
	BaseURL string
	client  *http.Client
	// initialBackoff is the first delay after a 429.
	initialBackoff time.Duration
}

// NewSearch constructs a Tavily-backed search tool.
func NewSearch(apiKey, depth, baseURL string, client *http.Client) *Search {
	if depth == "" {
		depth = "basic"
	}
	if baseURL == "" {
		baseURL = DefaultSearchURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Search{APIKey: apiKey, Depth: depth, BaseURL: baseURL, client: client, initialBackoff: time.Second}
}

func (s *Search) Name() string { return "web_search" }

func (s *Search) Description() string {
	return "Search the web and return a short summary with sources."
}

func (s *Search) Params() []Param {
	return []Param{
		{Name: "query", Type: TypeString, Description: "Search query", Required: true},
		{Name: "max_results", Type: TypeNumber, Description: "Maximum number of results (default 5)"},
	}
}

// Call returns a plain-text summary of the hits.
func (s *Search) Call(ctx context.Context, args map[string]any) (any, error) {
	results, err := s.Search(ctx, argString(args, "query", ""), argInt(args, "max_results", defaultMaxResults))
	if err != nil {
		return nil, err
	}
	return Summarize(results), nil
}

// Search posts a query to Tavily. A 429 is retried with a doubling delay
// capped at 30s until ctx is done.
func (s *Search) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, errors.New("search: API key is missing")
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search: query is empty")
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	payload, err := json.Marshal(map[string]any{
		"query":       query,
		"api_key":     s.APIKey,
		"depth":       s.Depth,
		"max_results": maxResults,
	})
	if err != nil {
		return nil, err
	}

	var resp *http.Response
	delay := s.initialBackoff
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", version.UserAgent())

		resp, err = s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: http %d", resp.StatusCode)
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]SearchResult, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}

// Summarize renders results as numbered lines with their sources.
func Summarize(results []SearchResult) string {
	if len(results) == 0 {
		return "No results found."
	}
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d. %s: %s [%s]", i+1, r.Title, strings.TrimSpace(r.Snippet), r.URL)
	}
	return sb.String()
}
