// Package llm extracts structured travel requirements from free text.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/cexll/agentsdk-go/pkg/model"
)

const extractionPrompt = `Analyze the user's travel request and extract the following details in JSON format:
- destination: The place they want to go.
- dates: When they want to go.
- card: Any specific credit card mentioned (default to "Unknown" if not specified).

User Query: %s

Output Format:
{
    "destination": "...",
    "dates": "...",
    "card": "..."
}`

const systemPrompt = "You extract trip requirements. Reply with a single JSON object and nothing else."

// jsonObject matches from the first '{' to the last '}' across lines.
var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// Extractor turns user text into a requirements mapping.
type Extractor interface {
	Extract(ctx context.Context, text string) (map[string]any, error)
}

// ModelExtractor asks an LLM for the requirements.
type ModelExtractor struct {
	provider model.Provider
}

// NewModelExtractor returns an extractor backed by provider.
func NewModelExtractor(provider model.Provider) *ModelExtractor {
	return &ModelExtractor{provider: provider}
}

// Extract sends the extraction prompt and parses the first JSON object in
// the reply.
func (e *ModelExtractor) Extract(ctx context.Context, text string) (map[string]any, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("no model provider configured")
	}
	mdl, err := e.provider.Model(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	resp, err := mdl.Complete(ctx, model.Request{
		System: systemPrompt,
		Messages: []model.Message{
			{Role: "user", Content: fmt.Sprintf(extractionPrompt, text)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("extraction returned no response")
	}
	return ParseRequirements(resp.Message.Content)
}

// ParseRequirements pulls the JSON object out of an LLM reply.
func ParseRequirements(reply string) (map[string]any, error) {
	match := jsonObject.FindString(reply)
	if match == "" {
		return nil, fmt.Errorf("no JSON object in reply")
	}
	var req map[string]any
	if err := json.Unmarshal([]byte(match), &req); err != nil {
		return nil, fmt.Errorf("invalid JSON in reply: %w", err)
	}
	return req, nil
}

// ExtractRequirements runs ex and degrades every failure to an empty
// mapping. The error is still returned for logging.
func ExtractRequirements(ctx context.Context, ex Extractor, text string) (map[string]any, error) {
	if ex == nil {
		return map[string]any{}, fmt.Errorf("no extractor configured")
	}
	req, err := ex.Extract(ctx, text)
	if err != nil || req == nil {
		return map[string]any{}, err
	}
	return req, nil
}

// StaticExtractor returns a fixed mapping. It backs offline runs.
type StaticExtractor map[string]any

func (s StaticExtractor) Extract(context.Context, string) (map[string]any, error) {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

// Provider settings.
type ProviderConfig struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// NewProvider builds the model provider named by cfg.Provider. Anything
// other than "openai" uses Anthropic.
func NewProvider(cfg ProviderConfig) model.Provider {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return &model.OpenAIProvider{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			ModelName: cfg.Model,
			MaxTokens: cfg.MaxTokens,
		}
	default:
		return &model.AnthropicProvider{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			ModelName: cfg.Model,
			MaxTokens: cfg.MaxTokens,
			System:    systemPrompt,
		}
	}
}
