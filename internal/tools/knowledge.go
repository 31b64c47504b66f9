package tools

import (
	"context"
	"fmt"

	"github.com/andywolf/concierge/internal/longterm"
)

// KnowledgeSearcher retrieves snippets relevant to a query.
type KnowledgeSearcher interface {
	SearchKnowledge(ctx context.Context, query string, topK int) ([]longterm.Snippet, error)
}

// Knowledge is the search_knowledge tool.
type Knowledge struct {
	searcher KnowledgeSearcher
	topK     int
}

// NewKnowledge returns a knowledge tool. Non-positive topK uses the store
// default.
func NewKnowledge(searcher KnowledgeSearcher, topK int) *Knowledge {
	if topK <= 0 {
		topK = longterm.DefaultTopK
	}
	return &Knowledge{searcher: searcher, topK: topK}
}

func (k *Knowledge) Name() string { return "search_knowledge" }

func (k *Knowledge) Description() string {
	return "Search the internal knowledge base for policies and card info."
}

func (k *Knowledge) Params() []Param {
	return []Param{
		{Name: "query", Type: TypeString, Description: "What to look up", Required: true},
		{Name: "top_k", Type: TypeNumber, Description: "Number of snippets to return"},
	}
}

func (k *Knowledge) Call(ctx context.Context, args map[string]any) (any, error) {
	if k.searcher == nil {
		return nil, fmt.Errorf("knowledge base is not configured")
	}
	return k.searcher.SearchKnowledge(ctx, argString(args, "query", ""), argInt(args, "top_k", k.topK))
}

// SeedCatalog stores one snippet per card so card questions can be answered
// from the knowledge base.
func SeedCatalog(ctx context.Context, store interface {
	UpsertSnippet(ctx context.Context, content, source string) (string, error)
}, catalog *CardCatalog) error {
	for _, name := range catalog.Names() {
		card, _ := catalog.Lookup(name)
		content := fmt.Sprintf("%s card: %s. Foreign transaction fee: %s.", card.Card, card.Benefit, card.FXFee)
		if _, err := store.UpsertSnippet(ctx, content, card.Source); err != nil {
			return err
		}
	}
	return nil
}
