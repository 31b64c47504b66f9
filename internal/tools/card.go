package tools

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed cards.yaml
var embeddedCards []byte

// ErrCardNotFound is returned for a card missing from the catalog.
var ErrCardNotFound = errors.New("card not found")

// CardInfo describes a card's benefits.
type CardInfo struct {
	Card    string `yaml:"card" json:"card"`
	Benefit string `yaml:"benefit" json:"benefit"`
	FXFee   string `yaml:"fx_fee" json:"fx_fee"`
	Source  string `yaml:"source" json:"source"`
}

// CardRules drive recommend_card.
type CardRules struct {
	DiningMCC          string  `yaml:"dining_mcc"`
	HomeCountry        string  `yaml:"home_country"`
	HighSpendThreshold float64 `yaml:"high_spend_threshold"`
}

// CardCatalog is the set of known cards.
type CardCatalog struct {
	Cards []CardInfo `yaml:"cards"`
	Rules CardRules  `yaml:"rules"`

	byName map[string]CardInfo
}

// Recommendation is the result of recommend_card.
type Recommendation struct {
	Card   string `json:"card"`
	Reason string `json:"reason"`
}

// LoadCardCatalog returns the built-in catalog.
func LoadCardCatalog() (*CardCatalog, error) {
	return ParseCardCatalog(embeddedCards)
}

// ParseCardCatalog decodes a YAML catalog.
func ParseCardCatalog(data []byte) (*CardCatalog, error) {
	var c CardCatalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse card catalog: %w", err)
	}
	if len(c.Cards) == 0 {
		return nil, fmt.Errorf("card catalog is empty")
	}
	c.byName = make(map[string]CardInfo, len(c.Cards))
	for _, card := range c.Cards {
		if card.Card == "" {
			return nil, fmt.Errorf("card catalog entry without name")
		}
		c.byName[card.Card] = card
	}
	return &c, nil
}

// Lookup returns the entry for name. Names are matched exactly.
func (c *CardCatalog) Lookup(name string) (CardInfo, error) {
	card, ok := c.byName[name]
	if !ok {
		return CardInfo{}, ErrCardNotFound
	}
	return card, nil
}

// Names returns the catalog card names, sorted.
func (c *CardCatalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Recommend picks a card for a transaction. Rules apply in order: dining
// merchants, then purchases abroad, then high spend.
func (c *CardCatalog) Recommend(mcc string, amount float64, country string) Recommendation {
	switch {
	case mcc == c.Rules.DiningMCC:
		return Recommendation{Card: "BankGold", Reason: "4x points on dining"}
	case country != c.Rules.HomeCountry:
		return Recommendation{Card: "BankGold", Reason: "No foreign transaction fee"}
	case amount > c.Rules.HighSpendThreshold:
		return Recommendation{Card: "BankPlatinum", Reason: "High spend reward"}
	default:
		return Recommendation{Card: "BankRewards", Reason: "General rewards"}
	}
}

// CardLookup is the get_card_recommendation tool.
type CardLookup struct {
	catalog *CardCatalog
}

func NewCardLookup(catalog *CardCatalog) *CardLookup {
	return &CardLookup{catalog: catalog}
}

func (c *CardLookup) Name() string { return "get_card_recommendation" }

func (c *CardLookup) Description() string {
	return "Get details and benefits for a specific credit card."
}

func (c *CardLookup) Params() []Param {
	return []Param{{Name: "card_name", Type: TypeString, Description: "Card name, e.g. BankGold", Required: true}}
}

func (c *CardLookup) Call(_ context.Context, args map[string]any) (any, error) {
	card, err := c.catalog.Lookup(argString(args, "card_name", ""))
	if err != nil {
		return nil, err
	}
	return card, nil
}

// CardRecommender is the recommend_card tool.
type CardRecommender struct {
	catalog *CardCatalog
}

func NewCardRecommender(catalog *CardCatalog) *CardRecommender {
	return &CardRecommender{catalog: catalog}
}

func (c *CardRecommender) Name() string { return "recommend_card" }

func (c *CardRecommender) Description() string {
	return "Recommend a credit card for a transaction."
}

func (c *CardRecommender) Params() []Param {
	return []Param{
		{Name: "mcc", Type: TypeString, Description: "Merchant category code", Required: true},
		{Name: "amount", Type: TypeNumber, Description: "Transaction amount in USD", Required: true},
		{Name: "country", Type: TypeString, Description: "Country of purchase", Required: true},
	}
}

func (c *CardRecommender) Call(_ context.Context, args map[string]any) (any, error) {
	amount, err := argFloat(args, "amount")
	if err != nil {
		return nil, err
	}
	return c.catalog.Recommend(argString(args, "mcc", ""), amount, argString(args, "country", "")), nil
}
