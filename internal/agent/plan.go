package agent

import (
	"fmt"
	"strings"

	"github.com/andywolf/concierge/internal/synthesis"
	"github.com/andywolf/concierge/internal/tools"
)

// Tool names the planner knows how to schedule.
const (
	ToolGeocode       = "geocode"
	ToolWeather       = "get_weather"
	ToolSearch        = "web_search"
	ToolCardLookup    = "get_card_recommendation"
	ToolCardRecommend = "recommend_card"
	ToolFX            = "convert_fx"
	ToolKnowledge     = "search_knowledge"
)

const (
	sampleMealUSD = 100.0
	diningMCC     = "5812"
	homeCountry   = "USA"
)

// Step is one scheduled tool invocation.
type Step struct {
	Tool string
	// Key is the synthesis category the output feeds, or "" if the output is
	// only recorded.
	Key  string
	Args map[string]any
	// ArgsFrom derives Args from earlier outputs, keyed by tool name. It is
	// used when a step depends on a previous one.
	ArgsFrom func(outputs map[string]any) (map[string]any, error)
}

// Plan is the ordered list of steps chosen in PlanTools.
type Plan []Step

// Tools returns the tool names in plan order.
func (p Plan) Tools() []string {
	names := make([]string, len(p))
	for i, s := range p {
		names[i] = s.Tool
	}
	return names
}

// BuildPlan chooses tools from the extracted requirements. Steps whose tool
// is not registered are left out.
func BuildPlan(requirements map[string]any, registry *tools.Registry) Plan {
	destination := reqString(requirements, "destination")
	card := reqString(requirements, "card")
	currency := reqString(requirements, "currency")
	if currency == "" {
		currency = "EUR"
	}

	var plan Plan
	if destination != "" {
		plan = append(plan,
			Step{Tool: ToolGeocode, Args: map[string]any{"name": destination}},
			Step{Tool: ToolWeather, Key: synthesis.KeyWeather, ArgsFrom: coordinatesFromGeocode},
		)
	}

	place := destination
	if place == "" {
		place = synthesis.DefaultDestination
	}
	plan = append(plan, Step{
		Tool: ToolSearch,
		Key:  synthesis.KeySearch,
		Args: map[string]any{"query": "top attractions in " + place},
	})

	if card != "" {
		plan = append(plan, Step{Tool: ToolCardLookup, Key: synthesis.KeyCard, Args: map[string]any{"card_name": card}})
	} else {
		plan = append(plan,
			Step{Tool: ToolCardRecommend, ArgsFrom: diningPurchaseAbroad},
			Step{Tool: ToolCardLookup, Key: synthesis.KeyCard, ArgsFrom: cardFromRecommendation},
		)
	}

	plan = append(plan, Step{
		Tool: ToolFX,
		Args: map[string]any{"amount": sampleMealUSD, "from_currency": "USD", "to_currency": currency},
	})

	knowledgeQuery := "card benefits foreign transaction fee"
	if card != "" {
		knowledgeQuery = card + " " + knowledgeQuery
	}
	plan = append(plan, Step{
		Tool: ToolKnowledge,
		Key:  synthesis.KeyRAG,
		Args: map[string]any{"query": knowledgeQuery},
	})

	if registry == nil {
		return plan
	}
	filtered := plan[:0]
	for _, step := range plan {
		if registry.Exists(step.Tool) {
			filtered = append(filtered, step)
		}
	}
	return filtered
}

func coordinatesFromGeocode(outputs map[string]any) (map[string]any, error) {
	loc, ok := outputs[ToolGeocode].(*tools.Location)
	if !ok || loc == nil {
		return nil, fmt.Errorf("no coordinates: geocode did not succeed")
	}
	return map[string]any{"lat": loc.Latitude, "lon": loc.Longitude}, nil
}

// diningPurchaseAbroad models the sample meal at the destination.
func diningPurchaseAbroad(outputs map[string]any) (map[string]any, error) {
	country := homeCountry
	if loc, ok := outputs[ToolGeocode].(*tools.Location); ok && loc != nil && loc.Country != "" {
		country = loc.Country
	}
	return map[string]any{"mcc": diningMCC, "amount": sampleMealUSD, "country": country}, nil
}

func cardFromRecommendation(outputs map[string]any) (map[string]any, error) {
	rec, ok := outputs[ToolCardRecommend].(tools.Recommendation)
	if !ok || rec.Card == "" {
		return nil, fmt.Errorf("no card recommendation available")
	}
	return map[string]any{"card_name": rec.Card}, nil
}

// reqString reads a requirement as text. Placeholders the extractor emits
// for "not mentioned" (Unknown, N/A, none, null) read as "".
func reqString(requirements map[string]any, key string) string {
	v, ok := requirements[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "unknown", "n/a", "na", "none", "null":
		return ""
	}
	return s
}
