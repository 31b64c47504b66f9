package agent

import (
	"reflect"
	"strings"
	"testing"

	"github.com/andywolf/concierge/internal/synthesis"
	"github.com/andywolf/concierge/internal/tools"
)

func fullRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	catalog, err := tools.LoadCardCatalog()
	if err != nil {
		t.Fatalf("LoadCardCatalog() error: %v", err)
	}
	return tools.NewRegistry(
		tools.NewGeocoder("http://127.0.0.1:1", nil),
		tools.NewWeather("http://127.0.0.1:1", nil),
		tools.NewSearch("", "", "http://127.0.0.1:1", nil),
		tools.NewCardLookup(catalog),
		tools.NewCardRecommender(catalog),
		tools.NewFX(),
		tools.NewKnowledge(nil, 0),
	)
}

func TestBuildPlan(t *testing.T) {
	registry := fullRegistry(t)

	tests := []struct {
		name         string
		requirements map[string]any
		want         []string
	}{
		{
			name:         "destination and card",
			requirements: map[string]any{"destination": "Paris", "card": "BankGold"},
			want:         []string{ToolGeocode, ToolWeather, ToolSearch, ToolCardLookup, ToolFX, ToolKnowledge},
		},
		{
			name:         "destination without card",
			requirements: map[string]any{"destination": "Tokyo"},
			want:         []string{ToolGeocode, ToolWeather, ToolSearch, ToolCardRecommend, ToolCardLookup, ToolFX, ToolKnowledge},
		},
		{
			name:         "card reported as Unknown",
			requirements: map[string]any{"destination": "Tokyo", "card": "Unknown"},
			want:         []string{ToolGeocode, ToolWeather, ToolSearch, ToolCardRecommend, ToolCardLookup, ToolFX, ToolKnowledge},
		},
		{
			name:         "placeholders in any case",
			requirements: map[string]any{"destination": " unknown ", "card": "N/A"},
			want:         []string{ToolSearch, ToolCardRecommend, ToolCardLookup, ToolFX, ToolKnowledge},
		},
		{
			name:         "blank card",
			requirements: map[string]any{"destination": "Rome", "card": "   "},
			want:         []string{ToolGeocode, ToolWeather, ToolSearch, ToolCardRecommend, ToolCardLookup, ToolFX, ToolKnowledge},
		},
		{
			name:         "nothing extracted",
			requirements: map[string]any{},
			want:         []string{ToolSearch, ToolCardRecommend, ToolCardLookup, ToolFX, ToolKnowledge},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildPlan(tt.requirements, registry).Tools()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuildPlan() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildPlan_SkipsUnregisteredTools(t *testing.T) {
	registry := tools.NewRegistry(tools.NewFX())
	got := BuildPlan(map[string]any{"destination": "Paris"}, registry).Tools()
	if !reflect.DeepEqual(got, []string{ToolFX}) {
		t.Errorf("BuildPlan() = %v, want [%s]", got, ToolFX)
	}
}

func TestBuildPlan_Args(t *testing.T) {
	plan := BuildPlan(map[string]any{"card": "BankGold", "currency": "JPY"}, nil)

	byTool := make(map[string]Step)
	for _, s := range plan {
		byTool[s.Tool] = s
	}
	if q := byTool[ToolSearch].Args["query"]; q != "top attractions in "+synthesis.DefaultDestination {
		t.Errorf("unexpected search query %v", q)
	}
	if to := byTool[ToolFX].Args["to_currency"]; to != "JPY" {
		t.Errorf("expected JPY conversion, got %v", to)
	}
	if c := byTool[ToolCardLookup].Args["card_name"]; c != "BankGold" {
		t.Errorf("expected BankGold lookup, got %v", c)
	}
	if byTool[ToolCardLookup].Key != synthesis.KeyCard {
		t.Errorf("expected card lookup to feed %q", synthesis.KeyCard)
	}
}

func TestDerivedArgs(t *testing.T) {
	loc := &tools.Location{Name: "Paris", Latitude: 48.85, Longitude: 2.35, Country: "France"}
	outputs := map[string]any{
		ToolGeocode:       loc,
		ToolCardRecommend: tools.Recommendation{Card: "BankGold", Reason: "4x points on dining"},
	}

	args, err := coordinatesFromGeocode(outputs)
	if err != nil {
		t.Fatalf("coordinatesFromGeocode() error: %v", err)
	}
	if args["lat"] != 48.85 || args["lon"] != 2.35 {
		t.Errorf("unexpected coordinates %v", args)
	}

	args, _ = diningPurchaseAbroad(outputs)
	if args["country"] != "France" || args["mcc"] != diningMCC {
		t.Errorf("unexpected purchase args %v", args)
	}

	args, err = cardFromRecommendation(outputs)
	if err != nil || args["card_name"] != "BankGold" {
		t.Errorf("cardFromRecommendation() = %v, %v", args, err)
	}

	if _, err := coordinatesFromGeocode(map[string]any{}); err == nil {
		t.Error("expected error without geocode output")
	}
	if _, err := cardFromRecommendation(map[string]any{}); err == nil {
		t.Error("expected error without recommendation")
	}
	if args, _ := diningPurchaseAbroad(map[string]any{}); args["country"] != homeCountry {
		t.Errorf("expected home country fallback, got %v", args["country"])
	}
}

func TestBuildPlan_UnknownCardUsesRecommendation(t *testing.T) {
	plan := BuildPlan(map[string]any{"destination": "Lisbon", "card": "Unknown"}, nil)
	for _, step := range plan {
		if step.Tool == ToolCardLookup && step.Args != nil {
			t.Errorf("expected card lookup to take its card from the recommendation, got args %v", step.Args)
		}
		if step.Tool == ToolKnowledge {
			if q := step.Args["query"]; strings.Contains(q.(string), "Unknown") {
				t.Errorf("knowledge query should not mention the placeholder: %q", q)
			}
		}
	}
}
