// Package synthesis turns raw tool results into the final trip plan document.
package synthesis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Tool result categories understood by Synthesize.
const (
	KeyWeather = "weather"
	KeySearch  = "search"
	KeyCard    = "card"
	KeyRAG     = "rag"
)

const (
	DefaultDestination = "Paris"
	DefaultTravelDates = "2026-06-01 to 2026-06-08"
	DefaultTemperature = 20.0

	snippetLimit = 200
	unknown      = "Unknown"
)

// Document is either a plan or an error, never both.
type Document struct {
	Plan  *TripPlan `json:"plan,omitempty"`
	Error string    `json:"error,omitempty"`
}

// TripPlan is the fixed-shape output of a planning request.
type TripPlan struct {
	Destination        string             `json:"destination"`
	TravelDates        string             `json:"travel_dates"`
	Weather            WeatherInfo        `json:"weather"`
	Results            []SearchResult     `json:"results"`
	CardRecommendation CardRecommendation `json:"card_recommendation"`
	CurrencyInfo       CurrencyInfo       `json:"currency_info"`
	Citations          []string           `json:"citations"`
	NextSteps          []string           `json:"next_steps"`
}

type WeatherInfo struct {
	TemperatureC   *float64 `json:"temperature_c"`
	Conditions     string   `json:"conditions"`
	Recommendation string   `json:"recommendation"`
}

type SearchResult struct {
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

type CardRecommendation struct {
	Card    string `json:"card"`
	Benefit string `json:"benefit"`
	FXFee   string `json:"fx_fee"`
	Source  string `json:"source"`
}

// CurrencyInfo carries sample figures. They are fixed and do not reflect the
// fx tool output.
type CurrencyInfo struct {
	SampleMealUSD float64 `json:"sample_meal_usd"`
	SampleMealEUR float64 `json:"sample_meal_eur"`
	USDToEUR      float64 `json:"usd_to_eur"`
	PointsEarned  int     `json:"points_earned"`
}

// Synthesize merges tool results keyed by category with the extracted
// requirements. It never panics; any failure is reported in Document.Error.
func Synthesize(toolResults map[string]any, requirements map[string]any) (doc Document) {
	defer func() {
		if r := recover(); r != nil {
			doc = Document{Error: fmt.Sprint(r)}
		}
	}()

	weather, err := normalize(toolResults[KeyWeather])
	if err != nil {
		return Document{Error: fmt.Sprintf("weather: %v", err)}
	}
	card, err := normalize(toolResults[KeyCard])
	if err != nil {
		return Document{Error: fmt.Sprintf("card: %v", err)}
	}

	plan := &TripPlan{
		Destination: stringOr(requirements, "destination", DefaultDestination),
		TravelDates: stringOr(requirements, "dates", DefaultTravelDates),
		Weather:     weatherInfo(weather),
		Results: []SearchResult{{
			Title:    "Search Result",
			Snippet:  snippet(toolResults[KeySearch]),
			URL:      "https://bing.com",
			Category: "General",
		}},
		CardRecommendation: CardRecommendation{
			Card:    stringOr(card, "card", unknown),
			Benefit: stringOr(card, "benefit", unknown),
			FXFee:   stringOr(card, "fx_fee", unknown),
			Source:  stringOr(card, "source", unknown),
		},
		CurrencyInfo: CurrencyInfo{
			SampleMealUSD: 100.0,
			SampleMealEUR: 92.0,
			USDToEUR:      0.92,
			PointsEarned:  400,
		},
		Citations: []string{"https://bing.com"},
		NextSteps: []string{"Book flight", "Reserve hotel"},
	}
	return Document{Plan: plan}
}

// JSON renders the document indented. A document that cannot be encoded is
// rendered as an error document.
func (d Document) JSON() string {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		raw, _ = json.Marshal(Document{Error: err.Error()})
	}
	return string(raw)
}

func weatherInfo(weather map[string]any) WeatherInfo {
	forecast, _ := weather["daily_forecast"].([]any)
	if len(forecast) == 0 {
		return WeatherInfo{Conditions: unknown, Recommendation: "N/A"}
	}
	first, _ := forecast[0].(map[string]any)
	temp := toFloat(first["max_temp"], DefaultTemperature)
	return WeatherInfo{
		TemperatureC:   &temp,
		Conditions:     "Good",
		Recommendation: "Pack appropriately",
	}
}

func snippet(search any) string {
	var text string
	switch v := search.(type) {
	case nil:
	case string:
		text = v
	case fmt.Stringer:
		text = v.String()
	default:
		if raw, err := json.Marshal(v); err == nil {
			text = string(raw)
		} else {
			text = fmt.Sprint(v)
		}
	}
	runes := []rune(text)
	if len(runes) > snippetLimit {
		runes = runes[:snippetLimit]
	}
	return string(runes) + "..."
}

// normalize turns a structured tool result into a generic map. Structs and
// typed maps are round-tripped through JSON; nil and non-object values yield
// an empty map.
func normalize(v any) (map[string]any, error) {
	switch m := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return normalizeNested(m)
	case string, bool, float64, int:
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}, nil
	}
	return out, nil
}

// normalizeNested converts typed slices inside an already generic map, such
// as a []map[string]any forecast, so type switches see []any.
func normalizeNested(m map[string]any) (map[string]any, error) {
	for _, v := range m {
		switch v.(type) {
		case []any, string, float64, int, bool, nil:
		default:
			raw, err := json.Marshal(m)
			if err != nil {
				return nil, err
			}
			var out map[string]any
			if err := json.Unmarshal(raw, &out); err != nil {
				return nil, err
			}
			return out, nil
		}
	}
	return m, nil
}

func stringOr(m map[string]any, key, fallback string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func toFloat(v any, fallback float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return fallback
}
