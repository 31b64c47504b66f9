package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// mockRates are USD-based exchange rates.
var mockRates = map[string]float64{
	"USD": 1.0,
	"EUR": 0.92,
	"GBP": 0.79,
	"JPY": 150.0,
	"CAD": 1.35,
	"AUD": 1.52,
}

// Conversion is the fx tool result.
type Conversion struct {
	Amount    float64 `json:"amount"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Converted float64 `json:"converted"`
	Text      string  `json:"text"`
}

// FX converts between currencies using a fixed rate table. Unknown
// currencies are treated as USD.
type FX struct{}

func NewFX() *FX { return &FX{} }

func (f *FX) Name() string { return "convert_fx" }

func (f *FX) Description() string {
	return "Convert an amount from one currency to another."
}

func (f *FX) Params() []Param {
	return []Param{
		{Name: "amount", Type: TypeNumber, Description: "Amount to convert", Required: true},
		{Name: "from_currency", Type: TypeString, Description: "ISO code to convert from", Required: true},
		{Name: "to_currency", Type: TypeString, Description: "ISO code to convert to", Required: true},
	}
}

func (f *FX) Call(_ context.Context, args map[string]any) (any, error) {
	amount, err := argFloat(args, "amount")
	if err != nil {
		return nil, err
	}
	return f.Convert(amount, argString(args, "from_currency", "USD"), argString(args, "to_currency", "USD")), nil
}

// Convert applies the rate table to amount.
func (f *FX) Convert(amount float64, from, to string) Conversion {
	fromRate := rate(from)
	toRate := rate(to)
	converted := amount * (toRate / fromRate)
	return Conversion{
		Amount:    amount,
		From:      from,
		To:        to,
		Converted: math.Round(converted*100) / 100,
		Text:      fmt.Sprintf("%s %s = %.2f %s", formatAmount(amount), from, converted, to),
	}
}

func rate(code string) float64 {
	if r, ok := mockRates[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return r
	}
	return 1.0
}

// formatAmount keeps one decimal for whole amounts, e.g. 100.0.
func formatAmount(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
