package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/andywolf/concierge/internal/version"
)

const (
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	forecastDays        = 10
)

// DayForecast is one day of a forecast. Values are kept as the strings the
// upstream numbers render to.
type DayForecast struct {
	Date    string `json:"date"`
	MaxTemp string `json:"max_temp"`
	MinTemp string `json:"min_temp"`
	Code    string `json:"code"`
}

// Forecast is the weather tool result.
type Forecast struct {
	DailyForecast []DayForecast `json:"daily_forecast"`
}

// Weather fetches daily forecasts from Open-Meteo.
type Weather struct {
	BaseURL string
	client  *http.Client
}

// NewWeather returns a weather tool. An empty baseURL uses Open-Meteo.
func NewWeather(baseURL string, client *http.Client) *Weather {
	if baseURL == "" {
		baseURL = DefaultForecastURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Weather{BaseURL: baseURL, client: client}
}

func (w *Weather) Name() string { return "get_weather" }

func (w *Weather) Description() string {
	return "Get a 10-day weather forecast for a latitude/longitude."
}

func (w *Weather) Params() []Param {
	return []Param{
		{Name: "lat", Type: TypeNumber, Description: "Latitude in degrees", Required: true},
		{Name: "lon", Type: TypeNumber, Description: "Longitude in degrees", Required: true},
	}
}

func (w *Weather) Call(ctx context.Context, args map[string]any) (any, error) {
	lat, err := argFloat(args, "lat")
	if err != nil {
		return nil, err
	}
	lon, err := argFloat(args, "lon")
	if err != nil {
		return nil, err
	}
	return w.Forecast(ctx, lat, lon)
}

// Forecast returns the daily forecast for the given coordinates.
func (w *Weather) Forecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("daily", "weathercode,temperature_2m_max,temperature_2m_min")
	params.Set("timezone", "UTC")
	params.Set("forecast_days", strconv.Itoa(forecastDays))

	var response struct {
		Daily struct {
			Time        []string  `json:"time"`
			TempMax     []float64 `json:"temperature_2m_max"`
			TempMin     []float64 `json:"temperature_2m_min"`
			WeatherCode []int     `json:"weathercode"`
		} `json:"daily"`
	}
	if err := getJSON(ctx, w.client, w.BaseURL+"?"+params.Encode(), &response); err != nil {
		return nil, fmt.Errorf("weather: %w", err)
	}

	d := response.Daily
	n := len(d.Time)
	if len(d.TempMax) < n || len(d.TempMin) < n || len(d.WeatherCode) < n {
		return nil, fmt.Errorf("weather: inconsistent daily series")
	}
	out := &Forecast{DailyForecast: make([]DayForecast, 0, n)}
	for i, date := range d.Time {
		out.DailyForecast = append(out.DailyForecast, DayForecast{
			Date:    date,
			MaxTemp: strconv.FormatFloat(d.TempMax[i], 'f', -1, 64),
			MinTemp: strconv.FormatFloat(d.TempMin[i], 'f', -1, 64),
			Code:    strconv.Itoa(d.WeatherCode[i]),
		})
	}
	return out, nil
}

// Location is a resolved place.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country"`
}

// Geocoder resolves place names with the Open-Meteo geocoding API.
type Geocoder struct {
	BaseURL string
	client  *http.Client
}

// NewGeocoder returns a geocoding tool. An empty baseURL uses Open-Meteo.
func NewGeocoder(baseURL string, client *http.Client) *Geocoder {
	if baseURL == "" {
		baseURL = DefaultGeocodingURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Geocoder{BaseURL: baseURL, client: client}
}

func (g *Geocoder) Name() string { return "geocode" }

func (g *Geocoder) Description() string {
	return "Resolve a city or place name to coordinates."
}

func (g *Geocoder) Params() []Param {
	return []Param{{Name: "name", Type: TypeString, Description: "Place name, e.g. Paris", Required: true}}
}

func (g *Geocoder) Call(ctx context.Context, args map[string]any) (any, error) {
	return g.Lookup(ctx, argString(args, "name", ""))
}

// Lookup returns the best match for name.
func (g *Geocoder) Lookup(ctx context.Context, name string) (*Location, error) {
	if name == "" {
		return nil, fmt.Errorf("geocode: name is required")
	}
	params := url.Values{}
	params.Set("name", name)
	params.Set("count", "1")
	params.Set("language", "en")
	params.Set("format", "json")

	var response struct {
		Results []Location `json:"results"`
	}
	if err := getJSON(ctx, g.client, g.BaseURL+"?"+params.Encode(), &response); err != nil {
		return nil, fmt.Errorf("geocode: %w", err)
	}
	if len(response.Results) == 0 {
		return nil, fmt.Errorf("geocode: no match for %q", name)
	}
	loc := response.Results[0]
	return &loc, nil
}

func getJSON(ctx context.Context, client *http.Client, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
