// Package weather answers current-conditions and forecast questions
// through the OpenWeatherMap API.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dshills/valet/internal/plugin"
)

const (
	// DefaultCity is used when no city can be read from the command.
	DefaultCity = "London"

	defaultBaseURL = "https://api.openweathermap.org/data/2.5"
	requestTimeout = 10 * time.Second
)

// NoKeyResponse is the answer when no API key is configured.
const NoKeyResponse = "The weather plugin needs an OpenWeatherMap API key. Set OPENWEATHER_API_KEY and restart me."

// Plugin reports weather for a city named in the command.
type Plugin struct {
	plugin.Base
	apiKey  string
	baseURL string
	http    *http.Client
}

// Option configures the plugin.
type Option func(*Plugin)

// WithBaseURL points the plugin at a different API host.
func WithBaseURL(u string) Option {
	return func(p *Plugin) { p.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Plugin) { p.http = hc }
}

// New builds the plugin. An empty apiKey leaves it answering with a
// configuration hint instead of calling the API.
func New(apiKey string, opts ...Option) *Plugin {
	p := &Plugin{
		Base: plugin.NewBase("weather", "Weather",
			"weather in <city>, forecast for <city>",
			"weather", "temperature", "forecast", "climate"),
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute implements plugin.Plugin.
func (p *Plugin) Execute(ctx context.Context, cmd plugin.Command) (string, error) {
	text := plugin.Normalize(cmd.Text)
	city := ExtractCity(text)

	if p.apiKey == "" {
		return NoKeyResponse, nil
	}

	if strings.Contains(text, "forecast") || strings.Contains(text, "prediction") || strings.Contains(text, "tomorrow") {
		return p.forecast(ctx, city)
	}
	return p.current(ctx, city)
}

// ExtractCity pulls a city name out of folded command text. It takes
// everything after the last "in", "for", or "at", drops time words and
// punctuation, and falls back to DefaultCity.
func ExtractCity(text string) string {
	for _, prep := range []string{" in ", " for ", " at "} {
		idx := strings.LastIndex(text, prep)
		if idx < 0 {
			continue
		}
		city := strings.TrimSpace(text[idx+len(prep):])
		city = strings.Trim(city, "?!.,")
		for _, suffix := range []string{" today", " tomorrow", " right now", " now"} {
			city = strings.TrimSuffix(city, suffix)
		}
		city = strings.TrimSpace(city)
		if city != "" {
			return titleCase(city)
		}
	}
	return DefaultCity
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

type conditions struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
}

func (c conditions) description() string {
	if len(c.Weather) == 0 {
		return "unknown conditions"
	}
	return c.Weather[0].Description
}

func (p *Plugin) current(ctx context.Context, city string) (string, error) {
	var out conditions
	if err := p.get(ctx, "/weather", city, &out); err != nil {
		if errors.Is(err, errCityUnknown) {
			return fmt.Sprintf("I couldn't find weather data for %s. Is the city name right?", city), nil
		}
		return "", err
	}

	return fmt.Sprintf("Current weather in %s: %s, %.1f°C (feels like %.1f°C), humidity %d%%.",
		city, titleCase(out.description()), out.Main.Temp, out.Main.FeelsLike, out.Main.Humidity), nil
}

type forecastEntry struct {
	DtTxt   string `json:"dt_txt"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
}

// forecastStride skips the 3-hour entries down to one per day.
const forecastStride = 8

func (p *Plugin) forecast(ctx context.Context, city string) (string, error) {
	var out struct {
		List []forecastEntry `json:"list"`
	}
	if err := p.get(ctx, "/forecast", city, &out); err != nil {
		if errors.Is(err, errCityUnknown) {
			return fmt.Sprintf("I couldn't find forecast data for %s. Is the city name right?", city), nil
		}
		return "", err
	}
	if len(out.List) == 0 {
		return fmt.Sprintf("No forecast data came back for %s.", city), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Forecast for %s:", city)
	for i := 0; i < len(out.List); i += forecastStride {
		entry := out.List[i]
		date := entry.DtTxt
		if fields := strings.Fields(entry.DtTxt); len(fields) > 0 {
			date = fields[0]
		}
		desc := "unknown conditions"
		if len(entry.Weather) > 0 {
			desc = entry.Weather[0].Description
		}
		fmt.Fprintf(&sb, "\n%s: %s, %.1f°C", date, titleCase(desc), entry.Main.Temp)
	}
	return sb.String(), nil
}

var errCityUnknown = errors.New("weather: city not found")

func (p *Plugin) get(ctx context.Context, path, city string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s%s?q=%s&appid=%s&units=metric",
		p.baseURL, path, url.QueryEscape(city), url.QueryEscape(p.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("weather: build request: %w", err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("weather: fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errCityUnknown
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("weather: api returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("weather: decode response: %w", err)
	}
	return nil
}
