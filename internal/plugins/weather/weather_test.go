package weather_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dshills/valet/internal/plugin"
	"github.com/dshills/valet/internal/plugins/weather"
)

func command(text string) plugin.Command {
	return plugin.Command{Text: text, Source: plugin.SourceText}
}

func TestExtractCity(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"weather in paris", "Paris"},
		{"weather in new york", "New York"},
		{"temperature for berlin today", "Berlin"},
		{"forecast for oslo tomorrow", "Oslo"},
		{"what's the weather at lagos?", "Lagos"},
		{"weather", "London"},
		{"what is the weather like", "London"},
		{"weather in ", "London"},
	}
	for _, tt := range tests {
		if got := weather.ExtractCity(plugin.Normalize(tt.text)); got != tt.want {
			t.Errorf("ExtractCity(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestCanHandle(t *testing.T) {
	p := weather.New("key")

	for _, text := range []string{"weather in paris", "what's the temperature", "forecast for oslo", "climate in oslo"} {
		if !p.CanHandle(plugin.Normalize(text)) {
			t.Errorf("expected %q to match", text)
		}
	}
	if p.CanHandle(plugin.Normalize("play some music")) {
		t.Error("unrelated command should not match")
	}
}

func TestCurrentWeather(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/weather" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "Paris" {
			t.Errorf("city = %q", q.Get("q"))
		}
		if q.Get("appid") != "test-key" {
			t.Errorf("appid = %q", q.Get("appid"))
		}
		if q.Get("units") != "metric" {
			t.Errorf("units = %q", q.Get("units"))
		}
		w.Write([]byte(`{
			"weather": [{"description": "scattered clouds"}],
			"main": {"temp": 21.3, "feels_like": 20.1, "humidity": 64}
		}`))
	}))
	defer srv.Close()

	p := weather.New("test-key", weather.WithBaseURL(srv.URL))

	got, err := p.Execute(context.Background(), command("weather in Paris"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	for _, want := range []string{"Paris", "Scattered Clouds", "21.3°C", "feels like 20.1°C", "humidity 64%"} {
		if !strings.Contains(got, want) {
			t.Errorf("response %q missing %q", got, want)
		}
	}
}

func TestForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forecast" {
			t.Errorf("path = %q", r.URL.Path)
		}
		// Two days of 3-hour entries; only entries 0 and 8 should surface.
		var entries []string
		for i := 0; i < 16; i++ {
			entries = append(entries, fmt.Sprintf(`{
				"dt_txt": "2026-08-%02d 12:00:00",
				"weather": [{"description": "light rain"}],
				"main": {"temp": 18.0}
			}`, 22+i/8))
		}
		w.Write([]byte(`{"list": [` + strings.Join(entries, ",") + `]}`))
	}))
	defer srv.Close()

	p := weather.New("test-key", weather.WithBaseURL(srv.URL))

	got, err := p.Execute(context.Background(), command("forecast for Oslo"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(got, "Forecast for Oslo:") {
		t.Errorf("response %q missing header", got)
	}
	if strings.Count(got, "Light Rain") != 2 {
		t.Errorf("expected one line per day, got %q", got)
	}
	if !strings.Contains(got, "2026-08-22") || !strings.Contains(got, "2026-08-23") {
		t.Errorf("response %q missing dates", got)
	}
}

func TestMissingKey(t *testing.T) {
	p := weather.New("")

	got, err := p.Execute(context.Background(), command("weather in Paris"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got != weather.NoKeyResponse {
		t.Errorf("response = %q", got)
	}
}

func TestUnknownCity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := weather.New("test-key", weather.WithBaseURL(srv.URL))

	got, err := p.Execute(context.Background(), command("weather in Atlantis"))
	if err != nil {
		t.Fatalf("unknown city should answer, not fail: %v", err)
	}
	if !strings.Contains(got, "Atlantis") {
		t.Errorf("response %q should name the city", got)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := weather.New("test-key", weather.WithBaseURL(srv.URL))

	_, err := p.Execute(context.Background(), command("weather in Paris"))
	if err == nil {
		t.Fatal("expected an error for a failing API")
	}
}

func TestIdentity(t *testing.T) {
	p := weather.New("key")
	if p.Name() != "weather" {
		t.Errorf("Name() = %q", p.Name())
	}
	if p.DisplayName() != "Weather" {
		t.Errorf("DisplayName() = %q", p.DisplayName())
	}
	if p.Help() == "" {
		t.Error("Help() should not be empty")
	}
}
