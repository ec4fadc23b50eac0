// Package weather maps real-world conditions from OpenWeatherMap onto the
// simulation's 0..1 weather factor (0 storm, 1 clear).
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultEndpoint = "https://api.openweathermap.org/data/2.5/weather"

// Client fetches current conditions from OpenWeatherMap. Answers are
// cached; failures back off exponentially and serve the stale answer.
type Client struct {
	apiKey   string
	location string
	endpoint string
	http     *http.Client
	ttl      time.Duration

	mu      sync.Mutex
	last    *Conditions
	lastAt  time.Time
	retryAt time.Time
	delay   time.Duration
}

const (
	minRetry = time.Minute
	maxRetry = 10 * time.Minute
)

// NewClient returns nil when apiKey is empty, meaning no feed.
func NewClient(apiKey, location string) *Client {
	if apiKey == "" {
		return nil
	}
	if location == "" {
		location = "Hannover,DE"
	}
	return &Client{
		apiKey:   apiKey,
		location: location,
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
		ttl:      5 * time.Minute,
	}
}

// Conditions is the parsed subset of an OpenWeatherMap reply.
type Conditions struct {
	Temp        float64 `json:"temp"` // Celsius
	Description string  `json:"description"`
	WindSpeed   float64 `json:"wind_speed"` // m/s
	Clouds      float64 `json:"clouds"`     // percent cover
	IsStorm     bool    `json:"is_storm"`
	IsSnow      bool    `json:"is_snow"`
	IsRain      bool    `json:"is_rain"`
	IsDrizzle   bool    `json:"is_drizzle"`
	IsFog       bool    `json:"is_fog"`
}

// Fetch returns current conditions.
func (c *Client) Fetch(ctx context.Context) (*Conditions, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.last != nil && now.Sub(c.lastAt) < c.ttl {
		return c.last, nil
	}
	if now.Before(c.retryAt) {
		return c.stale(fmt.Errorf("weather API backing off for %s", c.retryAt.Sub(now).Round(time.Second)))
	}

	cond, err := c.fetchFromAPI(ctx)
	if err != nil {
		c.delay = min(max(2*c.delay, minRetry), maxRetry)
		c.retryAt = now.Add(c.delay)
		return c.stale(err)
	}
	c.last, c.lastAt = cond, now
	c.delay, c.retryAt = 0, time.Time{}
	return cond, nil
}

// stale serves the last good answer in place of err, if there is one.
func (c *Client) stale(err error) (*Conditions, error) {
	if c.last != nil {
		return c.last, nil
	}
	return nil, err
}

func (c *Client) fetchFromAPI(ctx context.Context) (*Conditions, error) {
	apiURL := fmt.Sprintf("%s?q=%s&appid=%s&units=metric",
		c.endpoint, url.QueryEscape(c.location), c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather API call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read weather response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API error %d: %s", resp.StatusCode, string(body))
	}
	return parse(body)
}

func parse(body []byte) (*Conditions, error) {
	var owm struct {
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Clouds struct {
			All float64 `json:"all"`
		} `json:"clouds"`
	}
	if err := json.Unmarshal(body, &owm); err != nil {
		return nil, fmt.Errorf("parse weather: %w", err)
	}

	c := &Conditions{
		Temp:      owm.Main.Temp,
		WindSpeed: owm.Wind.Speed,
		Clouds:    owm.Clouds.All,
	}
	if len(owm.Weather) > 0 {
		c.Description = owm.Weather[0].Description
		switch strings.ToLower(owm.Weather[0].Main) {
		case "thunderstorm", "tornado", "squall":
			c.IsStorm = true
		case "rain":
			c.IsRain = true
		case "drizzle":
			c.IsDrizzle = true
		case "snow":
			c.IsSnow = true
		case "mist", "fog", "haze":
			c.IsFog = true
		}
	}
	if c.WindSpeed > 15 {
		c.IsStorm = true
	}
	slog.Debug("weather fetched", "temp", c.Temp, "desc", c.Description)
	return c, nil
}

// Factor converts conditions to the weather factor. Storms sit below the
// severe threshold, rain below the light-rain threshold.
func Factor(c *Conditions) float64 {
	if c == nil {
		return 1
	}
	var f float64
	switch {
	case c.IsStorm:
		f = 0.05
	case c.IsSnow:
		f = 0.25
	case c.IsRain:
		f = 0.5
	case c.IsDrizzle:
		f = 0.65
	case c.IsFog:
		f = 0.8
	default:
		f = 1 - 0.15*clamp(c.Clouds/100, 0, 1)
	}
	// Strong wind takes a little more off anything short of a storm.
	if !c.IsStorm && c.WindSpeed > 10 {
		f -= 0.1
	}
	return clamp(f, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Sink receives the weather factor.
type Sink interface {
	SetWeather(f float64)
}

// Feed polls a Client and pushes the factor into a Sink.
type Feed struct {
	Client   *Client
	Sink     Sink
	Interval time.Duration
}

// Run polls until ctx is done. Failed fetches leave the last factor in place.
func (f *Feed) Run(ctx context.Context) {
	interval := f.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	f.poll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.poll(ctx)
		}
	}
}

func (f *Feed) poll(ctx context.Context) {
	c, err := f.Client.Fetch(ctx)
	if err != nil {
		slog.Warn("weather fetch failed", "error", err)
		return
	}
	factor := Factor(c)
	f.Sink.SetWeather(factor)
	slog.Info("weather updated", "desc", c.Description, "temp", c.Temp, "factor", factor)
}
