// Package geocode resolves free-text location strings to coordinates through
// a Nominatim-compatible search endpoint. Results are cached by normalized
// location text (misses included) and outbound calls are throttled to respect
// the public service quota.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"groundwire/internal/globaltime"
)

const (
	// DefaultEndpoint is the public Nominatim search API.
	DefaultEndpoint = "https://nominatim.openstreetmap.org/search"
	// DefaultMinInterval keeps the client at or under one request per second.
	DefaultMinInterval = time.Second

	defaultTimeout       = 10 * time.Second
	defaultBodyByteLimit = 1 << 20
	defaultUserAgent     = "groundwire-geocoder/1.0"
)

// Location is a resolved place.
type Location struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Address string  `json:"address,omitempty"`
}

// Resolver turns location text into coordinates. A (nil, nil) return is a
// miss: the place could not be resolved, which callers treat as a filter
// condition rather than an error.
type Resolver interface {
	Resolve(ctx context.Context, locationText string) (*Location, error)
}

// Options controls client behavior. Zero values select the defaults.
type Options struct {
	Endpoint    string
	UserAgent   string
	MinInterval time.Duration
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client is a caching, self-throttling Resolver over an HTTP geocoding API.
type Client struct {
	endpoint  string
	userAgent string
	client    *http.Client
	logger    zerolog.Logger

	mu          sync.Mutex
	cache       map[string]*Location
	lastRequest time.Time
	minInterval time.Duration
}

func NewClient(opts Options, logger zerolog.Logger) *Client {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	minInterval := opts.MinInterval
	if minInterval < 0 {
		minInterval = 0
	} else if minInterval == 0 {
		minInterval = DefaultMinInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpoint:    endpoint,
		userAgent:   userAgent,
		client:      client,
		logger:      logger,
		cache:       make(map[string]*Location),
		minInterval: minInterval,
	}
}

// Resolve looks the location up, serving repeats from cache. Lookup failures
// are returned as errors and not cached; a clean zero-result response is a
// miss and is cached so the same unresolvable text never re-queries.
func (c *Client) Resolve(ctx context.Context, locationText string) (*Location, error) {
	key := normalizeKey(locationText)
	if key == "" {
		return nil, nil
	}

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	location, err := c.lookup(ctx, key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = location
	c.mu.Unlock()

	if location == nil {
		c.logger.Debug().Str("location", key).Msg("geocode miss")
	}
	return location, nil
}

// throttle reserves the next outbound slot so concurrent callers stay spaced
// at least minInterval apart.
func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	now := globaltime.Now()
	next := c.lastRequest.Add(c.minInterval)
	if next.Before(now) {
		next = now
	}
	c.lastRequest = next
	c.mu.Unlock()

	wait := next.Sub(now)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (c *Client) lookup(ctx context.Context, query string) (*Location, error) {
	requestURL := fmt.Sprintf("%s?q=%s&format=json&limit=1", c.endpoint, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send geocode request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, defaultBodyByteLimit))
	if err != nil {
		return nil, fmt.Errorf("read geocode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geocode endpoint status %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(results[0].Lat), 64)
	if err != nil {
		return nil, fmt.Errorf("parse geocode latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(results[0].Lon), 64)
	if err != nil {
		return nil, fmt.Errorf("parse geocode longitude: %w", err)
	}

	return &Location{
		Lat:     lat,
		Lon:     lon,
		Address: strings.TrimSpace(results[0].DisplayName),
	}, nil
}

func normalizeKey(locationText string) string {
	return strings.Join(strings.Fields(strings.ToLower(locationText)), " ")
}
