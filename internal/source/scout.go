package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"groundwire/internal/model"
)

const (
	scoutItemLimit    = 50
	scoutDefaultQuery = "protest OR arrests OR strike"
)

// Scout pulls posts from a social scraping API's dataset-items endpoint.
type Scout struct {
	endpoint string
	token    string
	queries  []string
	client   *http.Client
	logger   zerolog.Logger
}

// NewScoutFromEnv builds the adapter from env vars.
//   - SCOUT_API_URL (required)
//   - SCOUT_API_TOKEN (required)
//   - SCOUT_QUERIES (comma-separated, optional)
func NewScoutFromEnv(logger zerolog.Logger) (*Scout, error) {
	endpoint := strings.TrimSpace(os.Getenv("SCOUT_API_URL"))
	if endpoint == "" {
		return nil, fmt.Errorf("SCOUT_API_URL is not set")
	}
	token := strings.TrimSpace(os.Getenv("SCOUT_API_TOKEN"))
	if token == "" {
		return nil, fmt.Errorf("SCOUT_API_TOKEN is not set")
	}
	return NewScout(endpoint, token, splitCSV(os.Getenv("SCOUT_QUERIES")), logger), nil
}

func NewScout(endpoint, token string, queries []string, logger zerolog.Logger) *Scout {
	if len(queries) == 0 {
		queries = []string{scoutDefaultQuery}
	}
	return &Scout{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		token:    token,
		queries:  queries,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
		logger: logger,
	}
}

func (s *Scout) Name() string {
	return "scout"
}

// SetQueries replaces the configured query list. Called before the adapter
// is registered, never concurrently with Fetch.
func (s *Scout) SetQueries(queries []string) {
	if len(queries) > 0 {
		s.queries = queries
	}
}

func (s *Scout) Fetch(ctx context.Context, query string) ([]model.RawItem, error) {
	queries := s.queries
	if strings.TrimSpace(query) != "" {
		queries = []string{strings.TrimSpace(query)}
	}

	var items []model.RawItem
	for _, q := range queries {
		fetched, err := s.datasetItems(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("scout query %q: %w", q, err)
		}
		items = append(items, fetched...)
	}
	return items, nil
}

type scoutItem struct {
	Title    string `json:"title"`
	Text     string `json:"text"`
	URL      string `json:"url"`
	PostedAt string `json:"posted_at"`
}

func (s *Scout) datasetItems(ctx context.Context, query string) ([]model.RawItem, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", fmt.Sprintf("%d", scoutItemLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/dataset-items?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build dataset request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send dataset request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read dataset response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("dataset endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed []scoutItem
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode dataset response: %w", err)
	}

	items := make([]model.RawItem, 0, len(parsed))
	for _, post := range parsed {
		title := strings.TrimSpace(post.Title)
		if title == "" {
			title = headlineFromText(post.Text, 120)
		}
		if title == "" {
			s.logger.Debug().Str("url", post.URL).Msg("skipping scout post without text")
			continue
		}
		items = append(items, model.RawItem{
			Title:       title,
			Body:        strings.TrimSpace(post.Text),
			SourceName:  "scout",
			SourceURL:   post.URL,
			PublishedAt: parseTimestamp(post.PostedAt),
		})
	}
	return items, nil
}
