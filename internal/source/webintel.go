package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"groundwire/internal/model"
	payloadschema "groundwire/schema"
)

const webintelDefaultQuery = "civil unrest eyewitness reports"

// WebIntel calls an LLM-backed web search API that returns source item
// payloads. Every item is schema-validated before it enters the pipeline;
// invalid items are skipped with a warning.
type WebIntel struct {
	endpoint string
	apiKey   string
	queries  []string
	client   *http.Client
	logger   zerolog.Logger
}

// NewWebIntelFromEnv builds the adapter from env vars.
//   - WEBINTEL_API_URL (required)
//   - WEBINTEL_API_KEY (required)
//   - WEBINTEL_QUERIES (comma-separated, optional)
func NewWebIntelFromEnv(logger zerolog.Logger) (*WebIntel, error) {
	endpoint := strings.TrimSpace(os.Getenv("WEBINTEL_API_URL"))
	if endpoint == "" {
		return nil, fmt.Errorf("WEBINTEL_API_URL is not set")
	}
	apiKey := strings.TrimSpace(os.Getenv("WEBINTEL_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("WEBINTEL_API_KEY is not set")
	}
	return NewWebIntel(endpoint, apiKey, splitCSV(os.Getenv("WEBINTEL_QUERIES")), logger), nil
}

func NewWebIntel(endpoint, apiKey string, queries []string, logger zerolog.Logger) *WebIntel {
	if len(queries) == 0 {
		queries = []string{webintelDefaultQuery}
	}
	return &WebIntel{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		apiKey:   apiKey,
		queries:  queries,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (w *WebIntel) Name() string {
	return "webintel"
}

// SetQueries replaces the configured query list. Called before the adapter
// is registered, never concurrently with Fetch.
func (w *WebIntel) SetQueries(queries []string) {
	if len(queries) > 0 {
		w.queries = queries
	}
}

func (w *WebIntel) Fetch(ctx context.Context, query string) ([]model.RawItem, error) {
	queries := w.queries
	if strings.TrimSpace(query) != "" {
		queries = []string{strings.TrimSpace(query)}
	}

	var items []model.RawItem
	for _, q := range queries {
		fetched, err := w.search(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("webintel query %q: %w", q, err)
		}
		items = append(items, fetched...)
	}
	return items, nil
}

type webintelSearchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type webintelSearchResponse struct {
	Results []json.RawMessage `json:"results"`
}

func (w *WebIntel) search(ctx context.Context, query string) ([]model.RawItem, error) {
	body, err := json.Marshal(webintelSearchRequest{Query: query, MaxResults: 20})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send search request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed webintelSearchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]model.RawItem, 0, len(parsed.Results))
	for i, raw := range parsed.Results {
		payload, err := payloadschema.ValidateSourceItemPayload(raw)
		if err != nil {
			w.logger.Warn().Err(err).Int("index", i).Str("query", query).Msg("skipping invalid webintel item")
			continue
		}
		items = append(items, sourceItemToRaw(payload))
	}
	return items, nil
}

func sourceItemToRaw(item *payloadschema.SourceItem) model.RawItem {
	raw := model.RawItem{
		Title:      strings.TrimSpace(item.Title),
		SourceName: "webintel",
		TopicTags:  item.Topics,
	}
	if item.Summary != nil {
		raw.Summary = strings.TrimSpace(*item.Summary)
	}
	if item.BodyText != nil {
		raw.Body = strings.TrimSpace(*item.BodyText)
	}
	if item.URL != nil {
		raw.SourceURL = strings.TrimSpace(*item.URL)
	}
	if item.PublishedAt != nil {
		raw.PublishedAt = parseTimestamp(*item.PublishedAt)
	}
	return raw
}
