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

const relayMessageLimit = 50

// Relay reads configured channels through a chat-platform bot API. Channel
// messages have no headline, so the first line of each message becomes the
// item title.
type Relay struct {
	botURL   string
	token    string
	channels []string
	client   *http.Client
	logger   zerolog.Logger
}

// NewRelayFromEnv builds the adapter from env vars.
//   - RELAY_BOT_URL (required)
//   - RELAY_BOT_TOKEN (required)
//   - RELAY_CHANNELS (comma-separated channel handles, required)
func NewRelayFromEnv(logger zerolog.Logger) (*Relay, error) {
	botURL := strings.TrimSpace(os.Getenv("RELAY_BOT_URL"))
	if botURL == "" {
		return nil, fmt.Errorf("RELAY_BOT_URL is not set")
	}
	token := strings.TrimSpace(os.Getenv("RELAY_BOT_TOKEN"))
	if token == "" {
		return nil, fmt.Errorf("RELAY_BOT_TOKEN is not set")
	}
	channels := splitCSV(os.Getenv("RELAY_CHANNELS"))
	if len(channels) == 0 {
		return nil, fmt.Errorf("RELAY_CHANNELS is not set")
	}
	return NewRelay(botURL, token, channels, logger), nil
}

func NewRelay(botURL, token string, channels []string, logger zerolog.Logger) *Relay {
	return &Relay{
		botURL:   strings.TrimRight(strings.TrimSpace(botURL), "/"),
		token:    token,
		channels: channels,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
		logger: logger,
	}
}

func (r *Relay) Name() string {
	return "relay"
}

// SetChannels replaces the configured channel list. Called before the
// adapter is registered, never concurrently with Fetch.
func (r *Relay) SetChannels(channels []string) {
	if len(channels) > 0 {
		r.channels = channels
	}
}

func (r *Relay) Fetch(ctx context.Context, query string) ([]model.RawItem, error) {
	channels := r.channels
	if strings.TrimSpace(query) != "" {
		channels = []string{strings.TrimSpace(query)}
	}

	var items []model.RawItem
	for _, channel := range channels {
		fetched, err := r.readChannel(ctx, channel)
		if err != nil {
			return nil, fmt.Errorf("relay channel %q: %w", channel, err)
		}
		items = append(items, fetched...)
	}
	return items, nil
}

type relayMessagesResponse struct {
	Messages []relayMessage `json:"messages"`
}

type relayMessage struct {
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	PostedAt string `json:"posted_at"`
	Link     string `json:"link"`
}

func (r *Relay) readChannel(ctx context.Context, channel string) ([]model.RawItem, error) {
	endpoint := fmt.Sprintf("%s/channels/%s/messages?limit=%d", r.botURL, url.PathEscape(channel), relayMessageLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build messages request: %w", err)
	}
	req.Header.Set("X-Bot-Token", r.token)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send messages request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read messages response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bot endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed relayMessagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode messages response: %w", err)
	}

	items := make([]model.RawItem, 0, len(parsed.Messages))
	for _, message := range parsed.Messages {
		title := headlineFromText(message.Text, 120)
		if title == "" {
			r.logger.Debug().Int64("message_id", message.ID).Str("channel", channel).Msg("skipping empty relay message")
			continue
		}
		items = append(items, model.RawItem{
			Title:       title,
			Body:        strings.TrimSpace(message.Text),
			SourceName:  "relay:" + channel,
			SourceURL:   message.Link,
			PublishedAt: parseTimestamp(message.PostedAt),
		})
	}
	return items, nil
}
