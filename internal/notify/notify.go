// Package notify announces freshly stored articles to an external channel.
// Delivery is best effort; the refresh pipeline fires it in a goroutine and
// only logs failures.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"groundwire/internal/model"
)

// digestLimit caps how many articles one webhook payload carries.
const digestLimit = 10

// Receipt reports how many articles a notification covered.
type Receipt struct {
	Sent int `json:"sent"`
}

// Notifier delivers a digest of newly stored articles.
type Notifier interface {
	Notify(ctx context.Context, articles []model.Article) (Receipt, error)
}

// Noop is the notifier used when no webhook is configured.
type Noop struct{}

func (Noop) Notify(context.Context, []model.Article) (Receipt, error) {
	return Receipt{}, nil
}

// Webhook posts a JSON digest of new articles to a configured URL.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type webhookPayload struct {
	Count    int              `json:"count"`
	Articles []webhookArticle `json:"articles"`
}

type webhookArticle struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	SourceName  string    `json:"source_name"`
	SourceURL   string    `json:"source_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

func (w *Webhook) Notify(ctx context.Context, articles []model.Article) (Receipt, error) {
	if w == nil || w.url == "" {
		return Receipt{}, fmt.Errorf("webhook url is not configured")
	}
	if len(articles) == 0 {
		return Receipt{}, nil
	}

	payload := webhookPayload{Count: len(articles)}
	for _, article := range articles {
		if len(payload.Articles) == digestLimit {
			break
		}
		payload.Articles = append(payload.Articles, webhookArticle{
			ID:          article.ID,
			Title:       article.Title,
			SourceName:  article.SourceName,
			SourceURL:   article.SourceURL,
			PublishedAt: article.PublishedAt,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal notification payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Receipt{}, fmt.Errorf("notification endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return Receipt{Sent: len(articles)}, nil
}
