package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"groundwire/internal/model"
)

func sampleArticles(n int) []model.Article {
	articles := make([]model.Article, 0, n)
	for i := 0; i < n; i++ {
		articles = append(articles, model.Article{
			ID:          string(rune('a' + i)),
			Title:       "Article title",
			SourceName:  "relay",
			PublishedAt: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC),
		})
	}
	return articles
}

func TestWebhookNotify_PostsDigest(t *testing.T) {
	t.Parallel()

	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	receipt, err := NewWebhook(srv.URL).Notify(context.Background(), sampleArticles(3))
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if receipt.Sent != 3 {
		t.Fatalf("sent = %d, want 3", receipt.Sent)
	}
	if got.Count != 3 || len(got.Articles) != 3 {
		t.Fatalf("payload count = %d with %d articles, want 3/3", got.Count, len(got.Articles))
	}
	if got.Articles[0].SourceName != "relay" {
		t.Fatalf("source_name = %q, want relay", got.Articles[0].SourceName)
	}
}

func TestWebhookNotify_DigestIsCapped(t *testing.T) {
	t.Parallel()

	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer srv.Close()

	receipt, err := NewWebhook(srv.URL).Notify(context.Background(), sampleArticles(15))
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if receipt.Sent != 15 {
		t.Fatalf("sent = %d, want the full batch count", receipt.Sent)
	}
	if got.Count != 15 {
		t.Fatalf("payload count = %d, want 15", got.Count)
	}
	if len(got.Articles) != digestLimit {
		t.Fatalf("payload carries %d articles, want the %d cap", len(got.Articles), digestLimit)
	}
}

func TestWebhookNotify_EmptyBatchSkipsRequest(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	receipt, err := NewWebhook(srv.URL).Notify(context.Background(), nil)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if receipt.Sent != 0 {
		t.Fatalf("sent = %d, want 0", receipt.Sent)
	}
	if calls.Load() != 0 {
		t.Fatalf("webhook called %d times, want 0", calls.Load())
	}
}

func TestWebhookNotify_UpstreamErrorSurfaces(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewWebhook(srv.URL).Notify(context.Background(), sampleArticles(1)); err == nil {
		t.Fatal("expected an error for a 502 response")
	}
}

func TestNoopNotify(t *testing.T) {
	t.Parallel()

	receipt, err := Noop{}.Notify(context.Background(), sampleArticles(2))
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if receipt.Sent != 0 {
		t.Fatalf("sent = %d, want 0", receipt.Sent)
	}
}
