package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestWebIntelFetch_ValidatesAndMapsItems(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotReq webintelSearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{
				"payload_version":"v1",
				"source":"webintel",
				"title":"Protest reported at Azadi Square",
				"summary":"Crowds gathered through the afternoon.",
				"url":"https://example.com/report/8841",
				"published_at":"2026-03-14T14:00:00Z",
				"topics":["protest"]
			},
			{"payload_version":"v1","source":"webintel"}
		]}`))
	}))
	defer srv.Close()

	adapter := NewWebIntel(srv.URL, "secret-key", []string{"protest reports"}, zerolog.Nop())
	items, err := adapter.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if gotAuth != "Bearer secret-key" {
		t.Fatalf("authorization = %q, want bearer key", gotAuth)
	}
	if gotReq.Query != "protest reports" {
		t.Fatalf("query = %q, want the configured query", gotReq.Query)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (the invalid item skipped)", len(items))
	}
	item := items[0]
	if item.Title != "Protest reported at Azadi Square" {
		t.Fatalf("title = %q", item.Title)
	}
	if item.SourceName != "webintel" {
		t.Fatalf("source name = %q, want webintel", item.SourceName)
	}
	if item.SourceURL != "https://example.com/report/8841" {
		t.Fatalf("source url = %q", item.SourceURL)
	}
	if item.PublishedAt.IsZero() {
		t.Fatal("expected a parsed publish time")
	}
	if len(item.TopicTags) != 1 || item.TopicTags[0] != "protest" {
		t.Fatalf("topic tags = %v, want [protest]", item.TopicTags)
	}
}

func TestWebIntelFetch_ExplicitQueryOverridesConfigured(t *testing.T) {
	t.Parallel()

	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req webintelSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		queries = append(queries, req.Query)
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	adapter := NewWebIntel(srv.URL, "secret-key", []string{"one", "two"}, zerolog.Nop())
	items, err := adapter.Fetch(context.Background(), "azadi square")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if items != nil {
		t.Fatalf("got %d items, want none", len(items))
	}
	if len(queries) != 1 || queries[0] != "azadi square" {
		t.Fatalf("queries = %v, want only the explicit one", queries)
	}
}

func TestWebIntelFetch_RunsAllConfiguredQueries(t *testing.T) {
	t.Parallel()

	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req webintelSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		queries = append(queries, req.Query)
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	adapter := NewWebIntel(srv.URL, "secret-key", []string{"one", "two"}, zerolog.Nop())
	if _, err := adapter.Fetch(context.Background(), ""); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("ran %d queries, want 2", len(queries))
	}
}

func TestWebIntelFetch_UpstreamErrorSurfaces(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exhausted", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	adapter := NewWebIntel(srv.URL, "secret-key", nil, zerolog.Nop())
	if _, err := adapter.Fetch(context.Background(), ""); err == nil {
		t.Fatal("expected an error for a 429 response")
	}
}

func TestNewWebIntelFromEnv_RequiresCredentials(t *testing.T) {
	t.Setenv("WEBINTEL_API_URL", "")
	t.Setenv("WEBINTEL_API_KEY", "")

	if _, err := NewWebIntelFromEnv(zerolog.Nop()); err == nil {
		t.Fatal("expected an error without WEBINTEL_API_URL")
	}

	t.Setenv("WEBINTEL_API_URL", "https://intel.example.com")
	if _, err := NewWebIntelFromEnv(zerolog.Nop()); err == nil {
		t.Fatal("expected an error without WEBINTEL_API_KEY")
	}

	t.Setenv("WEBINTEL_API_KEY", "secret")
	t.Setenv("WEBINTEL_QUERIES", "protest reports, detained journalists")
	adapter, err := NewWebIntelFromEnv(zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWebIntelFromEnv: %v", err)
	}
	if len(adapter.queries) != 2 {
		t.Fatalf("queries = %v, want 2 parsed entries", adapter.queries)
	}
}
