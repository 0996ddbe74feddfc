package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestRelayFetch_ReadsConfiguredChannels(t *testing.T) {
	t.Parallel()

	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if got := r.Header.Get("X-Bot-Token"); got != "bot-token" {
			t.Errorf("token header = %q, want bot-token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[
			{"id":101,"text":"Protest forming at Azadi Square\nCrowds growing since noon.","posted_at":"2026-03-14T14:05:00Z","link":"https://relay.example/m/101"},
			{"id":102,"text":"   "}
		]}`))
	}))
	defer srv.Close()

	adapter := NewRelay(srv.URL, "bot-token", []string{"@city_reports", "@field_witness"}, zerolog.Nop())
	items, err := adapter.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(paths) != 2 {
		t.Fatalf("made %d requests, want one per channel", len(paths))
	}
	if paths[0] != "/channels/@city_reports/messages" {
		t.Fatalf("first path = %q", paths[0])
	}

	// One message per channel survives; the blank one is skipped.
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	item := items[0]
	if item.Title != "Protest forming at Azadi Square" {
		t.Fatalf("title = %q, want the first message line", item.Title)
	}
	if item.SourceName != "relay:@city_reports" {
		t.Fatalf("source name = %q", item.SourceName)
	}
	if item.SourceURL != "https://relay.example/m/101" {
		t.Fatalf("source url = %q", item.SourceURL)
	}
	if item.PublishedAt.IsZero() {
		t.Fatal("expected a parsed posted_at")
	}
}

func TestRelayFetch_ChannelErrorSurfaces(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "channel is private", http.StatusForbidden)
	}))
	defer srv.Close()

	adapter := NewRelay(srv.URL, "bot-token", []string{"@blocked"}, zerolog.Nop())
	if _, err := adapter.Fetch(context.Background(), ""); err == nil {
		t.Fatal("expected an error for a 403 response")
	}
}

func TestRelayFetch_ExplicitChannelOverride(t *testing.T) {
	t.Parallel()

	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`{"messages":[]}`))
	}))
	defer srv.Close()

	adapter := NewRelay(srv.URL, "bot-token", []string{"@a", "@b"}, zerolog.Nop())
	if _, err := adapter.Fetch(context.Background(), "@only_this"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(paths) != 1 || paths[0] != "/channels/@only_this/messages" {
		t.Fatalf("paths = %v, want only the explicit channel", paths)
	}
}
