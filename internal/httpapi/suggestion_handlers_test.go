package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"groundwire/internal/model"
)

type fakeSuggestionStore struct {
	saved      []model.Suggestion
	saveErr    error
	listResult []model.Suggestion
	listLimit  int
}

func (s *fakeSuggestionStore) Save(_ context.Context, suggestion model.Suggestion) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, suggestion)
	return nil
}

func (s *fakeSuggestionStore) List(_ context.Context, limit int) ([]model.Suggestion, error) {
	s.listLimit = limit
	return s.listResult, nil
}

func TestHandleSubmitSuggestion_PersistsTrimmedFields(t *testing.T) {
	t.Parallel()

	store := &fakeSuggestionStore{}
	server := &Server{logger: zerolog.Nop(), suggestions: store}

	body := `{"platform":" telegram ","handle":" @street_reports ","note":" posts hourly "}`
	_, c, rec := newJSONContext(http.MethodPost, "/api/v1/suggestions", body)

	if err := server.handleSubmitSuggestion(c); err != nil {
		t.Fatalf("handleSubmitSuggestion returned error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusCreated)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one saved suggestion, got %d", len(store.saved))
	}

	saved := store.saved[0]
	if saved.Platform != "telegram" {
		t.Fatalf("unexpected platform: %q", saved.Platform)
	}
	if saved.Handle != "@street_reports" {
		t.Fatalf("unexpected handle: %q", saved.Handle)
	}
	if saved.Note != "posts hourly" {
		t.Fatalf("unexpected note: %q", saved.Note)
	}
	if saved.ID == "" {
		t.Fatalf("expected generated suggestion id")
	}
	if saved.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be stamped")
	}

	var item suggestionItem
	decodeData(t, rec, &item)
	if item.SuggestionID != saved.ID {
		t.Fatalf("response id %q does not match stored id %q", item.SuggestionID, saved.ID)
	}
}

func TestHandleSubmitSuggestion_RequiresPlatformAndHandle(t *testing.T) {
	t.Parallel()

	store := &fakeSuggestionStore{}
	server := &Server{logger: zerolog.Nop(), suggestions: store}

	_, c, rec := newJSONContext(http.MethodPost, "/api/v1/suggestions", `{"note":"no identity"}`)

	if err := server.handleSubmitSuggestion(c); err != nil {
		t.Fatalf("handleSubmitSuggestion returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
	if len(store.saved) != 0 {
		t.Fatalf("did not expect saves, got %d", len(store.saved))
	}

	var data struct {
		ValidationErrors map[string]string `json:"validation_errors"`
	}
	decodeData(t, rec, &data)
	if _, ok := data.ValidationErrors["platform"]; !ok {
		t.Fatalf("expected platform validation error, got %#v", data.ValidationErrors)
	}
	if _, ok := data.ValidationErrors["handle"]; !ok {
		t.Fatalf("expected handle validation error, got %#v", data.ValidationErrors)
	}
}

func TestHandleSubmitSuggestion_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	store := &fakeSuggestionStore{}
	server := &Server{logger: zerolog.Nop(), suggestions: store}

	body := `{"platform":"telegram","handle":"@x","priority":"high"}`
	_, c, rec := newJSONContext(http.MethodPost, "/api/v1/suggestions", body)

	if err := server.handleSubmitSuggestion(c); err != nil {
		t.Fatalf("handleSubmitSuggestion returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleListSuggestions_ReturnsStoredItems(t *testing.T) {
	t.Parallel()

	store := &fakeSuggestionStore{listResult: []model.Suggestion{
		{
			ID:        "dddddddd-0000-4000-8000-000000000001",
			Platform:  "telegram",
			Handle:    "@street_reports",
			CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:        "dddddddd-0000-4000-8000-000000000002",
			Platform:  "twitter",
			Handle:    "@city_alerts",
			CreatedAt: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
		},
	}}
	server := &Server{logger: zerolog.Nop(), suggestions: store}

	c, rec := newGETContext("/api/v1/suggestions?limit=10")
	if err := server.handleListSuggestions(c); err != nil {
		t.Fatalf("handleListSuggestions returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
	if store.listLimit != 10 {
		t.Fatalf("unexpected limit passed to store: %d", store.listLimit)
	}

	var data struct {
		Items []suggestionItem `json:"items"`
		Count int              `json:"count"`
	}
	decodeData(t, rec, &data)
	if data.Count != 2 {
		t.Fatalf("unexpected count: %d", data.Count)
	}
	if data.Items[0].Platform != "telegram" {
		t.Fatalf("unexpected first platform: %q", data.Items[0].Platform)
	}
}
