package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"groundwire/internal/db"
	"groundwire/internal/model"
)

type fakeArticleStore struct {
	recent      []model.Article
	recentErr   error
	recentHours []int
	byID        map[string]model.Article
	searchHits  []model.Article
	searchCalls []string
	searchLimit int
}

func (s *fakeArticleStore) GetRecent(_ context.Context, hoursBack int) ([]model.Article, error) {
	s.recentHours = append(s.recentHours, hoursBack)
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	return s.recent, nil
}

func (s *fakeArticleStore) GetByID(_ context.Context, articleUUID string) (*model.Article, error) {
	article, ok := s.byID[articleUUID]
	if !ok {
		return nil, db.ErrNoRows
	}
	copyArticle := article
	return &copyArticle, nil
}

func (s *fakeArticleStore) Search(_ context.Context, query string, limit int) ([]model.Article, error) {
	s.searchCalls = append(s.searchCalls, query)
	s.searchLimit = limit
	return s.searchHits, nil
}

func testArticle(id, title string) model.Article {
	return model.Article{
		ID:          id,
		Title:       title,
		Summary:     "summary of " + title,
		Body:        "body of " + title,
		SourceName:  "webintel",
		SourceURL:   "",
		PublishedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		ContentHash: "hash-" + id,
		CreatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestHandleArticles_ReturnsWindowedItemsClippedToLimit(t *testing.T) {
	t.Parallel()

	store := &fakeArticleStore{recent: []model.Article{
		testArticle("aaaaaaaa-0000-4000-8000-000000000001", "first"),
		testArticle("aaaaaaaa-0000-4000-8000-000000000002", "second"),
		testArticle("aaaaaaaa-0000-4000-8000-000000000003", "third"),
	}}
	server := &Server{logger: zerolog.Nop(), articles: store}

	c, rec := newGETContext("/api/v1/articles?hours=48&limit=2")
	if err := server.handleArticles(c); err != nil {
		t.Fatalf("handleArticles returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
	if len(store.recentHours) != 1 || store.recentHours[0] != 48 {
		t.Fatalf("unexpected window hours passed to store: %#v", store.recentHours)
	}

	var data struct {
		Items       []articleItem `json:"items"`
		WindowHours int           `json:"window_hours"`
		Count       int           `json:"count"`
	}
	decodeData(t, rec, &data)
	if data.Count != 2 || len(data.Items) != 2 {
		t.Fatalf("expected 2 items after limit clip, got count %d len %d", data.Count, len(data.Items))
	}
	if data.WindowHours != 48 {
		t.Fatalf("unexpected window hours: %d", data.WindowHours)
	}
	if data.Items[0].BodyText != "" {
		t.Fatalf("list view must not include body text, got %q", data.Items[0].BodyText)
	}
}

func TestHandleArticles_RejectsInvalidHours(t *testing.T) {
	t.Parallel()

	server := &Server{logger: zerolog.Nop(), articles: &fakeArticleStore{}}

	c, rec := newGETContext("/api/v1/articles?hours=0")
	if err := server.handleArticles(c); err != nil {
		t.Fatalf("handleArticles returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleArticleDetail_IncludesBodyText(t *testing.T) {
	t.Parallel()

	articleID := "aaaaaaaa-0000-4000-8000-000000000009"
	store := &fakeArticleStore{byID: map[string]model.Article{
		articleID: testArticle(articleID, "detail target"),
	}}
	server := &Server{logger: zerolog.Nop(), articles: store}

	c, rec := newGETContext("/api/v1/articles/" + articleID)
	c.SetParamNames("article_id")
	c.SetParamValues(articleID)

	if err := server.handleArticleDetail(c); err != nil {
		t.Fatalf("handleArticleDetail returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}

	var item articleItem
	decodeData(t, rec, &item)
	if item.ArticleID != articleID {
		t.Fatalf("unexpected article id: %q", item.ArticleID)
	}
	if item.BodyText != "body of detail target" {
		t.Fatalf("expected body text in detail view, got %q", item.BodyText)
	}
	if item.ContentHash != "hash-"+articleID {
		t.Fatalf("unexpected content hash: %q", item.ContentHash)
	}
}

func TestHandleArticleDetail_NotFound(t *testing.T) {
	t.Parallel()

	server := &Server{logger: zerolog.Nop(), articles: &fakeArticleStore{byID: map[string]model.Article{}}}

	missing := "aaaaaaaa-0000-4000-8000-0000000000ff"
	c, rec := newGETContext("/api/v1/articles/" + missing)
	c.SetParamNames("article_id")
	c.SetParamValues(missing)

	if err := server.handleArticleDetail(c); err != nil {
		t.Fatalf("handleArticleDetail returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleArticleDetail_RejectsMalformedID(t *testing.T) {
	t.Parallel()

	server := &Server{logger: zerolog.Nop(), articles: &fakeArticleStore{}}

	c, rec := newGETContext("/api/v1/articles/not-a-uuid")
	c.SetParamNames("article_id")
	c.SetParamValues("not-a-uuid")

	if err := server.handleArticleDetail(c); err != nil {
		t.Fatalf("handleArticleDetail returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleSearch_RequiresQuery(t *testing.T) {
	t.Parallel()

	server := &Server{logger: zerolog.Nop(), articles: &fakeArticleStore{}}

	c, rec := newGETContext("/api/v1/search?q=%20")
	if err := server.handleSearch(c); err != nil {
		t.Fatalf("handleSearch returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleSearch_PassesQueryAndLimit(t *testing.T) {
	t.Parallel()

	store := &fakeArticleStore{searchHits: []model.Article{
		testArticle("aaaaaaaa-0000-4000-8000-000000000021", "curfew extended downtown"),
	}}
	server := &Server{logger: zerolog.Nop(), articles: store}

	c, rec := newGETContext("/api/v1/search?q=curfew&limit=5")
	if err := server.handleSearch(c); err != nil {
		t.Fatalf("handleSearch returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
	if len(store.searchCalls) != 1 || store.searchCalls[0] != "curfew" {
		t.Fatalf("unexpected search calls: %#v", store.searchCalls)
	}
	if store.searchLimit != 5 {
		t.Fatalf("unexpected search limit: %d", store.searchLimit)
	}

	var data struct {
		Items []articleItem `json:"items"`
		Count int           `json:"count"`
	}
	decodeData(t, rec, &data)
	if data.Count != 1 {
		t.Fatalf("unexpected count: %d", data.Count)
	}
}
