package extract

import (
	"strings"
	"testing"
	"time"

	"groundwire/internal/model"
)

func testArticle(title, summary, body string) model.Article {
	return model.Article{
		ID:          "article-1",
		Title:       title,
		Summary:     summary,
		Body:        body,
		PublishedAt: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC),
		CreatedAt:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestExtract_MostSevereTypeWins(t *testing.T) {
	t.Parallel()

	article := testArticle(
		"Two killed as protest turns violent",
		"Witnesses say security forces opened fire during the demonstration.",
		"",
	)

	candidates := NewKeyword().Extract(article)
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
	if candidates[0].Type != model.IncidentDeath {
		t.Fatalf("type = %q, want death", candidates[0].Type)
	}
	if candidates[0].SourceArticleID != "article-1" {
		t.Fatalf("source article = %q, want article-1", candidates[0].SourceArticleID)
	}
}

func TestExtract_LocationCaptureBoostsConfidence(t *testing.T) {
	t.Parallel()

	article := testArticle(
		"Dozens of casualties reported near Azadi Square",
		"Several people were killed, according to local sources.",
		"",
	)

	candidates := NewKeyword().Extract(article)
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
	got := candidates[0]
	if got.LocationText != "Azadi Square" {
		t.Fatalf("location = %q, want %q", got.LocationText, "Azadi Square")
	}
	// Two death keywords plus the location boost.
	if got.Confidence != 55 {
		t.Fatalf("confidence = %d, want 55", got.Confidence)
	}
	if len(got.Keywords) != 2 {
		t.Fatalf("keywords = %v, want two matches", got.Keywords)
	}
}

func TestExtract_NoKeywordsNoCandidate(t *testing.T) {
	t.Parallel()

	article := testArticle(
		"Heavy snowfall expected across the north",
		"Forecasters warn of road closures through the weekend.",
		"",
	)
	if candidates := NewKeyword().Extract(article); candidates != nil {
		t.Fatalf("got %+v, want no candidates", candidates)
	}
}

func TestExtract_EmptyTitleSkipsArticle(t *testing.T) {
	t.Parallel()

	article := testArticle("   ", "Protesters detained downtown.", "")
	if candidates := NewKeyword().Extract(article); candidates != nil {
		t.Fatalf("got %+v, want no candidates", candidates)
	}
}

func TestExtract_DescriptionFallsBackToBody(t *testing.T) {
	t.Parallel()

	longBody := strings.Repeat("protesters detained near the square ", 20)
	article := testArticle("Mass arrests at Revolution Street", "", longBody)

	candidates := NewKeyword().Extract(article)
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
	description := candidates[0].Description
	if description == "" {
		t.Fatal("expected a description from the body")
	}
	if n := len([]rune(description)); n > descriptionMaxRune {
		t.Fatalf("description is %d runes, want at most %d", n, descriptionMaxRune)
	}
}

func TestExtract_TimestampPrefersPublishTime(t *testing.T) {
	t.Parallel()

	article := testArticle("Protest reported in Sanandaj", "A rally formed this morning.", "")
	candidates := NewKeyword().Extract(article)
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
	if !candidates[0].Timestamp.Equal(article.PublishedAt) {
		t.Fatalf("timestamp = %v, want publish time %v", candidates[0].Timestamp, article.PublishedAt)
	}

	article.PublishedAt = time.Time{}
	candidates = NewKeyword().Extract(article)
	if !candidates[0].Timestamp.Equal(article.CreatedAt) {
		t.Fatalf("timestamp = %v, want created_at fallback %v", candidates[0].Timestamp, article.CreatedAt)
	}
}

func TestExtractLocation_Patterns(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want string
	}{
		{"In Tehran, crowds gathered after dark", "Tehran"},
		{"clashes at Tehran University Main Gate today", "Tehran University Main Gate"},
		{"protest near azadi square", ""},
		{"arrests at 40 checkpoints near Valiasr Street", "Valiasr Street"},
		{"nothing locative here", ""},
	}
	for _, tc := range cases {
		if got := extractLocation(tc.text); got != tc.want {
			t.Fatalf("extractLocation(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}
