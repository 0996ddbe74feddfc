package dedup

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"groundwire/internal/model"
)

func storedArticle(id, title, body string) model.Article {
	text := contentText(model.RawItem{Title: title, Body: body})
	return model.Article{
		ID:          id,
		Title:       title,
		Body:        body,
		SourceName:  "seed",
		ContentHash: ContentHash(text),
		Signature:   SignatureFor(text),
		CreatedAt:   time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestProcess_DropsExactCopyFromRecentWindow(t *testing.T) {
	t.Parallel()

	recent := []model.Article{storedArticle("a1", "Crowd gathers downtown", "Witnesses reported a large crowd forming near the central square before dusk.")}
	batch := []model.RawItem{{
		Title:      "Crowd Gathers Downtown",
		Body:       "  witnesses reported a LARGE crowd forming near the central square before dusk. ",
		SourceName: "other-source",
	}}

	d := NewDeduplicator(Options{}, zerolog.Nop())
	survivors := d.Process(batch, recent)
	if len(survivors) != 0 {
		t.Fatalf("exact duplicate must be dropped, got %d survivors", len(survivors))
	}
}

func TestProcess_DropsNearDuplicateOfRecent(t *testing.T) {
	t.Parallel()

	recent := []model.Article{storedArticle("a1", "", distinctWords)}
	batch := []model.RawItem{{
		Title:      "",
		Body:       distinctWords + " one",
		SourceName: "other-source",
	}}

	d := NewDeduplicator(Options{}, zerolog.Nop())
	survivors := d.Process(batch, recent)
	if len(survivors) != 0 {
		t.Fatalf("near duplicate must be dropped, got %d survivors", len(survivors))
	}
}

func TestProcess_IntraBatchPairBothSurvive(t *testing.T) {
	t.Parallel()

	batch := []model.RawItem{
		{Title: "", Body: distinctWords, SourceName: "s1"},
		{Title: "", Body: distinctWords + " one", SourceName: "s2"},
	}

	d := NewDeduplicator(Options{}, zerolog.Nop())
	survivors := d.Process(batch, nil)
	if len(survivors) != 2 {
		t.Fatalf("batch items are not deduped against each other, got %d survivors", len(survivors))
	}
}

func TestProcess_KeepsNovelItemAndBuildsArticle(t *testing.T) {
	t.Parallel()

	recent := []model.Article{storedArticle("a1", "Road closures announced", "Authorities announced closures across several districts this morning.")}
	batch := []model.RawItem{{
		Title:       "Internet disruption reported",
		Body:        "Connectivity monitors observed a sharp drop in traffic from the region overnight.",
		SourceName:  "netwatch",
		SourceURL:   "https://example.org/netwatch/1",
		PublishedAt: time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC),
		TopicTags:   []string{"connectivity"},
	}}

	d := NewDeduplicator(Options{}, zerolog.Nop())
	survivors := d.Process(batch, recent)
	if len(survivors) != 1 {
		t.Fatalf("expected one survivor, got %d", len(survivors))
	}

	got := survivors[0]
	if got.ID == "" {
		t.Fatalf("survivor must carry an id")
	}
	if len(got.ContentHash) != 64 {
		t.Fatalf("content hash length = %d, want 64", len(got.ContentHash))
	}
	if !got.HasValidSignature() {
		t.Fatalf("survivor signature length = %d, want %d", len(got.Signature), model.SignatureLength)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("survivor must carry an ingestion timestamp")
	}
	if got.SourceName != "netwatch" || got.SourceURL != "https://example.org/netwatch/1" {
		t.Fatalf("source fields not carried over: %+v", got)
	}
}

func TestProcess_DoesNotMutateRecentWindow(t *testing.T) {
	t.Parallel()

	recent := []model.Article{storedArticle("a1", "Original", "The original recent article body text.")}
	before := recent[0].ContentHash

	d := NewDeduplicator(Options{}, zerolog.Nop())
	_ = d.Process([]model.RawItem{{Title: "Original", Body: "The original recent article body text."}}, recent)

	if len(recent) != 1 || recent[0].ContentHash != before {
		t.Fatalf("recent window must not be mutated")
	}
}

func TestProcess_CorruptRecentSignatureStillMatchesByHash(t *testing.T) {
	t.Parallel()

	corrupt := storedArticle("a1", "Checkpoint removed", "The checkpoint on the northern route was removed early today.")
	corrupt.Signature = corrupt.Signature[:5]

	batch := []model.RawItem{{
		Title: "Checkpoint removed",
		Body:  "The checkpoint on the northern route was removed early today.",
	}}

	d := NewDeduplicator(Options{}, zerolog.Nop())
	survivors := d.Process(batch, []model.Article{corrupt})
	if len(survivors) != 0 {
		t.Fatalf("exact hash must still drop despite a corrupt signature, got %d survivors", len(survivors))
	}
}

func TestProcess_EmptyBatch(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(Options{}, zerolog.Nop())
	if survivors := d.Process(nil, nil); survivors != nil {
		t.Fatalf("expected nil survivors for empty batch, got %v", survivors)
	}
}

func TestProcess_LanguageHook(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(Options{DetectLanguage: func(string) string { return "en" }}, zerolog.Nop())
	survivors := d.Process([]model.RawItem{{Title: "Plain english headline", Body: distinctWords}}, nil)
	if len(survivors) != 1 {
		t.Fatalf("expected one survivor, got %d", len(survivors))
	}
	if survivors[0].Language != "en" {
		t.Fatalf("language tag = %q, want %q", survivors[0].Language, "en")
	}
}
