package dedup

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"groundwire/internal/globaltime"
	"groundwire/internal/model"
)

const (
	// DefaultThreshold is the signature similarity at or above which a new
	// item counts as a near-duplicate of a recent one.
	DefaultThreshold = 0.8

	hashWorkers = 8
)

// Options tunes the deduplicator. Zero values select the defaults; both knobs
// are configuration, not invariants.
type Options struct {
	Threshold float64
	Bands     int

	// DetectLanguage, when set, tags each survivor with a language code.
	// Left nil in tests and in deployments that skip language tagging.
	DetectLanguage func(text string) string
}

// Deduplicator classifies incoming items against a window of recently stored
// articles as novel, exact-duplicate, or near-duplicate, keeping only the
// novel ones.
type Deduplicator struct {
	threshold      float64
	bands          int
	detectLanguage func(string) string
	logger         zerolog.Logger
}

func NewDeduplicator(opts Options, logger zerolog.Logger) *Deduplicator {
	threshold := opts.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	bands := opts.Bands
	if bands <= 0 {
		bands = DefaultBandCount
	}

	return &Deduplicator{
		threshold:      threshold,
		bands:          bands,
		detectLanguage: opts.DetectLanguage,
		logger:         logger,
	}
}

// Process filters newItems against the recent window and returns the
// survivors as fully built articles. It never mutates recent, and it does not
// compare the new batch against itself: two near-identical brand-new items in
// one batch both survive. Cross-batch duplicates are the target; intra-batch
// collisions are left to the next cycle's window.
func (d *Deduplicator) Process(newItems []model.RawItem, recent []model.Article) []model.Article {
	if len(newItems) == 0 {
		return nil
	}

	fingerprints := d.fingerprintAll(newItems)

	recentHashes := make(map[string]struct{}, len(recent))
	index := NewIndex(d.bands)
	for _, article := range recent {
		if article.ContentHash != "" {
			recentHashes[article.ContentHash] = struct{}{}
		}
		if !article.HasValidSignature() {
			if len(article.Signature) > 0 {
				d.logger.Warn().
					Str("article_id", article.ID).
					Int("signature_length", len(article.Signature)).
					Msg("skipping corrupt signature in recent window")
			}
			continue
		}
		index.Add(article.ID, article.Signature)
	}

	now := globaltime.UTC()
	survivors := make([]model.Article, 0, len(newItems))
	for i, item := range newItems {
		fp := fingerprints[i]

		if _, seen := recentHashes[fp.hash]; seen {
			d.logger.Debug().
				Str("source", item.SourceName).
				Str("title", item.Title).
				Msg("dropping exact duplicate")
			continue
		}

		itemID := uuid.NewString()
		if matches := index.FindSimilar(itemID, fp.signature, d.threshold); len(matches) > 0 {
			d.logger.Debug().
				Str("source", item.SourceName).
				Str("title", item.Title).
				Str("matched_id", matches[0].ID).
				Float64("similarity", matches[0].Similarity).
				Msg("dropping near duplicate")
			continue
		}

		survivor := model.Article{
			ID:          itemID,
			Title:       item.Title,
			Summary:     item.Summary,
			Body:        item.Body,
			SourceName:  item.SourceName,
			SourceURL:   item.SourceURL,
			PublishedAt: item.PublishedAt,
			TopicTags:   item.TopicTags,
			ContentHash: fp.hash,
			Signature:   fp.signature,
			CreatedAt:   now,
		}
		if d.detectLanguage != nil {
			survivor.Language = d.detectLanguage(fp.text)
		}
		survivors = append(survivors, survivor)
	}
	return survivors
}

// Threshold returns the configured near-duplicate cutoff.
func (d *Deduplicator) Threshold() float64 {
	return d.threshold
}

type fingerprint struct {
	text      string
	hash      string
	signature []uint32
}

// fingerprintAll computes content hash and signature for every item. Each
// computation is pure and independent, so the batch fans out across a bounded
// set of workers.
func (d *Deduplicator) fingerprintAll(items []model.RawItem) []fingerprint {
	results := make([]fingerprint, len(items))

	var wg sync.WaitGroup
	sem := make(chan struct{}, hashWorkers)
	for i := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			text := contentText(items[i])
			results[i] = fingerprint{
				text:      text,
				hash:      ContentHash(text),
				signature: SignatureFor(text),
			}
		}(i)
	}
	wg.Wait()

	return results
}

// contentText joins the textual fields an item carries. Sources differ in
// which fields they populate; joining keeps the fingerprint meaningful for
// title-only items without letting an empty body collapse everything to one
// hash.
func contentText(item model.RawItem) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{item.Title, item.Summary, item.Body} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n")
}
