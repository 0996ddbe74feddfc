package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"groundwire/internal/db"
	"groundwire/internal/dedup"
	"groundwire/internal/extract"
	"groundwire/internal/geocode"
	"groundwire/internal/globaltime"
	"groundwire/internal/model"
	"groundwire/internal/notify"
	"groundwire/internal/source"
)

// DefaultMinConfidence is the extraction confidence floor applied when
// Options.MinConfidence is zero.
const DefaultMinConfidence = 40

const (
	defaultRecentWindowHours = 24
	defaultFetchTimeout      = 15 * time.Second
	notifyTimeout            = 30 * time.Second
)

// ArticleStore is the slice of the article repository a refresh cycle needs.
type ArticleStore interface {
	GetRecent(ctx context.Context, hoursBack int) ([]model.Article, error)
	SaveMany(ctx context.Context, articles []model.Article) (db.SaveOutcome, error)
}

// IncidentStore persists extracted incidents.
type IncidentStore interface {
	SaveMany(ctx context.Context, incidents []model.Incident) (db.SaveOutcome, error)
}

// RunStore records refresh run bookkeeping. Recording problems are logged and
// never fail a refresh.
type RunStore interface {
	Start(ctx context.Context) (int64, error)
	Complete(ctx context.Context, runID int64, counts db.RunCounts) error
	Fail(ctx context.Context, runID int64, runErr error) error
}

// Options tunes a refresh cycle.
type Options struct {
	RecentWindowHours int
	FetchTimeout      time.Duration
	MinConfidence     int
	// SearchQuery narrows every adapter to one term. Empty runs each
	// adapter's configured queries.
	SearchQuery string
}

func (o Options) withDefaults() Options {
	if o.RecentWindowHours <= 0 {
		o.RecentWindowHours = defaultRecentWindowHours
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = defaultFetchTimeout
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = DefaultMinConfidence
	}
	return o
}

// Result summarizes one refresh cycle. ArticlesTotal counts the recent window
// plus what this cycle added.
type Result struct {
	ArticlesAdded      int       `json:"articles_added"`
	ArticlesTotal      int       `json:"articles_total"`
	IncidentsExtracted int       `json:"incidents_extracted"`
	Timestamp          time.Time `json:"timestamp"`
}

// Deps carries the orchestrator's collaborators. Runs and Notifier may be nil;
// bookkeeping and notification are then skipped.
type Deps struct {
	Adapters  []source.Adapter
	Articles  ArticleStore
	Incidents IncidentStore
	Runs      RunStore
	Extractor extract.Extractor
	Geocoder  geocode.Resolver
	Notifier  notify.Notifier
	Dedup     *dedup.Deduplicator
}

// Orchestrator runs the fetch, dedup, persist, extract cycle. It does not
// serialize concurrent Refresh calls; callers own their cadence.
type Orchestrator struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger
}

func NewOrchestrator(deps Deps, opts Options, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		deps:   deps,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// Refresh fans fetches out to every adapter, dedups the flattened batch
// against the recent window, persists survivors, then triggers notification
// and incident extraction. A failing source degrades to zero items and never
// aborts the cycle.
func (o *Orchestrator) Refresh(ctx context.Context) (Result, error) {
	result := Result{Timestamp: globaltime.UTC()}
	started := globaltime.Now()

	runID := o.startRun(ctx)

	items, sourcesFailed := o.fetchAll(ctx)
	if len(items) == 0 {
		o.completeRun(ctx, runID, result, sourcesFailed)
		o.logger.Info().
			Int("sources", len(o.deps.Adapters)).
			Int("sources_failed", sourcesFailed).
			Msg("refresh found nothing new")
		return result, nil
	}

	recent, err := o.deps.Articles.GetRecent(ctx, o.opts.RecentWindowHours)
	if err != nil {
		err = fmt.Errorf("load recent articles: %w", err)
		o.failRun(ctx, runID, err)
		return result, err
	}

	fresh := o.deps.Dedup.Process(items, recent)
	result.ArticlesTotal = len(recent)

	if len(fresh) > 0 {
		outcome, saveErr := o.deps.Articles.SaveMany(ctx, fresh)
		if saveErr != nil {
			o.logger.Warn().Err(saveErr).
				Int("saved", outcome.Saved).
				Int("failed", outcome.Failed).
				Msg("article batch partially failed")
		}
		result.ArticlesAdded = outcome.Saved
		result.ArticlesTotal += outcome.Saved

		if outcome.Saved > 0 {
			o.notifyAsync(fresh)
			result.IncidentsExtracted = o.extractIncidents(ctx, fresh)
		}
	}

	o.completeRun(ctx, runID, result, sourcesFailed)

	o.logger.Info().
		Int("fetched", len(items)).
		Int("sources_failed", sourcesFailed).
		Int("articles_added", result.ArticlesAdded).
		Int("incidents_extracted", result.IncidentsExtracted).
		Dur("elapsed", globaltime.Since(started)).
		Msg("refresh completed")

	return result, nil
}

type fetchOutcome struct {
	name  string
	items []model.RawItem
	err   error
}

// fetchAll settles every adapter under its own timeout and returns the
// flattened successes plus the failure count.
func (o *Orchestrator) fetchAll(ctx context.Context) ([]model.RawItem, int) {
	outcomes := make([]fetchOutcome, len(o.deps.Adapters))

	var wg sync.WaitGroup
	for i := range o.deps.Adapters {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			adapter := o.deps.Adapters[i]
			fetchCtx, cancel := context.WithTimeout(ctx, o.opts.FetchTimeout)
			defer cancel()

			items, err := adapter.Fetch(fetchCtx, o.opts.SearchQuery)
			outcomes[i] = fetchOutcome{name: adapter.Name(), items: items, err: err}
		}(i)
	}
	wg.Wait()

	var (
		items  []model.RawItem
		failed int
	)
	for _, outcome := range outcomes {
		if outcome.err != nil {
			failed++
			o.logger.Warn().Err(outcome.err).
				Str("source", outcome.name).
				Msg("source fetch failed")
			continue
		}
		items = append(items, outcome.items...)
		o.logger.Debug().
			Str("source", outcome.name).
			Int("items", len(outcome.items)).
			Msg("source fetch completed")
	}

	return items, failed
}

// notifyAsync fires the digest in a detached goroutine. The refresh result
// never waits on or reflects delivery.
func (o *Orchestrator) notifyAsync(articles []model.Article) {
	if o.deps.Notifier == nil {
		return
	}

	batch := make([]model.Article, len(articles))
	copy(batch, articles)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		receipt, err := o.deps.Notifier.Notify(ctx, batch)
		if err != nil {
			o.logger.Warn().Err(err).Msg("notification delivery failed")
			return
		}
		o.logger.Info().Int("sent", receipt.Sent).Msg("notification delivered")
	}()
}

// extractIncidents runs the extractor over the saved batch, geocodes each
// candidate, and persists survivors as official reports. Extracted incidents
// skip the interactive-submission duplicate check; article-level dedup already
// collapsed their sources.
func (o *Orchestrator) extractIncidents(ctx context.Context, articles []model.Article) int {
	if o.deps.Extractor == nil || o.deps.Incidents == nil {
		return 0
	}

	incidents := make([]model.Incident, 0, len(articles))
	for _, article := range articles {
		for _, candidate := range o.deps.Extractor.Extract(article) {
			if candidate.Confidence < o.opts.MinConfidence {
				o.logger.Debug().
					Str("article_id", article.ID).
					Int("confidence", candidate.Confidence).
					Msg("candidate below confidence floor")
				continue
			}

			location := o.resolveCandidateLocation(ctx, candidate)
			if location == nil {
				o.logger.Debug().
					Str("article_id", article.ID).
					Str("location_text", candidate.LocationText).
					Msg("candidate location unresolved")
				continue
			}

			incidents = append(incidents, model.Incident{
				ID:              uuid.NewString(),
				Type:            candidate.Type,
				Title:           candidate.Title,
				Description:     candidate.Description,
				Lat:             location.Lat,
				Lon:             location.Lon,
				Address:         location.Address,
				Timestamp:       candidate.Timestamp,
				Confidence:      candidate.Confidence,
				Keywords:        candidate.Keywords,
				SourceArticleID: candidate.SourceArticleID,
				ReportedBy:      model.ReportedByOfficial,
				CreatedAt:       globaltime.UTC(),
			})
		}
	}

	if len(incidents) == 0 {
		return 0
	}

	outcome, err := o.deps.Incidents.SaveMany(ctx, incidents)
	if err != nil {
		o.logger.Warn().Err(err).
			Int("saved", outcome.Saved).
			Int("failed", outcome.Failed).
			Msg("incident batch partially failed")
	}
	return outcome.Saved
}

func (o *Orchestrator) resolveCandidateLocation(ctx context.Context, candidate model.IncidentCandidate) *geocode.Location {
	if o.deps.Geocoder == nil {
		return nil
	}
	if strings.TrimSpace(candidate.LocationText) == "" {
		return nil
	}

	location, err := o.deps.Geocoder.Resolve(ctx, candidate.LocationText)
	if err != nil {
		o.logger.Warn().Err(err).
			Str("location_text", candidate.LocationText).
			Msg("geocode lookup failed")
		return nil
	}
	return location
}

func (o *Orchestrator) startRun(ctx context.Context) int64 {
	if o.deps.Runs == nil {
		return 0
	}
	runID, err := o.deps.Runs.Start(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("refresh run bookkeeping unavailable")
		return 0
	}
	return runID
}

func (o *Orchestrator) completeRun(ctx context.Context, runID int64, result Result, sourcesFailed int) {
	if o.deps.Runs == nil || runID == 0 {
		return
	}
	counts := db.RunCounts{
		ArticlesAdded:      result.ArticlesAdded,
		ArticlesTotal:      result.ArticlesTotal,
		IncidentsExtracted: result.IncidentsExtracted,
		SourcesFailed:      sourcesFailed,
	}
	if err := o.deps.Runs.Complete(ctx, runID, counts); err != nil {
		o.logger.Warn().Err(err).Int64("run_id", runID).Msg("mark refresh run completed failed")
	}
}

func (o *Orchestrator) failRun(ctx context.Context, runID int64, runErr error) {
	if o.deps.Runs == nil || runID == 0 {
		return
	}
	if err := o.deps.Runs.Fail(ctx, runID, runErr); err != nil {
		o.logger.Warn().Err(err).Int64("run_id", runID).Msg("mark refresh run failed failed")
	}
}
