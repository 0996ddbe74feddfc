package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"groundwire/internal/cli"
	"groundwire/internal/config"
	"groundwire/internal/db"
	"groundwire/internal/dedup"
	"groundwire/internal/extract"
	"groundwire/internal/geocode"
	"groundwire/internal/ingest"
	"groundwire/internal/langdetect"
	"groundwire/internal/logging"
	"groundwire/internal/notify"
	"groundwire/internal/source"
)

// runtime is the composition root built once per command invocation. Every
// collaborator a command needs hangs off this struct; nothing is initialized
// lazily behind package state.
type runtime struct {
	cfg      *config.Config
	fileCfg  *config.FileConfig
	logger   zerolog.Logger
	pool     *db.Pool
	geocoder *geocode.Client

	// redisClient is set only when the limiters run on redis.
	redisClient *redis.Client
}

// newRuntime loads the env file, config, logger, optional sources file, and
// database pool. sourcesPath overrides SOURCES_FILE when non-empty.
func newRuntime(ctx context.Context, envLoader *cli.EnvLoader, sourcesPath string) (*runtime, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	var fileCfg *config.FileConfig
	path := strings.TrimSpace(sourcesPath)
	if path == "" {
		path = strings.TrimSpace(cfg.SourcesFile)
	}
	if path != "" {
		fileCfg, err = config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		logger.Info().
			Str("path", path).
			Int("sources", len(fileCfg.Sources)).
			Int("limit_overrides", len(fileCfg.Limits)).
			Msg("loaded sources file")
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &runtime{
		cfg:     cfg,
		fileCfg: fileCfg,
		logger:  logger,
		pool:    pool,
		geocoder: geocode.NewClient(geocode.Options{
			Endpoint:  cfg.GeocodeEndpoint,
			UserAgent: cfg.GeocodeUserAgent,
		}, logger),
	}, nil
}

func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	if rt.redisClient != nil {
		_ = rt.redisClient.Close()
	}
	if rt.pool != nil {
		_ = rt.pool.Close()
	}
}

// adapters builds the source adapters whose credentials are present in the
// environment, filtered and tuned by the sources file. A source with missing
// credentials is skipped with a warning, never an error: deployments often run
// a subset.
func (rt *runtime) adapters() []source.Adapter {
	var adapters []source.Adapter

	if rt.fileCfg.SourceEnabled("webintel") {
		if adapter, err := source.NewWebIntelFromEnv(rt.logger); err != nil {
			rt.logger.Warn().Err(err).Msg("webintel source skipped")
		} else {
			if src, ok := rt.fileCfg.Source("webintel"); ok && len(src.Queries) > 0 {
				adapter.SetQueries(src.Queries)
			}
			adapters = append(adapters, adapter)
		}
	}

	if rt.fileCfg.SourceEnabled("relay") {
		if adapter, err := source.NewRelayFromEnv(rt.logger); err != nil {
			rt.logger.Warn().Err(err).Msg("relay source skipped")
		} else {
			if src, ok := rt.fileCfg.Source("relay"); ok && len(src.Channels) > 0 {
				adapter.SetChannels(src.Channels)
			}
			adapters = append(adapters, adapter)
		}
	}

	if rt.fileCfg.SourceEnabled("scout") {
		if adapter, err := source.NewScoutFromEnv(rt.logger); err != nil {
			rt.logger.Warn().Err(err).Msg("scout source skipped")
		} else {
			if src, ok := rt.fileCfg.Source("scout"); ok && len(src.Queries) > 0 {
				adapter.SetQueries(src.Queries)
			}
			adapters = append(adapters, adapter)
		}
	}

	return adapters
}

// orchestrator assembles a refresh orchestrator over the registered adapters
// and the database repositories.
func (rt *runtime) orchestrator(opts ingest.Options) *ingest.Orchestrator {
	var notifier notify.Notifier = notify.Noop{}
	if strings.TrimSpace(rt.cfg.NotifyWebhookURL) != "" {
		notifier = notify.NewWebhook(rt.cfg.NotifyWebhookURL)
	}

	deduper := dedup.NewDeduplicator(dedup.Options{
		Threshold:      rt.cfg.DedupThreshold,
		DetectLanguage: langdetect.DetectISO6391,
	}, rt.logger)

	return ingest.NewOrchestrator(ingest.Deps{
		Adapters:  rt.adapters(),
		Articles:  db.NewArticleRepo(rt.pool),
		Incidents: db.NewIncidentRepo(rt.pool),
		Runs:      db.NewRunRepo(rt.pool),
		Extractor: extract.NewKeyword(),
		Geocoder:  rt.geocoder,
		Notifier:  notifier,
		Dedup:     deduper,
	}, opts, rt.logger)
}
