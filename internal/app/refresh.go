package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"groundwire/internal/cli"
	"groundwire/internal/ingest"
)

func runRefresh(args []string) int {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	query := fs.String("query", "", "Narrow every source to this search term")
	windowHours := fs.Int("window-hours", 0, "Recent-article dedup window in hours (0 uses RECENT_WINDOW_HOURS)")
	minConfidence := fs.Int("min-confidence", ingest.DefaultMinConfidence, "Minimum extraction confidence kept")
	sourcesFile := fs.String("sources", "", "Path to the sources YAML file (overrides SOURCES_FILE)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "refresh does not accept positional arguments")
		return 2
	}
	if *windowHours < 0 {
		fmt.Fprintln(os.Stderr, "--window-hours must be >= 0")
		return 2
	}
	if *minConfidence < 0 || *minConfidence > 100 {
		fmt.Fprintln(os.Stderr, "--min-confidence must be between 0 and 100")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := newRuntime(ctx, envLoader, *sourcesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Refresh setup failed: %v\n", err)
		return 1
	}
	defer rt.Close()

	hours := *windowHours
	if hours <= 0 {
		hours = rt.cfg.RecentWindowHours
	}

	orch := rt.orchestrator(ingest.Options{
		RecentWindowHours: hours,
		FetchTimeout:      rt.cfg.SourceTimeout(),
		MinConfidence:     *minConfidence,
		SearchQuery:       strings.TrimSpace(*query),
	})

	result, err := orch.Refresh(ctx)
	if err != nil {
		rt.logger.Error().Err(err).Msg("refresh failed")
		fmt.Fprintf(os.Stderr, "Refresh failed: %v\n", err)
		return 1
	}

	rt.logger.Info().
		Int("articles_added", result.ArticlesAdded).
		Int("articles_total", result.ArticlesTotal).
		Int("incidents_extracted", result.IncidentsExtracted).
		Int("window_hours", hours).
		Msg("refresh completed")
	fmt.Printf(
		"refresh articles_added=%d articles_total=%d incidents_extracted=%d window_hours=%d\n",
		result.ArticlesAdded,
		result.ArticlesTotal,
		result.IncidentsExtracted,
		hours,
	)
	return 0
}
