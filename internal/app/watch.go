package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"groundwire/internal/cli"
	"groundwire/internal/ingest"
)

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	interval := fs.Duration("interval", 0, "Time between refresh cycles (0 uses REFRESH_INTERVAL_MINUTES)")
	cycleTimeout := fs.Duration("cycle-timeout", 5*time.Minute, "Per-cycle timeout")
	query := fs.String("query", "", "Narrow every source to this search term")
	sourcesFile := fs.String("sources", "", "Path to the sources YAML file (overrides SOURCES_FILE)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "watch does not accept positional arguments")
		return 2
	}
	if *interval < 0 {
		fmt.Fprintln(os.Stderr, "--interval must be >= 0")
		return 2
	}
	if *cycleTimeout <= 0 {
		fmt.Fprintln(os.Stderr, "--cycle-timeout must be > 0")
		return 2
	}

	setupCtx, setupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	rt, err := newRuntime(setupCtx, envLoader, *sourcesFile)
	setupCancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Watch setup failed: %v\n", err)
		return 1
	}
	defer rt.Close()

	refreshInterval := *interval
	if refreshInterval <= 0 {
		refreshInterval = rt.cfg.RefreshInterval()
	}

	orch := rt.orchestrator(ingest.Options{
		RecentWindowHours: rt.cfg.RecentWindowHours,
		FetchTimeout:      rt.cfg.SourceTimeout(),
		SearchQuery:       strings.TrimSpace(*query),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	rt.logger.Info().
		Dur("interval", refreshInterval).
		Msg("watch loop started")

	// Cycles run sequentially on this goroutine; a cycle that overruns the
	// interval simply delays the next tick instead of overlapping it.
	cycles := 0
	runCycle := func() {
		cycles++
		cctx, ccancel := context.WithTimeout(ctx, *cycleTimeout)
		defer ccancel()

		result, err := orch.Refresh(cctx)
		if err != nil {
			rt.logger.Error().Err(err).Int("cycle", cycles).Msg("refresh cycle failed")
			fmt.Fprintf(os.Stderr, "Refresh cycle %d failed: %v\n", cycles, err)
			return
		}
		fmt.Printf(
			"cycle=%d articles_added=%d articles_total=%d incidents_extracted=%d\n",
			cycles,
			result.ArticlesAdded,
			result.ArticlesTotal,
			result.IncidentsExtracted,
		)
	}

	runCycle()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rt.logger.Info().Int("cycles", cycles).Msg("watch loop stopped")
			return 0
		case <-ticker.C:
			runCycle()
		}
	}
}
