package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"groundwire/internal/cli"
	"groundwire/internal/db"
	"groundwire/internal/httpapi"
	"groundwire/internal/incident"
	"groundwire/internal/ingest"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "", "Host interface to bind (empty uses SERVER_ADDR)")
	port := fs.Int("port", 0, "HTTP port (0 uses SERVER_ADDR)")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	withRefresh := fs.Bool("with-refresh", true, "Run the background refresh loop alongside the API")
	sourcesFile := fs.String("sources", "", "Path to the sources YAML file (overrides SOURCES_FILE)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "serve does not accept positional arguments")
		return 2
	}
	if *port < 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 0 and 65535")
		return 2
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	rt, err := newRuntime(dbCtx, envLoader, *sourcesFile)
	dbCancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Serve setup failed: %v\n", err)
		return 1
	}
	defer rt.Close()

	bindHost, bindPort, err := resolveListenAddr(rt.cfg.ServerAddr, *host, *port)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid listen address: %v\n", err)
		return 2
	}

	limiters, err := rt.limiters()
	if err != nil {
		rt.logger.Error().Err(err).Msg("rate limiter setup failed")
		fmt.Fprintf(os.Stderr, "Failed to build rate limiters: %v\n", err)
		return 1
	}

	orch := rt.orchestrator(ingest.Options{
		RecentWindowHours: rt.cfg.RecentWindowHours,
		FetchTimeout:      rt.cfg.SourceTimeout(),
	})
	incidents := incident.NewService(db.NewIncidentRepo(rt.pool), rt.geocoder, rt.logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	if *withRefresh {
		go backgroundRefresh(ctx, orch, rt.cfg.RefreshInterval(), rt.logger)
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Pool:      rt.pool,
		Incidents: incidents,
		Refresher: orch,
		Limiters:  limiters,
	}, rt.logger, httpapi.Options{
		Host:               bindHost,
		Port:               bindPort,
		ReadTimeout:        *readTimeout,
		WriteTimeout:       *writeTimeout,
		ShutdownTimeout:    *shutdownTimeout,
		CORSAllowedOrigins: rt.cfg.CORSAllowedOriginsList(),
		AdminKeyHash:       rt.cfg.AdminAPIKeyHash,
	})

	if err := srv.Start(ctx); err != nil {
		rt.logger.Error().Err(err).Str("host", bindHost).Int("port", bindPort).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}

// backgroundRefresh runs refresh cycles on a ticker until the context ends.
// The first cycle fires after one full interval so startup stays fast.
func backgroundRefresh(ctx context.Context, orch *ingest.Orchestrator, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	logger.Info().Dur("interval", interval).Msg("background refresh started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("background refresh stopped")
			return
		case <-ticker.C:
			cctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			result, err := orch.Refresh(cctx)
			cancel()
			if err != nil {
				logger.Error().Err(err).Msg("background refresh failed")
				continue
			}
			logger.Info().
				Int("articles_added", result.ArticlesAdded).
				Int("incidents_extracted", result.IncidentsExtracted).
				Msg("background refresh completed")
		}
	}
}

// resolveListenAddr merges the host/port flags with SERVER_ADDR. Flags win
// when set; the config address fills whichever side is missing.
func resolveListenAddr(configAddr, hostFlag string, portFlag int) (string, int, error) {
	host := strings.TrimSpace(hostFlag)
	port := portFlag

	if host == "" || port == 0 {
		cfgHost, cfgPort, err := splitServerAddr(configAddr)
		if err != nil {
			return "", 0, err
		}
		if host == "" {
			host = cfgHost
		}
		if port == 0 {
			port = cfgPort
		}
	}

	if host == "" {
		host = "0.0.0.0"
	}
	if port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("port %d is out of range", port)
	}
	return host, port, nil
}

func splitServerAddr(addr string) (string, int, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return "", 0, fmt.Errorf("SERVER_ADDR is empty")
	}

	host, portRaw, err := net.SplitHostPort(trimmed)
	if err != nil {
		return "", 0, fmt.Errorf("SERVER_ADDR %q: %w", trimmed, err)
	}
	port, err := strconv.Atoi(portRaw)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("SERVER_ADDR %q has an invalid port", trimmed)
	}
	return host, port, nil
}
