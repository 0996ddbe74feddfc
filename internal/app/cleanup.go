package app

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"groundwire/internal/cli"
	"groundwire/internal/db"
	"groundwire/internal/globaltime"
)

// defaultRetention keeps three days of articles. Incidents are never aged out;
// they stay until an operator removes them.
const defaultRetention = 72 * time.Hour

func runCleanup(args []string) int {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	olderThan := fs.Duration("older-than", defaultRetention, "Delete articles older than this age")
	dryRun := fs.Bool("dry-run", false, "Preview affected rows without deleting")
	force := fs.Bool("force", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "cleanup does not accept positional arguments")
		return 2
	}
	if *olderThan < time.Hour {
		fmt.Fprintln(os.Stderr, "--older-than must be at least 1h")
		return 2
	}

	cutoff := globaltime.UTC().Add(-*olderThan)

	if !*dryRun && !*force {
		ok, err := confirmDangerousAction(fmt.Sprintf("Delete articles created before %s?", cutoff.Format(time.RFC3339)))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read confirmation: %v\n", err)
			return 1
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Cancelled")
			return 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := newRuntime(ctx, envLoader, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
		return 1
	}
	defer rt.Close()

	articles := db.NewArticleRepo(rt.pool)

	if *dryRun {
		count, err := articles.CountOlderThan(ctx, cutoff)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to preview cleanup: %v\n", err)
			return 1
		}
		fmt.Printf("dry_run=true cutoff=%s articles_affected=%d\n", cutoff.Format(time.RFC3339), count)
		return 0
	}

	deleted, err := articles.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		rt.logger.Error().Err(err).Time("cutoff", cutoff).Msg("cleanup failed")
		fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
		return 1
	}

	rt.logger.Info().
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("article retention cleanup completed")
	fmt.Printf("cutoff=%s articles_deleted=%d\n", cutoff.Format(time.RFC3339), deleted)
	return 0
}

func confirmDangerousAction(prompt string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", strings.TrimSpace(prompt))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
