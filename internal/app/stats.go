package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"groundwire/internal/cli"
	"groundwire/internal/db"
	"groundwire/internal/dedup"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

// statsReport is the JSON shape of the stats command: service counters plus
// the bucket health of a dedup index rebuilt over the current window.
type statsReport struct {
	Service     *db.ServiceStats `json:"service"`
	DedupIndex  dedup.IndexStats `json:"dedup_index"`
	WindowHours int              `json:"window_hours"`
}

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := newRuntime(ctx, envLoader, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		return 1
	}
	defer rt.Close()

	stats, err := rt.pool.QueryServiceStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query service stats: %v\n", err)
		return 1
	}

	windowHours := rt.cfg.RecentWindowHours
	indexStats, err := currentWindowIndexStats(ctx, rt.pool, windowHours)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to inspect dedup index: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		report := statsReport{
			Service:     stats,
			DedupIndex:  indexStats,
			WindowHours: windowHours,
		}
		if err := printJSON(report); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	overviewRows := [][]string{
		{"articles_total", fmt.Sprintf("%d", stats.ArticlesTotal)},
		{"articles_last_24h", fmt.Sprintf("%d", stats.ArticlesLast24h)},
		{"incidents_total", fmt.Sprintf("%d", stats.IncidentsTotal)},
		{"incidents_verified", fmt.Sprintf("%d", stats.IncidentsVerified)},
		{"suggestions_total", fmt.Sprintf("%d", stats.SuggestionsTotal)},
	}
	if err := writeTable([]string{"metric", "value"}, overviewRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render overview table: %v\n", err)
		return 1
	}

	if len(stats.Sources) > 0 {
		fmt.Println()
		sourceRows := make([][]string, 0, len(stats.Sources))
		for _, row := range stats.Sources {
			sourceRows = append(sourceRows, []string{row.Source, fmt.Sprintf("%d", row.Articles)})
		}
		if err := writeTable([]string{"source", "articles"}, sourceRows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render source table: %v\n", err)
			return 1
		}
	}

	if len(stats.IncidentTypes) > 0 {
		fmt.Println()
		typeRows := make([][]string, 0, len(stats.IncidentTypes))
		for _, row := range stats.IncidentTypes {
			typeRows = append(typeRows, []string{row.Type, fmt.Sprintf("%d", row.Incidents)})
		}
		if err := writeTable([]string{"type", "incidents"}, typeRows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render incident type table: %v\n", err)
			return 1
		}
	}

	fmt.Println()
	indexRows := [][]string{
		{"window_hours", fmt.Sprintf("%d", windowHours)},
		{"indexed_articles", fmt.Sprintf("%d", indexStats.Items)},
		{"buckets", fmt.Sprintf("%d", indexStats.Buckets)},
		{"avg_bucket_size", fmt.Sprintf("%.2f", indexStats.AvgBucketSize)},
		{"max_bucket_size", fmt.Sprintf("%d", indexStats.MaxBucketSize)},
	}
	if err := writeTable([]string{"dedup_index", "value"}, indexRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render dedup index table: %v\n", err)
		return 1
	}

	if stats.LastRefresh != nil {
		fmt.Println()
		fmt.Printf(
			"last_refresh status=%s started_at=%s articles_added=%d incidents_extracted=%d sources_failed=%d\n",
			stats.LastRefresh.Status,
			formatUTCTimestamp(stats.LastRefresh.StartedAt),
			stats.LastRefresh.ArticlesAdded,
			stats.LastRefresh.IncidentsExtracted,
			stats.LastRefresh.SourcesFailed,
		)
	}

	return 0
}

// currentWindowIndexStats rebuilds the LSH index over the recent window the
// way a refresh cycle would and reports its bucket shape. Articles with
// corrupt signatures are excluded, same as during dedup.
func currentWindowIndexStats(ctx context.Context, pool *db.Pool, hoursBack int) (dedup.IndexStats, error) {
	articles, err := db.NewArticleRepo(pool).GetRecent(ctx, hoursBack)
	if err != nil {
		return dedup.IndexStats{}, err
	}

	index := dedup.NewIndex(0)
	for _, article := range articles {
		if article.HasValidSignature() {
			index.Add(article.ID, article.Signature)
		}
	}
	return index.Stats(), nil
}

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

func formatUTCTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeTable(headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return writer.Flush()
}
