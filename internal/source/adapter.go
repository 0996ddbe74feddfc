// Package source holds the upstream news adapters. Each adapter turns one
// external API into raw items for the refresh pipeline; the pipeline treats
// them uniformly and isolates their failures from each other.
package source

import (
	"context"
	"strings"
	"time"

	"groundwire/internal/model"
)

// Adapter is one upstream source. Fetch runs the adapter's configured
// queries; a non-empty query narrows the fetch to that single term. A
// (nil, nil) return means the source simply had nothing new. Errors are
// transport or decode level; bad individual items are logged and skipped
// inside the adapter.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, query string) ([]model.RawItem, error)
}

// headlineFromText derives a title from free-form message text: the first
// non-empty line, truncated on a rune boundary.
func headlineFromText(text string, maxRunes int) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		runes := []rune(trimmed)
		if len(runes) > maxRunes {
			return string(runes[:maxRunes])
		}
		return trimmed
	}
	return ""
}

func parseTimestamp(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
