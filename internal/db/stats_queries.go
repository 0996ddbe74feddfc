package db

import (
	"context"
	"fmt"
)

// SourceCount stores per-source article counts.
type SourceCount struct {
	Source   string `json:"source"`
	Articles int64  `json:"articles"`
}

// TypeCount stores per-type incident counts.
type TypeCount struct {
	Type      string `json:"type"`
	Incidents int64  `json:"incidents"`
}

// ServiceStats is the read model returned by the stats endpoint and command.
type ServiceStats struct {
	ArticlesTotal     int64              `json:"articles_total"`
	ArticlesLast24h   int64              `json:"articles_last_24h"`
	Sources           []SourceCount      `json:"sources"`
	IncidentsTotal    int64              `json:"incidents_total"`
	IncidentsVerified int64              `json:"incidents_verified"`
	IncidentTypes     []TypeCount        `json:"incident_types"`
	SuggestionsTotal  int64              `json:"suggestions_total"`
	LastRefresh       *RefreshRunSummary `json:"last_refresh,omitempty"`
}

// QueryServiceStats returns totals, per-source and per-type breakdowns, and the
// most recent refresh run.
func (p *Pool) QueryServiceStats(ctx context.Context) (*ServiceStats, error) {
	stats := &ServiceStats{
		Sources:       make([]SourceCount, 0, 8),
		IncidentTypes: make([]TypeCount, 0, 8),
	}

	const totalsQuery = `
SELECT
	(SELECT COUNT(*) FROM wire.articles) AS articles_total,
	(SELECT COUNT(*) FROM wire.articles a WHERE a.created_at >= now() - INTERVAL '24 hours') AS articles_last_24h,
	(SELECT COUNT(*) FROM wire.incidents) AS incidents_total,
	(SELECT COUNT(*) FROM wire.incidents i WHERE i.verified) AS incidents_verified,
	(SELECT COUNT(*) FROM wire.suggestions) AS suggestions_total
`
	if err := p.QueryRow(ctx, totalsQuery).Scan(
		&stats.ArticlesTotal,
		&stats.ArticlesLast24h,
		&stats.IncidentsTotal,
		&stats.IncidentsVerified,
		&stats.SuggestionsTotal,
	); err != nil {
		return nil, fmt.Errorf("query stats totals: %w", err)
	}

	const sourcesQuery = `
SELECT
	a.source_name,
	COUNT(*)::BIGINT AS articles
FROM wire.articles a
GROUP BY a.source_name
ORDER BY 2 DESC, 1
`
	sourceRows, err := p.Query(ctx, sourcesQuery)
	if err != nil {
		return nil, fmt.Errorf("query stats sources: %w", err)
	}
	defer sourceRows.Close()

	for sourceRows.Next() {
		var row SourceCount
		if err := sourceRows.Scan(&row.Source, &row.Articles); err != nil {
			return nil, fmt.Errorf("scan stats source row: %w", err)
		}
		stats.Sources = append(stats.Sources, row)
	}
	if err := sourceRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats source rows: %w", err)
	}

	const typesQuery = `
SELECT
	i.incident_type,
	COUNT(*)::BIGINT AS incidents
FROM wire.incidents i
GROUP BY i.incident_type
ORDER BY 2 DESC, 1
`
	typeRows, err := p.Query(ctx, typesQuery)
	if err != nil {
		return nil, fmt.Errorf("query stats incident types: %w", err)
	}
	defer typeRows.Close()

	for typeRows.Next() {
		var row TypeCount
		if err := typeRows.Scan(&row.Type, &row.Incidents); err != nil {
			return nil, fmt.Errorf("scan stats incident type row: %w", err)
		}
		stats.IncidentTypes = append(stats.IncidentTypes, row)
	}
	if err := typeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats incident type rows: %w", err)
	}

	lastRun, err := NewRunRepo(p).Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("query stats last refresh: %w", err)
	}
	stats.LastRefresh = lastRun

	return stats, nil
}
