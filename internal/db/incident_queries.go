package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"groundwire/internal/model"
)

const incidentInsertChunkSize = 500

// IncidentRepo runs incident queries against the shared pool.
type IncidentRepo struct {
	pool *Pool
}

func NewIncidentRepo(pool *Pool) *IncidentRepo {
	return &IncidentRepo{pool: pool}
}

const incidentColumns = `
	i.incident_uuid::text,
	i.incident_type,
	i.title,
	i.description,
	i.lat,
	i.lon,
	i.address,
	i.occurred_at,
	i.confidence,
	i.keywords,
	i.source_article_uuid::text,
	i.verified,
	i.reported_by,
	i.upvotes,
	i.created_at`

// Save inserts one incident.
func (r *IncidentRepo) Save(ctx context.Context, incident model.Incident) error {
	keywords, err := json.Marshal(incident.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords for %q: %w", incident.ID, err)
	}

	var sourceArticle *string
	if trimmed := strings.TrimSpace(incident.SourceArticleID); trimmed != "" {
		sourceArticle = &trimmed
	}

	const q = `
INSERT INTO wire.incidents (
	incident_uuid,
	incident_type,
	title,
	description,
	lat,
	lon,
	address,
	occurred_at,
	confidence,
	keywords,
	source_article_uuid,
	verified,
	reported_by,
	upvotes,
	created_at
)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11::uuid, $12, $13, $14, $15)
`
	if _, err := r.pool.Exec(ctx, q,
		incident.ID,
		string(incident.Type),
		incident.Title,
		incident.Description,
		incident.Lat,
		incident.Lon,
		incident.Address,
		incident.Timestamp.UTC(),
		incident.Confidence,
		json.RawMessage(keywords),
		sourceArticle,
		incident.Verified,
		incident.ReportedBy,
		incident.Upvotes,
		incident.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}

	return nil
}

// SaveMany inserts incidents in chunks. One failing chunk does not abort the
// rest.
func (r *IncidentRepo) SaveMany(ctx context.Context, incidents []model.Incident) (SaveOutcome, error) {
	var outcome SaveOutcome
	if len(incidents) == 0 {
		return outcome, nil
	}

	var chunkErrs []error
	for start := 0; start < len(incidents); start += incidentInsertChunkSize {
		end := min(start+incidentInsertChunkSize, len(incidents))
		chunk := incidents[start:end]

		var saved int
		for _, incident := range chunk {
			if err := r.Save(ctx, incident); err != nil {
				chunkErrs = append(chunkErrs, err)
				continue
			}
			saved++
		}
		outcome.Saved += saved
		outcome.Failed += len(chunk) - saved
	}

	return outcome, errors.Join(chunkErrs...)
}

// GetAll returns every stored incident, newest occurrence first.
func (r *IncidentRepo) GetAll(ctx context.Context) ([]model.Incident, error) {
	q := fmt.Sprintf(`
SELECT%s
FROM wire.incidents i
ORDER BY i.occurred_at DESC, i.incident_id DESC
`, incidentColumns)

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query all incidents: %w", err)
	}
	defer rows.Close()

	return scanIncidentRows(rows)
}

// GetRecent returns incidents that occurred inside the trailing window, newest
// first.
func (r *IncidentRepo) GetRecent(ctx context.Context, hoursBack int) ([]model.Incident, error) {
	if hoursBack <= 0 {
		return nil, fmt.Errorf("hoursBack must be > 0")
	}

	q := fmt.Sprintf(`
SELECT%s
FROM wire.incidents i
WHERE i.occurred_at >= now() - ($1 * INTERVAL '1 hour')
ORDER BY i.occurred_at DESC, i.incident_id DESC
`, incidentColumns)

	rows, err := r.pool.Query(ctx, q, hoursBack)
	if err != nil {
		return nil, fmt.Errorf("query recent incidents: %w", err)
	}
	defer rows.Close()

	return scanIncidentRows(rows)
}

// Upvote increments the counter and returns the new total.
func (r *IncidentRepo) Upvote(ctx context.Context, incidentUUID string) (int, error) {
	trimmed := strings.TrimSpace(incidentUUID)
	if trimmed == "" {
		return 0, fmt.Errorf("incident UUID is required")
	}

	const q = `
UPDATE wire.incidents
SET upvotes = upvotes + 1
WHERE incident_uuid = $1::uuid
RETURNING upvotes
`
	var upvotes int
	if err := r.pool.QueryRow(ctx, q, trimmed).Scan(&upvotes); err != nil {
		if errors.Is(err, ErrNoRows) {
			return 0, ErrNoRows
		}
		return 0, fmt.Errorf("upvote incident: %w", err)
	}
	return upvotes, nil
}

// SetVerified flips the moderator verification flag.
func (r *IncidentRepo) SetVerified(ctx context.Context, incidentUUID string, verified bool) error {
	trimmed := strings.TrimSpace(incidentUUID)
	if trimmed == "" {
		return fmt.Errorf("incident UUID is required")
	}

	const q = `
UPDATE wire.incidents
SET verified = $2
WHERE incident_uuid = $1::uuid
`
	tag, err := r.pool.Exec(ctx, q, trimmed, verified)
	if err != nil {
		return fmt.Errorf("set incident verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func scanIncidentRows(rows *Rows) ([]model.Incident, error) {
	incidents := make([]model.Incident, 0, 64)
	for rows.Next() {
		var (
			incident      model.Incident
			incidentType  string
			keywordsRaw   []byte
			sourceArticle *string
		)
		if err := rows.Scan(
			&incident.ID,
			&incidentType,
			&incident.Title,
			&incident.Description,
			&incident.Lat,
			&incident.Lon,
			&incident.Address,
			&incident.Timestamp,
			&incident.Confidence,
			&keywordsRaw,
			&sourceArticle,
			&incident.Verified,
			&incident.ReportedBy,
			&incident.Upvotes,
			&incident.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan incident row: %w", err)
		}

		incident.Type = model.IncidentType(incidentType)
		if len(keywordsRaw) > 0 {
			if err := json.Unmarshal(keywordsRaw, &incident.Keywords); err != nil {
				return nil, fmt.Errorf("decode keywords for %q: %w", incident.ID, err)
			}
		}
		if sourceArticle != nil {
			incident.SourceArticleID = *sourceArticle
		}
		incident.Timestamp = incident.Timestamp.UTC()
		incident.CreatedAt = incident.CreatedAt.UTC()

		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incident rows: %w", err)
	}
	return incidents, nil
}
