package db

import (
	"context"
	"fmt"
	"strings"

	"groundwire/internal/model"
)

// SuggestionRepo runs source-suggestion queries against the shared pool.
type SuggestionRepo struct {
	pool *Pool
}

func NewSuggestionRepo(pool *Pool) *SuggestionRepo {
	return &SuggestionRepo{pool: pool}
}

// Save inserts one suggestion.
func (r *SuggestionRepo) Save(ctx context.Context, suggestion model.Suggestion) error {
	if strings.TrimSpace(suggestion.Platform) == "" {
		return fmt.Errorf("platform is required")
	}
	if strings.TrimSpace(suggestion.Handle) == "" {
		return fmt.Errorf("handle is required")
	}

	const q = `
INSERT INTO wire.suggestions (
	suggestion_uuid,
	platform,
	handle,
	note,
	created_at
)
VALUES ($1::uuid, $2, $3, $4, $5)
`
	if _, err := r.pool.Exec(ctx, q,
		suggestion.ID,
		suggestion.Platform,
		suggestion.Handle,
		suggestion.Note,
		suggestion.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert suggestion: %w", err)
	}

	return nil
}

// List returns the newest suggestions for operator review.
func (r *SuggestionRepo) List(ctx context.Context, limit int) ([]model.Suggestion, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	s.suggestion_uuid::text,
	s.platform,
	s.handle,
	s.note,
	s.created_at
FROM wire.suggestions s
ORDER BY s.created_at DESC, s.suggestion_id DESC
LIMIT $1
`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := make([]model.Suggestion, 0, limit)
	for rows.Next() {
		var suggestion model.Suggestion
		if err := rows.Scan(
			&suggestion.ID,
			&suggestion.Platform,
			&suggestion.Handle,
			&suggestion.Note,
			&suggestion.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan suggestion row: %w", err)
		}
		suggestion.CreatedAt = suggestion.CreatedAt.UTC()
		suggestions = append(suggestions, suggestion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestion rows: %w", err)
	}

	return suggestions, nil
}
