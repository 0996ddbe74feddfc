package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// runErrorMessageLimit caps stored failure text so a huge joined error does
// not bloat the row.
const runErrorMessageLimit = 2000

// RunCounts carries the counters recorded when a refresh run completes.
type RunCounts struct {
	ArticlesAdded      int
	ArticlesTotal      int
	IncidentsExtracted int
	SourcesFailed      int
}

// RefreshRunSummary is a read model for run listings and stats.
type RefreshRunSummary struct {
	RunUUID            string     `json:"run_uuid"`
	Status             string     `json:"status"`
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
	ArticlesAdded      int        `json:"articles_added"`
	ArticlesTotal      int        `json:"articles_total"`
	IncidentsExtracted int        `json:"incidents_extracted"`
	SourcesFailed      int        `json:"sources_failed"`
	ErrorMessage       *string    `json:"error_message,omitempty"`
}

// RunRepo records refresh run bookkeeping rows.
type RunRepo struct {
	pool *Pool
}

func NewRunRepo(pool *Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Start opens a running row and returns its id for the later Complete or Fail.
func (r *RunRepo) Start(ctx context.Context) (int64, error) {
	const q = `
INSERT INTO wire.refresh_runs (status, started_at)
VALUES ('running', now())
RETURNING run_id
`
	var runID int64
	if err := r.pool.QueryRow(ctx, q).Scan(&runID); err != nil {
		return 0, fmt.Errorf("insert refresh run: %w", err)
	}
	return runID, nil
}

// Complete closes the run as completed with its final counters.
func (r *RunRepo) Complete(ctx context.Context, runID int64, counts RunCounts) error {
	const q = `
UPDATE wire.refresh_runs
SET
	status = 'completed',
	finished_at = now(),
	articles_added = $2,
	articles_total = $3,
	incidents_extracted = $4,
	sources_failed = $5,
	updated_at = now()
WHERE run_id = $1
`
	tag, err := r.pool.Exec(ctx, q, runID,
		counts.ArticlesAdded,
		counts.ArticlesTotal,
		counts.IncidentsExtracted,
		counts.SourcesFailed,
	)
	if err != nil {
		return fmt.Errorf("complete refresh run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

// Fail closes the run as failed and stores a truncated error message.
func (r *RunRepo) Fail(ctx context.Context, runID int64, runErr error) error {
	message := "unknown failure"
	if runErr != nil {
		message = runErr.Error()
	}
	if len(message) > runErrorMessageLimit {
		message = message[:runErrorMessageLimit]
	}

	const q = `
UPDATE wire.refresh_runs
SET
	status = 'failed',
	finished_at = now(),
	error_message = $2,
	updated_at = now()
WHERE run_id = $1
`
	tag, err := r.pool.Exec(ctx, q, runID, message)
	if err != nil {
		return fmt.Errorf("fail refresh run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

const runSummaryColumns = `
	r.refresh_run_uuid::text,
	r.status,
	r.started_at,
	r.finished_at,
	r.articles_added,
	r.articles_total,
	r.incidents_extracted,
	r.sources_failed,
	r.error_message`

// Recent lists the newest runs.
func (r *RunRepo) Recent(ctx context.Context, limit int) ([]RefreshRunSummary, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	q := fmt.Sprintf(`
SELECT%s
FROM wire.refresh_runs r
ORDER BY r.started_at DESC, r.run_id DESC
LIMIT $1
`, runSummaryColumns)

	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query refresh runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RefreshRunSummary, 0, limit)
	for rows.Next() {
		run, err := scanRunSummary(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan refresh run row: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refresh run rows: %w", err)
	}

	return runs, nil
}

// Latest returns the newest run, or nil when none has been recorded yet.
func (r *RunRepo) Latest(ctx context.Context) (*RefreshRunSummary, error) {
	q := fmt.Sprintf(`
SELECT%s
FROM wire.refresh_runs r
ORDER BY r.started_at DESC, r.run_id DESC
LIMIT 1
`, runSummaryColumns)

	run, err := scanRunSummary(r.pool.QueryRow(ctx, q).Scan)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest refresh run: %w", err)
	}
	return run, nil
}

func scanRunSummary(scan func(dest ...any) error) (*RefreshRunSummary, error) {
	var run RefreshRunSummary
	if err := scan(
		&run.RunUUID,
		&run.Status,
		&run.StartedAt,
		&run.FinishedAt,
		&run.ArticlesAdded,
		&run.ArticlesTotal,
		&run.IncidentsExtracted,
		&run.SourcesFailed,
		&run.ErrorMessage,
	); err != nil {
		return nil, err
	}
	run.StartedAt = run.StartedAt.UTC()
	if run.FinishedAt != nil {
		utc := run.FinishedAt.UTC()
		run.FinishedAt = &utc
	}
	return &run, nil
}
