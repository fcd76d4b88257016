package jobs

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PGRunLog struct {
	DB *pgxpool.Pool
}

func NewRunLog(db *pgxpool.Pool) *PGRunLog {
	return &PGRunLog{DB: db}
}

func (l *PGRunLog) Start(ctx context.Context, jobType string) (string, error) {
	var runID string
	err := l.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1, 'running')
    RETURNING id::text
  `, jobType).Scan(&runID)
	return runID, err
}

func (l *PGRunLog) Finish(ctx context.Context, runID, status string, details []byte) error {
	_, err := l.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3::uuid
  `, status, details, runID)
	return err
}
