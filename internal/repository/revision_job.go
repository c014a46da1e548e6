package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const revisionJobColumns = `id, draft_id, run_id, iteration, payload, status, retries, error, created_at, processed_at`

type RevisionJobRepository struct {
	db dbtx
}

func NewRevisionJobRepository(pool *pgxpool.Pool) *RevisionJobRepository {
	return &RevisionJobRepository{db: pool}
}

func (r *RevisionJobRepository) Create(ctx context.Context, job *domain.RevisionJob) error {
	if err := domain.ValidateRevisionJob(job); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid revision job", err)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO revision_jobs (`+revisionJobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.DraftID, job.RunID, job.Iteration, []byte(job.Payload), job.Status, job.Retries,
		nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *RevisionJobRepository) GetByID(ctx context.Context, id string) (*domain.RevisionJob, error) {
	job, err := scanRevisionJob(r.db.QueryRow(ctx,
		`SELECT `+revisionJobColumns+` FROM revision_jobs WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ClaimPending moves up to limit pending revision jobs to processing
func (r *RevisionJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.RevisionJob, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM revision_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE revision_jobs
		 SET status = $3,
		     processed_at = NULL
		 FROM cte
		 WHERE revision_jobs.id = cte.id
		 RETURNING revision_jobs.id, revision_jobs.draft_id, revision_jobs.run_id, revision_jobs.iteration,
		           revision_jobs.payload, revision_jobs.status, revision_jobs.retries, revision_jobs.error,
		           revision_jobs.created_at, revision_jobs.processed_at`,
		domain.JobStatusPending, limit, domain.JobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.RevisionJob
	for rows.Next() {
		job, err := scanRevisionJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *RevisionJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.RevisionJob, error) {
	return r.ClaimPending(ctx, 20)
}

func (r *RevisionJobRepository) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string) error {
	return updateJobStatus(ctx, r.db, "revision_jobs", id, status, errMsg)
}

func (r *RevisionJobRepository) IncrementRetries(ctx context.Context, id string) error {
	return incrementJobRetries(ctx, r.db, "revision_jobs", id)
}

func scanRevisionJob(row pgx.Row) (*domain.RevisionJob, error) {
	var job domain.RevisionJob
	var payload []byte
	var errMsg pgtype.Text
	if err := row.Scan(&job.ID, &job.DraftID, &job.RunID, &job.Iteration, &payload, &job.Status, &job.Retries,
		&errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
		return nil, err
	}
	job.Payload = payload
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}
