package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MemoryEmbeddingJobRepository struct {
	db dbtx
}

func NewMemoryEmbeddingJobRepository(pool *pgxpool.Pool) *MemoryEmbeddingJobRepository {
	return &MemoryEmbeddingJobRepository{db: pool}
}

func NewMemoryEmbeddingJobRepositoryWithTx(tx pgx.Tx) *MemoryEmbeddingJobRepository {
	return &MemoryEmbeddingJobRepository{db: tx}
}

func (r *MemoryEmbeddingJobRepository) Create(ctx context.Context, job *domain.MemoryEmbeddingJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO memory_embedding_jobs (id, memory_entry_id, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.MemoryEntryID, job.Status, job.Retries, nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *MemoryEmbeddingJobRepository) GetByID(ctx context.Context, id string) (*domain.MemoryEmbeddingJob, error) {
	job, err := scanEmbeddingJob(r.db.QueryRow(ctx,
		`SELECT id, memory_entry_id, status, retries, error, created_at, processed_at
		 FROM memory_embedding_jobs WHERE id = $1`,
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

// ClaimPending moves up to limit pending jobs to processing and returns them.
// Concurrent workers never claim the same row.
func (r *MemoryEmbeddingJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.MemoryEmbeddingJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM memory_embedding_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE memory_embedding_jobs
		 SET status = $3,
		     processed_at = NULL
		 FROM cte
		 WHERE memory_embedding_jobs.id = cte.id
		 RETURNING memory_embedding_jobs.id, memory_embedding_jobs.memory_entry_id, memory_embedding_jobs.status,
		           memory_embedding_jobs.retries, memory_embedding_jobs.error, memory_embedding_jobs.created_at,
		           memory_embedding_jobs.processed_at`,
		domain.JobStatusPending, limit, domain.JobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.MemoryEmbeddingJob
	for rows.Next() {
		job, err := scanEmbeddingJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *MemoryEmbeddingJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.MemoryEmbeddingJob, error) {
	return r.ClaimPending(ctx, 100)
}

func (r *MemoryEmbeddingJobRepository) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string) error {
	return updateJobStatus(ctx, r.db, "memory_embedding_jobs", id, status, errMsg)
}

func (r *MemoryEmbeddingJobRepository) IncrementRetries(ctx context.Context, id string) error {
	return incrementJobRetries(ctx, r.db, "memory_embedding_jobs", id)
}

func scanEmbeddingJob(row pgx.Row) (*domain.MemoryEmbeddingJob, error) {
	var job domain.MemoryEmbeddingJob
	var errMsg pgtype.Text
	if err := row.Scan(&job.ID, &job.MemoryEntryID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}

// updateJobStatus sets processed_at once a job reaches a terminal status.
// table is always a package constant.
func updateJobStatus(ctx context.Context, db dbtx, table, id string, status domain.JobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.JobStatusCompleted || status == domain.JobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := db.Exec(ctx,
		`UPDATE `+table+` SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func incrementJobRetries(ctx context.Context, db dbtx, table, id string) error {
	cmdTag, err := db.Exec(ctx,
		`UPDATE `+table+` SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}
