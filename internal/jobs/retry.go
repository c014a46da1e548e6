package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/draftgate/internal/domain"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3
)

// jobStatusUpdater is shared by every job queue repository
type jobStatusUpdater interface {
	UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, jobID string) error
}

// handleJobFailure puts a failed job back to pending, or marks it failed
// once it has used up its retries.
func handleJobFailure(ctx context.Context, repo jobStatusUpdater, jobID string, retries int32, jobErr error, logger *zap.Logger) (domain.JobStatus, error) {
	logger = logger.With(zap.String("job_id", jobID))
	logger.Warn("job failed", zap.Error(jobErr))

	if err := repo.IncrementRetries(ctx, jobID); err != nil {
		return "", fmt.Errorf("failed to increment retries: %w", err)
	}

	if retries+1 >= MaxRetries {
		logger.Error("job exceeded max retries, marking as failed", zap.Int("max_retries", MaxRetries))
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := repo.UpdateJobStatus(ctx, jobID, domain.JobStatusFailed, errMsg); err != nil {
			return "", fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return domain.JobStatusFailed, nil
	}

	logger.Info("job will be retried", zap.Int32("attempt", retries+1), zap.Int("max_retries", MaxRetries))
	errMsg := fmt.Sprintf("retry %d: %v", retries+1, jobErr)
	if err := repo.UpdateJobStatus(ctx, jobID, domain.JobStatusPending, errMsg); err != nil {
		return "", fmt.Errorf("failed to reset job status to pending: %w", err)
	}
	return domain.JobStatusPending, nil
}

// failJob marks a job failed without retrying it
func failJob(ctx context.Context, repo jobStatusUpdater, jobID string, jobErr error, logger *zap.Logger) (domain.JobStatus, error) {
	logger.Error("job failed permanently", zap.String("job_id", jobID), zap.Error(jobErr))
	if err := repo.UpdateJobStatus(ctx, jobID, domain.JobStatusFailed, jobErr.Error()); err != nil {
		return "", fmt.Errorf("failed to update job status to failed: %w", err)
	}
	return domain.JobStatusFailed, nil
}
