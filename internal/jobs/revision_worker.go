package jobs

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/cloo-solutions/draftgate/internal/metrics"
	"github.com/cloo-solutions/draftgate/internal/service"
)

const revisionQueue = "revision"

// RevisionJobRepository defines the interface for revision job persistence
type RevisionJobRepository interface {
	GetPendingJobs(ctx context.Context) ([]*domain.RevisionJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, jobID string) error
}

// RevisionJobRunner runs a single revision job
type RevisionJobRunner interface {
	RunJob(ctx context.Context, job *domain.RevisionJob) (*service.RevisionOutcome, error)
}

// RevisionWorker drains the revision job queue
type RevisionWorker struct {
	repo    RevisionJobRepository
	runner  RevisionJobRunner
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRevisionWorker creates a new RevisionWorker instance
func NewRevisionWorker(repo RevisionJobRepository, runner RevisionJobRunner, m *metrics.Metrics, logger *zap.Logger) *RevisionWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevisionWorker{
		repo:    repo,
		runner:  runner,
		metrics: m,
		logger:  logger,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *RevisionWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	w.logger.Info("processing pending revision jobs", zap.Int("count", len(jobs)))

	for _, job := range jobs {
		status, err := w.processJob(ctx, job)
		if err != nil {
			w.logger.Error("error processing job", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		w.metrics.RecordJob(revisionQueue, string(status))
	}

	return nil
}

func (w *RevisionWorker) processJob(ctx context.Context, job *domain.RevisionJob) (domain.JobStatus, error) {
	logger := w.logger.With(
		zap.String("job_id", job.ID),
		zap.String("draft_id", job.DraftID),
		zap.String("run_id", job.RunID),
	)

	outcome, err := w.runner.RunJob(ctx, job)
	if err != nil {
		if isPermanent(err) {
			return failJob(ctx, w.repo, job.ID, err, logger)
		}
		return handleJobFailure(ctx, w.repo, job.ID, job.Retries, err, logger)
	}

	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.JobStatusCompleted, ""); err != nil {
		return "", fmt.Errorf("failed to update job status to completed: %w", err)
	}

	logger.Info("revision job completed",
		zap.Bool("attempted", outcome.Telemetry.Attempted),
		zap.Bool("improved", outcome.Telemetry.Improved),
		zap.Bool("applied", outcome.Telemetry.Applied),
	)
	return domain.JobStatusCompleted, nil
}

// isPermanent reports errors that a retry cannot fix. Deadline overruns are
// left for manual handling since the run may have partially applied.
func isPermanent(err error) bool {
	if errors.Is(err, service.ErrDeadlineExceeded) {
		return true
	}
	switch domain.ErrorCode(err) {
	case domain.ErrCodeNotFound, domain.ErrCodeValidation, domain.ErrCodeInvalidOperation:
		return true
	}
	return false
}
