package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/cloo-solutions/draftgate/internal/metrics"
)

const embeddingQueue = "memory_embedding"

// EmbeddingJobRepository defines the interface for memory embedding job persistence
type EmbeddingJobRepository interface {
	// GetPendingJobs retrieves and claims pending embedding jobs
	GetPendingJobs(ctx context.Context) ([]*domain.MemoryEmbeddingJob, error)

	// UpdateJobStatus updates the status of an embedding job
	UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error
}

// MemoryStore loads memory entries and stores their embeddings
type MemoryStore interface {
	GetByID(ctx context.Context, id string) (*domain.MemoryEntry, error)
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
}

// Embedder generates embeddings
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingWorker embeds approved memory entries so the optimization
// selector can find them.
type EmbeddingWorker struct {
	repo     EmbeddingJobRepository
	memory   MemoryStore
	embedder Embedder
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewEmbeddingWorker creates a new EmbeddingWorker instance
func NewEmbeddingWorker(repo EmbeddingJobRepository, memory MemoryStore, embedder Embedder, m *metrics.Metrics, logger *zap.Logger) *EmbeddingWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingWorker{
		repo:     repo,
		memory:   memory,
		embedder: embedder,
		metrics:  m,
		logger:   logger,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *EmbeddingWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	w.logger.Info("processing pending embedding jobs", zap.Int("count", len(jobs)))

	for _, job := range jobs {
		status, err := w.processJob(ctx, job)
		if err != nil {
			w.logger.Error("error processing job", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		w.metrics.RecordJob(embeddingQueue, string(status))
	}

	return nil
}

func (w *EmbeddingWorker) processJob(ctx context.Context, job *domain.MemoryEmbeddingJob) (domain.JobStatus, error) {
	entry, err := w.memory.GetByID(ctx, job.MemoryEntryID)
	if err != nil {
		if domain.IsNotFound(err) {
			return failJob(ctx, w.repo, job.ID, err, w.logger)
		}
		return handleJobFailure(ctx, w.repo, job.ID, job.Retries, err, w.logger)
	}

	// pending entries are embedded once a reviewer approves them
	if entry.Status == domain.MemoryStatusApproved {
		embedding, err := w.embedder.GenerateEmbedding(ctx, entry.Category+": "+entry.Content)
		if err != nil {
			return handleJobFailure(ctx, w.repo, job.ID, job.Retries, err, w.logger)
		}
		if err := w.memory.UpdateEmbedding(ctx, entry.ID, embedding); err != nil {
			return handleJobFailure(ctx, w.repo, job.ID, job.Retries, err, w.logger)
		}
	}

	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.JobStatusCompleted, ""); err != nil {
		return "", fmt.Errorf("failed to update job status to completed: %w", err)
	}

	w.logger.Debug("embedding job completed", zap.String("job_id", job.ID), zap.String("memory_id", entry.ID))
	return domain.JobStatusCompleted, nil
}
