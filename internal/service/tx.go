package service

import (
	"context"

	"github.com/cloo-solutions/draftgate/internal/domain"
)

// MemoryWriterInterface persists new memory entries
type MemoryWriterInterface interface {
	Create(ctx context.Context, entry *domain.MemoryEntry) error
}

// MemoryEmbeddingJobRepositoryInterface enqueues memory embedding jobs
type MemoryEmbeddingJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.MemoryEmbeddingJob) error
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Memory() MemoryWriterInterface
	MemoryEmbeddingJobs() MemoryEmbeddingJobRepositoryInterface
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
