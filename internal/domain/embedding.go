package domain

import (
	"fmt"
	"time"
)

// JobStatus represents the status of a background job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// MemoryEmbeddingJob represents an async embedding generation job for an
// approved memory entry
type MemoryEmbeddingJob struct {
	ID            string
	MemoryEntryID string
	Status        JobStatus
	Retries       int32
	Error         string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// NewMemoryEmbeddingJob creates a new pending MemoryEmbeddingJob instance
func NewMemoryEmbeddingJob(id, memoryEntryID string, createdAt time.Time) *MemoryEmbeddingJob {
	return &MemoryEmbeddingJob{
		ID:            id,
		MemoryEntryID: memoryEntryID,
		Status:        JobStatusPending,
		Retries:       0,
		CreatedAt:     createdAt,
	}
}

// ValidateMemoryEmbeddingJob validates a MemoryEmbeddingJob instance
func ValidateMemoryEmbeddingJob(j *MemoryEmbeddingJob) error {
	if j == nil {
		return fmt.Errorf("embedding job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("embedding job ID is required")
	}

	if j.MemoryEntryID == "" {
		return fmt.Errorf("embedding job MemoryEntryID is required")
	}

	if !IsValidJobStatus(j.Status) {
		return fmt.Errorf("embedding job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("embedding job Retries cannot be negative")
	}

	return nil
}

// IsValidJobStatus checks if a JobStatus is valid
func IsValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}
