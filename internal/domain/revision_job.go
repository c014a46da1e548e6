package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RevisionJob is a queued request to run the revision pipeline for a draft.
// Payload carries the serialized case the orchestrator needs.
type RevisionJob struct {
	ID          string
	DraftID     string
	RunID       string
	Iteration   int
	Payload     json.RawMessage
	Status      JobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// ValidateRevisionJob validates a RevisionJob instance
func ValidateRevisionJob(j *RevisionJob) error {
	if j == nil {
		return fmt.Errorf("revision job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("revision job ID is required")
	}

	if j.DraftID == "" {
		return fmt.Errorf("revision job DraftID is required")
	}

	if j.RunID == "" {
		return fmt.Errorf("revision job RunID is required")
	}

	if j.Iteration < 0 {
		return fmt.Errorf("revision job Iteration cannot be negative")
	}

	if !IsValidJobStatus(j.Status) {
		return fmt.Errorf("revision job Status is invalid: %s", j.Status)
	}

	if len(j.Payload) == 0 || !json.Valid(j.Payload) {
		return fmt.Errorf("revision job Payload must be valid JSON")
	}

	return nil
}
