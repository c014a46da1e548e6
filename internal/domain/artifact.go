package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ArtifactStage names a pipeline transition recorded as an artifact
type ArtifactStage string

const (
	ArtifactStageInputEvaluation  ArtifactStage = "input_evaluation"
	ArtifactStageSelector         ArtifactStage = "selector"
	ArtifactStageContextPack      ArtifactStage = "context_pack"
	ArtifactStageReviser          ArtifactStage = "reviser"
	ArtifactStageEvaluation       ArtifactStage = "evaluation"
	ArtifactStageMemoryGovernance ArtifactStage = "memory_governance"
	ArtifactStageLoopError        ArtifactStage = "loop_error"
)

// PipelineArtifact is an upserted, append-only record of one pipeline stage.
// The (RunID, Stage, Iteration) triple is unique.
type PipelineArtifact struct {
	RunID     string
	Stage     ArtifactStage
	Iteration int
	Payload   json.RawMessage
	Text      string
	Model     string
	PromptKey string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidatePipelineArtifact validates a PipelineArtifact instance
func ValidatePipelineArtifact(a *PipelineArtifact) error {
	if a == nil {
		return fmt.Errorf("pipeline artifact cannot be nil")
	}

	if a.RunID == "" {
		return fmt.Errorf("pipeline artifact RunID is required")
	}

	if !IsValidArtifactStage(a.Stage) {
		return fmt.Errorf("pipeline artifact Stage is invalid: %s", a.Stage)
	}

	if a.Iteration < 0 {
		return fmt.Errorf("pipeline artifact Iteration cannot be negative")
	}

	if len(a.Payload) > 0 && !json.Valid(a.Payload) {
		return fmt.Errorf("pipeline artifact Payload must be valid JSON")
	}

	return nil
}

// IsValidArtifactStage checks if an ArtifactStage is valid
func IsValidArtifactStage(s ArtifactStage) bool {
	switch s {
	case ArtifactStageInputEvaluation, ArtifactStageSelector, ArtifactStageContextPack,
		ArtifactStageReviser, ArtifactStageEvaluation, ArtifactStageMemoryGovernance,
		ArtifactStageLoopError:
		return true
	}
	return false
}
