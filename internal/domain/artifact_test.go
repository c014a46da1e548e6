package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePipelineArtifact(t *testing.T) {
	t.Run("valid artifact", func(t *testing.T) {
		a := &PipelineArtifact{
			RunID:     "run-1",
			Stage:     ArtifactStageReviser,
			Iteration: 0,
			Payload:   json.RawMessage(`{"revised_draft":"hi"}`),
		}
		require.NoError(t, ValidatePipelineArtifact(a))
	})

	t.Run("invalid stage", func(t *testing.T) {
		a := &PipelineArtifact{RunID: "run-1", Stage: "drafting"}
		assert.Error(t, ValidatePipelineArtifact(a))
	})

	t.Run("negative iteration", func(t *testing.T) {
		a := &PipelineArtifact{RunID: "run-1", Stage: ArtifactStageEvaluation, Iteration: -1}
		assert.Error(t, ValidatePipelineArtifact(a))
	})

	t.Run("malformed payload", func(t *testing.T) {
		a := &PipelineArtifact{RunID: "run-1", Stage: ArtifactStageEvaluation, Payload: json.RawMessage(`{`)}
		assert.Error(t, ValidatePipelineArtifact(a))
	})
}

func TestValidateRevisionJob(t *testing.T) {
	job := &RevisionJob{
		ID:      "job-1",
		DraftID: "draft-1",
		RunID:   "run-1",
		Status:  JobStatusPending,
		Payload: json.RawMessage(`{}`),
	}
	require.NoError(t, ValidateRevisionJob(job))

	job.Payload = nil
	assert.Error(t, ValidateRevisionJob(job))
}

func TestJudgeDimensions_Mean(t *testing.T) {
	d := JudgeDimensions{
		PricingCadenceAccuracy: 50,
		FactualAlignment:       70,
		SafetyAndPolicy:        50,
		ResponseQuality:        70,
	}
	assert.InDelta(t, 60.0, d.Mean(), 0.0001)
}

func TestScoreBand_Contains(t *testing.T) {
	band := ScoreBand{Min: 40, Max: 80}
	assert.True(t, band.Contains(40))
	assert.True(t, band.Contains(80))
	assert.True(t, band.Contains(55.5))
	assert.False(t, band.Contains(39.9))
	assert.False(t, band.Contains(80.1))
}
