package service

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/cloo-solutions/draftgate/internal/domain"
)

// ArtifactRepositoryInterface persists pipeline artifacts keyed by (run, stage, iteration)
type ArtifactRepositoryInterface interface {
	Get(ctx context.Context, runID string, stage domain.ArtifactStage, iteration int) (*domain.PipelineArtifact, error)
	Upsert(ctx context.Context, artifact *domain.PipelineArtifact) error
	ListByRun(ctx context.Context, runID string) ([]*domain.PipelineArtifact, error)
}

// ArtifactRecorder is the cache-then-compute contract of the revision
// pipeline: Lookup before an expensive step, Record after it.
type ArtifactRecorder struct {
	repo   ArtifactRepositoryInterface
	logger *zap.Logger
}

// NewArtifactRecorder creates a new ArtifactRecorder
func NewArtifactRecorder(repo ArtifactRepositoryInterface, logger *zap.Logger) *ArtifactRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactRecorder{repo: repo, logger: logger}
}

// Lookup returns the recorded artifact, or false when none is usable.
// Read failures are logged and treated as a cache miss.
func (r *ArtifactRecorder) Lookup(ctx context.Context, runID string, stage domain.ArtifactStage, iteration int) (*domain.PipelineArtifact, bool) {
	artifact, err := r.repo.Get(ctx, runID, stage, iteration)
	if err != nil {
		if !errors.Is(err, domain.ErrArtifactNotFound) {
			r.logger.Warn("artifact lookup failed",
				zap.String("run_id", runID),
				zap.String("stage", string(stage)),
				zap.Int("iteration", iteration),
				zap.Error(err),
			)
		}
		return nil, false
	}
	return artifact, artifact != nil
}

// Record upserts an artifact. Failures are logged and never returned.
func (r *ArtifactRecorder) Record(ctx context.Context, artifact *domain.PipelineArtifact) {
	if err := domain.ValidatePipelineArtifact(artifact); err != nil {
		r.logger.Warn("artifact rejected", zap.Error(err))
		return
	}
	if err := r.repo.Upsert(ctx, artifact); err != nil {
		r.logger.Warn("artifact persist failed",
			zap.String("run_id", artifact.RunID),
			zap.String("stage", string(artifact.Stage)),
			zap.Int("iteration", artifact.Iteration),
			zap.Error(err),
		)
	}
}

// RecordJSON marshals payload and records it with the given metadata
func (r *ArtifactRecorder) RecordJSON(ctx context.Context, runID string, stage domain.ArtifactStage, iteration int, payload any, meta artifactMeta) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn("artifact payload marshal failed", zap.String("stage", string(stage)), zap.Error(err))
		return
	}
	r.Record(ctx, &domain.PipelineArtifact{
		RunID:     runID,
		Stage:     stage,
		Iteration: iteration,
		Payload:   data,
		Text:      meta.Text,
		Model:     meta.Model,
		PromptKey: meta.PromptKey,
	})
}

// List returns every artifact of a run
func (r *ArtifactRecorder) List(ctx context.Context, runID string) ([]*domain.PipelineArtifact, error) {
	return r.repo.ListByRun(ctx, runID)
}

type artifactMeta struct {
	Text      string
	Model     string
	PromptKey string
}
