package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ArtifactRepository struct {
	db dbtx
}

func NewArtifactRepository(pool *pgxpool.Pool) *ArtifactRepository {
	return &ArtifactRepository{db: pool}
}

func (r *ArtifactRepository) Get(ctx context.Context, runID string, stage domain.ArtifactStage, iteration int) (*domain.PipelineArtifact, error) {
	a, err := scanArtifact(r.db.QueryRow(ctx,
		`SELECT run_id, stage, iteration, payload, text, model, prompt_key, created_at, updated_at
		 FROM pipeline_artifacts WHERE run_id = $1 AND stage = $2 AND iteration = $3`,
		runID, stage, iteration,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, err
	}
	return a, nil
}

// Upsert writes the artifact, replacing any earlier record for the same
// (run, stage, iteration). created_at keeps its first value.
func (r *ArtifactRepository) Upsert(ctx context.Context, a *domain.PipelineArtifact) error {
	now := time.Now().UTC()
	var payload []byte
	if len(a.Payload) > 0 {
		payload = a.Payload
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO pipeline_artifacts (run_id, stage, iteration, payload, text, model, prompt_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 ON CONFLICT (run_id, stage, iteration) DO UPDATE
		 SET payload = EXCLUDED.payload,
		     text = EXCLUDED.text,
		     model = EXCLUDED.model,
		     prompt_key = EXCLUDED.prompt_key,
		     updated_at = EXCLUDED.updated_at`,
		a.RunID, a.Stage, a.Iteration, payload, a.Text, a.Model, a.PromptKey, now,
	)
	return err
}

func (r *ArtifactRepository) ListByRun(ctx context.Context, runID string) ([]*domain.PipelineArtifact, error) {
	rows, err := r.db.Query(ctx,
		`SELECT run_id, stage, iteration, payload, text, model, prompt_key, created_at, updated_at
		 FROM pipeline_artifacts WHERE run_id = $1
		 ORDER BY iteration ASC, created_at ASC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []*domain.PipelineArtifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

func scanArtifact(row pgx.Row) (*domain.PipelineArtifact, error) {
	var a domain.PipelineArtifact
	var payload []byte
	if err := row.Scan(&a.RunID, &a.Stage, &a.Iteration, &payload, &a.Text, &a.Model, &a.PromptKey, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Payload = payload
	return &a, nil
}
