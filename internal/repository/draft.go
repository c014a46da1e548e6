package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DraftRepository struct {
	db dbtx
}

func NewDraftRepository(pool *pgxpool.Pool) *DraftRepository {
	return &DraftRepository{db: pool}
}

func (r *DraftRepository) Create(ctx context.Context, d *domain.Draft) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO drafts (id, workspace_id, lead_id, channel, content, status, confidence, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.WorkspaceID, d.LeadID, d.Channel, d.Content, d.Status, d.Confidence, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DraftRepository) GetByID(ctx context.Context, id string) (*domain.Draft, error) {
	var d domain.Draft
	err := r.db.QueryRow(ctx,
		`SELECT id, workspace_id, lead_id, channel, content, status, confidence,
		        revision_attempted_at, revision_applied, revision_confidence, created_at, updated_at
		 FROM drafts WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.WorkspaceID, &d.LeadID, &d.Channel, &d.Content, &d.Status, &d.Confidence,
		&d.RevisionAttemptedAt, &d.RevisionApplied, &d.RevisionConfidence, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDraftNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ClaimRevision marks the draft as having had its one revision attempt.
// It matches only a pending draft that was never claimed, so at most one
// caller ever gets true.
func (r *DraftRepository) ClaimRevision(ctx context.Context, draftID string, at time.Time) (bool, error) {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE drafts
		 SET revision_attempted_at = $1, updated_at = $1
		 WHERE id = $2 AND status = $3 AND revision_attempted_at IS NULL`,
		at, draftID, domain.DraftStatusPending,
	)
	if err != nil {
		return false, err
	}
	return cmdTag.RowsAffected() == 1, nil
}

// ApplyRevision replaces the draft content only while it is still pending
func (r *DraftRepository) ApplyRevision(ctx context.Context, draftID, content string, confidence float64) (bool, error) {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE drafts
		 SET content = $1, revision_applied = TRUE, revision_confidence = $2, updated_at = $3
		 WHERE id = $4 AND status = $5`,
		content, confidence, time.Now().UTC(), draftID, domain.DraftStatusPending,
	)
	if err != nil {
		return false, err
	}
	return cmdTag.RowsAffected() == 1, nil
}

// UpdateStatus records a human or automated send decision
func (r *DraftRepository) UpdateStatus(ctx context.Context, draftID string, status domain.DraftStatus) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE drafts SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), draftID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDraftNotFound
	}
	return nil
}
