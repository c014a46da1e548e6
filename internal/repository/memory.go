package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/cloo-solutions/draftgate/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const memoryColumns = `id, workspace_id, lead_id, scope, category, content, status, source, confidence, created_at, expires_at`

type MemoryRepository struct {
	db dbtx
}

func NewMemoryRepository(pool *pgxpool.Pool) *MemoryRepository {
	return &MemoryRepository{db: pool}
}

func NewMemoryRepositoryWithTx(tx pgx.Tx) *MemoryRepository {
	return &MemoryRepository{db: tx}
}

func (r *MemoryRepository) Create(ctx context.Context, m *domain.MemoryEntry) error {
	if err := domain.ValidateMemoryEntry(m); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid memory entry", err)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO memory_entries (id, workspace_id, lead_id, scope, category, content, status, source, confidence, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.WorkspaceID, nullableString(m.LeadID), m.Scope, m.Category, m.Content, m.Status, m.Source, m.Confidence, m.CreatedAt, m.ExpiresAt,
	)
	return err
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.MemoryEntry, error) {
	m, err := scanMemory(r.db.QueryRow(ctx,
		`SELECT `+memoryColumns+` FROM memory_entries WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMemoryNotFound
		}
		return nil, err
	}
	return m, nil
}

// ListActive returns approved, unexpired entries for the workspace: every
// workspace-scoped entry plus the lead's own entries. Newest first.
func (r *MemoryRepository) ListActive(ctx context.Context, workspaceID, leadID string, now time.Time) ([]*domain.MemoryEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+memoryColumns+`
		 FROM memory_entries
		 WHERE workspace_id = $1
		   AND status = $2
		   AND (expires_at IS NULL OR expires_at > $3)
		   AND (scope = 'workspace' OR ($4::text <> '' AND lead_id = $4))
		 ORDER BY created_at DESC`,
		workspaceID, domain.MemoryStatusApproved, now, leadID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.MemoryEntry
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, m)
	}
	return entries, rows.Err()
}

// SearchSimilar ranks active entries with an embedding by cosine similarity
func (r *MemoryRepository) SearchSimilar(ctx context.Context, workspaceID, leadID string, embedding []float32, limit int) ([]*service.ScoredMemory, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+memoryColumns+`, 1 - (embedding <=> $1) AS similarity
		 FROM memory_entries
		 WHERE workspace_id = $2
		   AND status = $3
		   AND embedding IS NOT NULL
		   AND (expires_at IS NULL OR expires_at > NOW())
		   AND (scope = 'workspace' OR ($4::text <> '' AND lead_id = $4))
		 ORDER BY embedding <=> $1
		 LIMIT $5`,
		pgvector.NewVector(embedding), workspaceID, domain.MemoryStatusApproved, leadID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*service.ScoredMemory
	for rows.Next() {
		var m domain.MemoryEntry
		var lead pgtype.Text
		var similarity float64
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &lead, &m.Scope, &m.Category, &m.Content, &m.Status, &m.Source,
			&m.Confidence, &m.CreatedAt, &m.ExpiresAt, &similarity); err != nil {
			return nil, err
		}
		if lead.Valid {
			m.LeadID = lead.String
		}
		results = append(results, &service.ScoredMemory{Entry: &m, Similarity: similarity})
	}
	return results, rows.Err()
}

func (r *MemoryRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE memory_entries SET embedding = $1 WHERE id = $2`,
		pgvector.NewVector(embedding), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrMemoryNotFound
	}
	return nil
}

func scanMemory(row pgx.Row) (*domain.MemoryEntry, error) {
	var m domain.MemoryEntry
	var lead pgtype.Text
	if err := row.Scan(&m.ID, &m.WorkspaceID, &lead, &m.Scope, &m.Category, &m.Content, &m.Status, &m.Source,
		&m.Confidence, &m.CreatedAt, &m.ExpiresAt); err != nil {
		return nil, err
	}
	if lead.Valid {
		m.LeadID = lead.String
	}
	return &m, nil
}
