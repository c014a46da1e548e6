package repository

import (
	"context"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type KnowledgeRepository struct {
	db dbtx
}

func NewKnowledgeRepository(pool *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{db: pool}
}

func (r *KnowledgeRepository) Create(ctx context.Context, k *domain.KnowledgeItem) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_assets (id, workspace_id, name, kind, raw_text, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		k.ID, k.WorkspaceID, k.Name, k.Kind, k.RawText, k.LastUpdated,
	)
	return err
}

// ListByWorkspace returns the workspace's knowledge snapshot, most recently
// updated first.
func (r *KnowledgeRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.KnowledgeItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, workspace_id, name, kind, raw_text, updated_at
		 FROM knowledge_assets
		 WHERE workspace_id = $1
		 ORDER BY updated_at DESC`,
		workspaceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.KnowledgeItem
	for rows.Next() {
		var k domain.KnowledgeItem
		if err := rows.Scan(&k.ID, &k.WorkspaceID, &k.Name, &k.Kind, &k.RawText, &k.LastUpdated); err != nil {
			return nil, err
		}
		items = append(items, &k)
	}
	return items, rows.Err()
}
