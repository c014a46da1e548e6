package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WorkspaceRepository struct {
	db dbtx
}

func NewWorkspaceRepository(pool *pgxpool.Pool) *WorkspaceRepository {
	return &WorkspaceRepository{db: pool}
}

func (r *WorkspaceRepository) GetSettings(ctx context.Context, workspaceID string) (*domain.WorkspaceSettings, error) {
	var s domain.WorkspaceSettings
	var budgets []byte
	err := r.db.QueryRow(ctx,
		`SELECT workspace_id, service_description, goals, memory_allowed_categories,
		        memory_min_confidence, memory_min_ttl_days, memory_max_ttl_days, context_budgets
		 FROM workspace_settings WHERE workspace_id = $1`,
		workspaceID,
	).Scan(&s.WorkspaceID, &s.ServiceDescription, &s.Goals, &s.MemoryAllowedCategories,
		&s.MemoryMinConfidence, &s.MemoryMinTTLDays, &s.MemoryMaxTTLDays, &budgets)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWorkspaceNotFound
		}
		return nil, err
	}
	if len(budgets) > 0 {
		if err := json.Unmarshal(budgets, &s.ContextBudgets); err != nil {
			return nil, fmt.Errorf("decode context budgets: %w", err)
		}
	}
	return &s, nil
}

func (r *WorkspaceRepository) Upsert(ctx context.Context, s *domain.WorkspaceSettings) error {
	budgets := s.ContextBudgets
	if budgets == nil {
		budgets = map[domain.ContextProfile]domain.ProfileBudgetOverride{}
	}
	encoded, err := json.Marshal(budgets)
	if err != nil {
		return fmt.Errorf("encode context budgets: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.Exec(ctx,
		`INSERT INTO workspace_settings (workspace_id, service_description, goals, memory_allowed_categories,
		                                 memory_min_confidence, memory_min_ttl_days, memory_max_ttl_days,
		                                 context_budgets, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		 ON CONFLICT (workspace_id) DO UPDATE
		 SET service_description = EXCLUDED.service_description,
		     goals = EXCLUDED.goals,
		     memory_allowed_categories = EXCLUDED.memory_allowed_categories,
		     memory_min_confidence = EXCLUDED.memory_min_confidence,
		     memory_min_ttl_days = EXCLUDED.memory_min_ttl_days,
		     memory_max_ttl_days = EXCLUDED.memory_max_ttl_days,
		     context_budgets = EXCLUDED.context_budgets,
		     updated_at = EXCLUDED.updated_at`,
		s.WorkspaceID, s.ServiceDescription, s.Goals, s.MemoryAllowedCategories,
		s.MemoryMinConfidence, s.MemoryMinTTLDays, s.MemoryMaxTTLDays, encoded, now,
	)
	return err
}
