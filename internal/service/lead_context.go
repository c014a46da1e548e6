package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/cloo-solutions/draftgate/internal/metrics"
	"github.com/cloo-solutions/draftgate/internal/telemetry"
)

// KnowledgeRepositoryInterface lists the knowledge snapshot of a workspace
type KnowledgeRepositoryInterface interface {
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.KnowledgeItem, error)
}

// MemoryReaderInterface lists approved, unexpired memory entries
type MemoryReaderInterface interface {
	ListActive(ctx context.Context, workspaceID, leadID string, now time.Time) ([]*domain.MemoryEntry, error)
}

// WorkspaceRepositoryInterface loads per-workspace settings
type WorkspaceRepositoryInterface interface {
	GetSettings(ctx context.Context, workspaceID string) (*domain.WorkspaceSettings, error)
}

// LeadContextRequest selects the lead, workspace and profile to assemble for
type LeadContextRequest struct {
	WorkspaceID string
	LeadID      string
	Profile     domain.ContextProfile
	Timeout     time.Duration
}

// LeadContextBundle is the assembled context for one profile.
// KnowledgeStats is nil when the profile does not receive knowledge.
type LeadContextBundle struct {
	Profile            domain.ContextProfile `json:"profile"`
	ServiceDescription string                `json:"service_description"`
	Goals              string                `json:"goals"`
	KnowledgeContext   string                `json:"knowledge_context"`
	KnowledgeStats     *ContextStats         `json:"knowledge_stats,omitempty"`
	MemoryContext      string                `json:"memory_context"`
	MemoryStats        ContextStats          `json:"memory_stats"`
}

// LeadContextService composes knowledge, memory and workspace fields per profile
type LeadContextService struct {
	knowledge  KnowledgeRepositoryInterface
	memory     MemoryReaderInterface
	workspaces WorkspaceRepositoryInterface
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewLeadContextService creates a new LeadContextService
func NewLeadContextService(
	knowledge KnowledgeRepositoryInterface,
	memory MemoryReaderInterface,
	workspaces WorkspaceRepositoryInterface,
	m *metrics.Metrics,
	logger *zap.Logger,
) *LeadContextService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadContextService{
		knowledge:  knowledge,
		memory:     memory,
		workspaces: workspaces,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Build assembles the bundle. When req.Timeout elapses first the call fails
// with ErrLeadContextTimeout rather than returning partial context.
func (s *LeadContextService) Build(ctx context.Context, req LeadContextRequest) (*LeadContextBundle, error) {
	if req.WorkspaceID == "" {
		return nil, domain.ErrMissingRequiredField.WithCause(errors.New("workspace_id"))
	}
	if !domain.IsValidContextProfile(req.Profile) {
		return nil, domain.ErrInvalidContextProfile
	}

	ctx, span := telemetry.StartSpan(ctx, "LeadContextService.Build", telemetry.SpanAttributes{
		WorkspaceID: req.WorkspaceID,
		LeadID:      req.LeadID,
		Operation:   string(req.Profile),
	})
	defer span.End()

	if req.Timeout <= 0 {
		return s.build(ctx, req)
	}

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	type result struct {
		bundle *LeadContextBundle
		err    error
	}
	done := make(chan result, 1)
	go func() {
		bundle, err := s.build(ctx, req)
		done <- result{bundle: bundle, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return nil, domain.ErrLeadContextTimeout.WithCause(r.err)
		}
		return r.bundle, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("lead context assembly timed out",
				zap.String("workspace_id", req.WorkspaceID),
				zap.String("profile", string(req.Profile)),
				zap.Duration("timeout", req.Timeout),
			)
			return nil, domain.ErrLeadContextTimeout.WithCause(ctx.Err())
		}
		return nil, ctx.Err()
	}
}

func (s *LeadContextService) build(ctx context.Context, req LeadContextRequest) (*LeadContextBundle, error) {
	settings, err := s.workspaces.GetSettings(ctx, req.WorkspaceID)
	if err != nil {
		if !errors.Is(err, domain.ErrWorkspaceNotFound) {
			return nil, fmt.Errorf("load workspace settings: %w", err)
		}
		settings = &domain.WorkspaceSettings{WorkspaceID: req.WorkspaceID}
	}

	budget, err := ResolveProfileBudget(req.Profile, settings.ContextBudgets)
	if err != nil {
		return nil, err
	}

	bundle := &LeadContextBundle{
		Profile:            req.Profile,
		ServiceDescription: settings.ServiceDescription,
		Goals:              settings.Goals,
	}

	if budget.KnowledgeAllowed {
		items, err := s.knowledge.ListByWorkspace(ctx, req.WorkspaceID)
		if err != nil {
			return nil, fmt.Errorf("list knowledge: %w", err)
		}
		text, stats := BuildKnowledgeContext(items, budget.KnowledgeMaxTokens, budget.KnowledgeMaxTokensPerItem)
		bundle.KnowledgeContext = text
		bundle.KnowledgeStats = &stats
		s.metrics.RecordContextTokens(string(req.Profile), "knowledge", stats.IncludedTokensEstimated)
	}

	entries, err := s.memory.ListActive(ctx, req.WorkspaceID, req.LeadID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list memory: %w", err)
	}
	bundle.MemoryContext, bundle.MemoryStats = BuildMemoryContext(entries, budget.MemoryMaxTokens, budget.MemoryMaxTokensPerItem, req.Profile)
	s.metrics.RecordContextTokens(string(req.Profile), "memory", bundle.MemoryStats.IncludedTokensEstimated)

	return bundle, nil
}
