package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newLeadContextMocks() (*MockKnowledgeRepository, *MockMemoryReader, *MockWorkspaceRepository) {
	return new(MockKnowledgeRepository), new(MockMemoryReader), new(MockWorkspaceRepository)
}

func TestLeadContextService_Build(t *testing.T) {
	now := time.Now()
	settings := &domain.WorkspaceSettings{
		WorkspaceID:        "ws-1",
		ServiceDescription: "We build onboarding flows",
		Goals:              "Book a discovery call",
	}
	items := []*domain.KnowledgeItem{
		domain.NewKnowledgeItem("k1", "ws-1", "Pricing", domain.KnowledgeKindText, "Plans start at 99 EUR", now),
		domain.NewKnowledgeItem("k2", "ws-1", domain.PrimaryWebsiteAssetName, domain.KnowledgeKindURL, "https://example.com", now),
	}
	entries := []*domain.MemoryEntry{
		{ID: "m1", Category: "timezone", Content: "Reach me at sam@example.com, CET", Status: domain.MemoryStatusApproved, CreatedAt: now},
	}

	t.Run("revision profile gets knowledge and redacted memory", func(t *testing.T) {
		knowledge, memory, workspaces := newLeadContextMocks()
		workspaces.On("GetSettings", mock.Anything, "ws-1").Return(settings, nil)
		knowledge.On("ListByWorkspace", mock.Anything, "ws-1").Return(items, nil)
		memory.On("ListActive", mock.Anything, "ws-1", "lead-1", mock.Anything).Return(entries, nil)

		svc := NewLeadContextService(knowledge, memory, workspaces, nil, nil)
		bundle, err := svc.Build(context.Background(), LeadContextRequest{
			WorkspaceID: "ws-1",
			LeadID:      "lead-1",
			Profile:     domain.ContextProfileRevision,
		})
		require.NoError(t, err)

		assert.Equal(t, "We build onboarding flows", bundle.ServiceDescription)
		assert.Equal(t, "Book a discovery call", bundle.Goals)
		assert.Contains(t, bundle.KnowledgeContext, "[Pricing]")
		assert.NotContains(t, bundle.KnowledgeContext, "example.com")
		require.NotNil(t, bundle.KnowledgeStats)
		assert.Equal(t, 1, bundle.KnowledgeStats.IncludedItems)
		assert.Contains(t, bundle.MemoryContext, redactedEmail)
		assert.NotContains(t, bundle.MemoryContext, "sam@example.com")
	})

	t.Run("profile without knowledge never lists it", func(t *testing.T) {
		knowledge, memory, workspaces := newLeadContextMocks()
		workspaces.On("GetSettings", mock.Anything, "ws-1").Return(settings, nil)
		memory.On("ListActive", mock.Anything, "ws-1", "lead-1", mock.Anything).Return(entries, nil)

		svc := NewLeadContextService(knowledge, memory, workspaces, nil, nil)
		bundle, err := svc.Build(context.Background(), LeadContextRequest{
			WorkspaceID: "ws-1",
			LeadID:      "lead-1",
			Profile:     domain.ContextProfileFollowUpParse,
		})
		require.NoError(t, err)

		assert.Empty(t, bundle.KnowledgeContext)
		assert.Nil(t, bundle.KnowledgeStats)
		knowledge.AssertNotCalled(t, "ListByWorkspace", mock.Anything, mock.Anything)
	})

	t.Run("draft profile sees raw contact details", func(t *testing.T) {
		knowledge, memory, workspaces := newLeadContextMocks()
		workspaces.On("GetSettings", mock.Anything, "ws-1").Return(settings, nil)
		knowledge.On("ListByWorkspace", mock.Anything, "ws-1").Return(items, nil)
		memory.On("ListActive", mock.Anything, "ws-1", "lead-1", mock.Anything).Return(entries, nil)

		svc := NewLeadContextService(knowledge, memory, workspaces, nil, nil)
		bundle, err := svc.Build(context.Background(), LeadContextRequest{
			WorkspaceID: "ws-1",
			LeadID:      "lead-1",
			Profile:     domain.ContextProfileDraft,
		})
		require.NoError(t, err)
		assert.Contains(t, bundle.MemoryContext, "sam@example.com")
	})

	t.Run("missing workspace falls back to empty settings", func(t *testing.T) {
		knowledge, memory, workspaces := newLeadContextMocks()
		workspaces.On("GetSettings", mock.Anything, "ws-1").Return(nil, domain.ErrWorkspaceNotFound)
		knowledge.On("ListByWorkspace", mock.Anything, "ws-1").Return(nil, nil)
		memory.On("ListActive", mock.Anything, "ws-1", "lead-1", mock.Anything).Return(nil, nil)

		svc := NewLeadContextService(knowledge, memory, workspaces, nil, nil)
		bundle, err := svc.Build(context.Background(), LeadContextRequest{
			WorkspaceID: "ws-1",
			LeadID:      "lead-1",
			Profile:     domain.ContextProfileRevision,
		})
		require.NoError(t, err)
		assert.Empty(t, bundle.ServiceDescription)
		assert.Empty(t, bundle.MemoryContext)
	})

	t.Run("workspace budget override applies", func(t *testing.T) {
		knowledge, memory, workspaces := newLeadContextMocks()
		overridden := *settings
		overridden.ContextBudgets = map[domain.ContextProfile]domain.ProfileBudgetOverride{
			domain.ContextProfileRevision: {KnowledgeMaxTokens: 5},
		}
		long := []*domain.KnowledgeItem{
			domain.NewKnowledgeItem("k1", "ws-1", "Pricing", domain.KnowledgeKindText, strings.Repeat("plan ", 100), now),
		}
		workspaces.On("GetSettings", mock.Anything, "ws-1").Return(&overridden, nil)
		knowledge.On("ListByWorkspace", mock.Anything, "ws-1").Return(long, nil)
		memory.On("ListActive", mock.Anything, "ws-1", "", mock.Anything).Return(nil, nil)

		svc := NewLeadContextService(knowledge, memory, workspaces, nil, nil)
		bundle, err := svc.Build(context.Background(), LeadContextRequest{
			WorkspaceID: "ws-1",
			Profile:     domain.ContextProfileRevision,
		})
		require.NoError(t, err)
		assert.LessOrEqual(t, bundle.KnowledgeStats.IncludedTokensEstimated, 5)
	})
}

func TestLeadContextService_BuildErrors(t *testing.T) {
	t.Run("invalid profile", func(t *testing.T) {
		knowledge, memory, workspaces := newLeadContextMocks()
		svc := NewLeadContextService(knowledge, memory, workspaces, nil, nil)

		_, err := svc.Build(context.Background(), LeadContextRequest{WorkspaceID: "ws-1", Profile: "unknown"})
		assert.ErrorIs(t, err, domain.ErrInvalidContextProfile)
	})

	t.Run("missing workspace id", func(t *testing.T) {
		knowledge, memory, workspaces := newLeadContextMocks()
		svc := NewLeadContextService(knowledge, memory, workspaces, nil, nil)

		_, err := svc.Build(context.Background(), LeadContextRequest{Profile: domain.ContextProfileRevision})
		assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
	})

	t.Run("repository failure", func(t *testing.T) {
		knowledge, memory, workspaces := newLeadContextMocks()
		workspaces.On("GetSettings", mock.Anything, "ws-1").Return(nil, errors.New("connection reset"))
		svc := NewLeadContextService(knowledge, memory, workspaces, nil, nil)

		_, err := svc.Build(context.Background(), LeadContextRequest{WorkspaceID: "ws-1", Profile: domain.ContextProfileRevision})
		assert.ErrorContains(t, err, "connection reset")
	})

	t.Run("timeout", func(t *testing.T) {
		knowledge, memory, workspaces := newLeadContextMocks()
		workspaces.On("GetSettings", mock.Anything, "ws-1").
			Return(&domain.WorkspaceSettings{WorkspaceID: "ws-1"}, nil).
			After(300 * time.Millisecond)
		knowledge.On("ListByWorkspace", mock.Anything, "ws-1").Return(nil, nil).Maybe()
		memory.On("ListActive", mock.Anything, "ws-1", "lead-1", mock.Anything).Return(nil, nil).Maybe()

		svc := NewLeadContextService(knowledge, memory, workspaces, nil, nil)
		start := time.Now()
		_, err := svc.Build(context.Background(), LeadContextRequest{
			WorkspaceID: "ws-1",
			LeadID:      "lead-1",
			Profile:     domain.ContextProfileRevision,
			Timeout:     20 * time.Millisecond,
		})

		assert.ErrorIs(t, err, domain.ErrLeadContextTimeout)
		assert.Less(t, time.Since(start), 250*time.Millisecond)
	})
}
