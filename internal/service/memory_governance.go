package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cloo-solutions/draftgate/internal/domain"
)

// MemoryPolicy governs which proposed facts become memory entries
type MemoryPolicy struct {
	AllowedCategories []string
	MinConfidence     float64
	MinTTLDays        int
	MaxTTLDays        int
}

// DefaultMemoryPolicy returns the default governance policy
func DefaultMemoryPolicy() MemoryPolicy {
	return MemoryPolicy{
		AllowedCategories: []string{
			"timezone", "scheduling_preference", "communication_preference",
			"role", "company_context", "objection",
		},
		MinConfidence: 0.7,
		MinTTLDays:    1,
		MaxTTLDays:    90,
	}
}

// ForWorkspace applies workspace settings on top of the policy
func (p MemoryPolicy) ForWorkspace(settings *domain.WorkspaceSettings) MemoryPolicy {
	if settings == nil {
		return p
	}
	if len(settings.MemoryAllowedCategories) > 0 {
		p.AllowedCategories = settings.MemoryAllowedCategories
	}
	if settings.MemoryMinConfidence != nil {
		p.MinConfidence = *settings.MemoryMinConfidence
	}
	if settings.MemoryMinTTLDays != nil {
		p.MinTTLDays = *settings.MemoryMinTTLDays
	}
	if settings.MemoryMaxTTLDays != nil {
		p.MaxTTLDays = *settings.MemoryMaxTTLDays
	}
	if p.MaxTTLDays < p.MinTTLDays {
		p.MaxTTLDays = p.MinTTLDays
	}
	return p
}

func (p MemoryPolicy) allows(category string) bool {
	for _, c := range p.AllowedCategories {
		if strings.EqualFold(strings.TrimSpace(c), category) {
			return true
		}
	}
	return false
}

// MemoryGovernanceResult is the outcome of filtering memory proposals
type MemoryGovernanceResult struct {
	Proposed       int                   `json:"proposed"`
	Approved       int                   `json:"approved"`
	Pending        int                   `json:"pending"`
	Dropped        int                   `json:"dropped"`
	DroppedReasons []string              `json:"dropped_reasons,omitempty"`
	Persisted      bool                  `json:"persisted"`
	Error          string                `json:"error,omitempty"`
	Entries        []*domain.MemoryEntry `json:"-"`
}

// GovernMemoryProposals filters proposals through policy. Entries below the
// minimum confidence are kept as pending; disallowed ones are dropped.
func GovernMemoryProposals(proposals []domain.MemoryProposal, policy MemoryPolicy, workspaceID, leadID string, now time.Time) MemoryGovernanceResult {
	result := MemoryGovernanceResult{Proposed: len(proposals)}

	drop := func(i int, reason string) {
		result.Dropped++
		result.DroppedReasons = append(result.DroppedReasons, fmt.Sprintf("proposal %d: %s", i, reason))
	}

	for i, p := range proposals {
		category := strings.ToLower(strings.TrimSpace(p.Category))
		content := strings.TrimSpace(p.Content)

		switch {
		case content == "":
			drop(i, "empty content")
			continue
		case !domain.IsValidMemoryScope(p.Scope):
			drop(i, "invalid scope")
			continue
		case p.Scope == domain.MemoryScopeLead && leadID == "":
			drop(i, "lead scope without lead")
			continue
		case !policy.allows(category):
			drop(i, "category not allowed")
			continue
		case !domain.IsUnitInterval(p.Confidence):
			drop(i, "confidence out of range")
			continue
		}

		ttl := clampInt(p.TTLDays, policy.MinTTLDays, policy.MaxTTLDays)
		expires := now.AddDate(0, 0, ttl)

		status := domain.MemoryStatusApproved
		if p.Confidence < policy.MinConfidence {
			status = domain.MemoryStatusPending
			result.Pending++
		} else {
			result.Approved++
		}

		entry := &domain.MemoryEntry{
			ID:          uuid.New().String(),
			WorkspaceID: workspaceID,
			Scope:       p.Scope,
			Category:    category,
			Content:     content,
			Status:      status,
			Source:      domain.MemorySourceRevisionAgent,
			Confidence:  p.Confidence,
			CreatedAt:   now,
			ExpiresAt:   &expires,
		}
		if p.Scope == domain.MemoryScopeLead {
			entry.LeadID = leadID
		}
		result.Entries = append(result.Entries, entry)
	}

	return result
}

// persistMemoryEntries writes all entries in one transaction and queues
// embedding jobs for the approved ones.
func persistMemoryEntries(ctx context.Context, txRunner TxRunner, entries []*domain.MemoryEntry, now time.Time) error {
	if len(entries) == 0 {
		return nil
	}
	return txRunner.WithTx(ctx, func(repos TxRepositories) error {
		for _, entry := range entries {
			if err := repos.Memory().Create(ctx, entry); err != nil {
				return fmt.Errorf("create memory entry: %w", err)
			}
			if entry.Status != domain.MemoryStatusApproved {
				continue
			}
			job := domain.NewMemoryEmbeddingJob(uuid.New().String(), entry.ID, now)
			if err := repos.MemoryEmbeddingJobs().Create(ctx, job); err != nil {
				return fmt.Errorf("enqueue memory embedding job: %w", err)
			}
		}
		return nil
	})
}
