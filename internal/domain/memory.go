package domain

import (
	"fmt"
	"strings"
	"time"
)

// MemoryScope says whether a fact belongs to a single lead or the whole workspace
type MemoryScope string

const (
	MemoryScopeLead      MemoryScope = "lead"
	MemoryScopeWorkspace MemoryScope = "workspace"
)

// MemoryStatus represents the governance status of a memory entry
type MemoryStatus string

const (
	MemoryStatusApproved MemoryStatus = "approved"
	MemoryStatusPending  MemoryStatus = "pending"
)

// MemorySourceRevisionAgent marks entries proposed by the revision call
const MemorySourceRevisionAgent = "revision_agent"

// MemoryEntry is a durable fact inferred about a lead or workspace
type MemoryEntry struct {
	ID          string
	WorkspaceID string
	LeadID      string // empty for workspace-scoped facts
	Scope       MemoryScope
	Category    string
	Content     string
	Status      MemoryStatus
	Source      string
	Confidence  float64
	CreatedAt   time.Time
	ExpiresAt   *time.Time
}

// IsActive reports whether the entry may be used as context at the given time
func (m *MemoryEntry) IsActive(now time.Time) bool {
	if m == nil || m.Status != MemoryStatusApproved {
		return false
	}
	return m.ExpiresAt == nil || m.ExpiresAt.After(now)
}

// MemoryProposal is a fact proposed by the revision call, subject to governance
type MemoryProposal struct {
	Scope      MemoryScope `json:"scope"`
	Category   string      `json:"category"`
	Content    string      `json:"content"`
	TTLDays    int         `json:"ttl_days"`
	Confidence float64     `json:"confidence"`
}

// ValidateMemoryEntry validates a MemoryEntry instance
func ValidateMemoryEntry(m *MemoryEntry) error {
	if m == nil {
		return fmt.Errorf("memory entry cannot be nil")
	}

	if m.ID == "" {
		return fmt.Errorf("memory entry ID is required")
	}

	if m.WorkspaceID == "" {
		return fmt.Errorf("memory entry WorkspaceID is required")
	}

	if !IsValidMemoryScope(m.Scope) {
		return fmt.Errorf("memory entry Scope is invalid: %s", m.Scope)
	}

	if m.Scope == MemoryScopeLead && m.LeadID == "" {
		return fmt.Errorf("memory entry LeadID is required for lead scope")
	}

	if strings.TrimSpace(m.Category) == "" {
		return fmt.Errorf("memory entry Category is required")
	}

	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("memory entry Content is required")
	}

	if m.Status != MemoryStatusApproved && m.Status != MemoryStatusPending {
		return fmt.Errorf("memory entry Status is invalid: %s", m.Status)
	}

	return nil
}

// IsValidMemoryScope checks if a MemoryScope is valid
func IsValidMemoryScope(s MemoryScope) bool {
	switch s {
	case MemoryScopeLead, MemoryScopeWorkspace:
		return true
	}
	return false
}
