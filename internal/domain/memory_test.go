package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMemoryEntry() *MemoryEntry {
	return &MemoryEntry{
		ID:          "mem-1",
		WorkspaceID: "ws-1",
		LeadID:      "lead-1",
		Scope:       MemoryScopeLead,
		Category:    "scheduling_preference",
		Content:     "Prefers calls after 3pm",
		Status:      MemoryStatusApproved,
		Source:      MemorySourceRevisionAgent,
		Confidence:  0.9,
		CreatedAt:   time.Now(),
	}
}

func TestValidateMemoryEntry(t *testing.T) {
	t.Run("valid entry", func(t *testing.T) {
		require.NoError(t, ValidateMemoryEntry(validMemoryEntry()))
	})

	t.Run("nil entry", func(t *testing.T) {
		assert.Error(t, ValidateMemoryEntry(nil))
	})

	t.Run("lead scope without lead id", func(t *testing.T) {
		m := validMemoryEntry()
		m.LeadID = ""
		err := ValidateMemoryEntry(m)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LeadID")
	})

	t.Run("workspace scope without lead id", func(t *testing.T) {
		m := validMemoryEntry()
		m.Scope = MemoryScopeWorkspace
		m.LeadID = ""
		assert.NoError(t, ValidateMemoryEntry(m))
	})

	t.Run("blank content", func(t *testing.T) {
		m := validMemoryEntry()
		m.Content = "   "
		assert.Error(t, ValidateMemoryEntry(m))
	})

	t.Run("invalid status", func(t *testing.T) {
		m := validMemoryEntry()
		m.Status = "archived"
		assert.Error(t, ValidateMemoryEntry(m))
	})
}

func TestMemoryEntry_IsActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m := validMemoryEntry()
	assert.True(t, m.IsActive(now))

	past := now.Add(-time.Hour)
	m.ExpiresAt = &past
	assert.False(t, m.IsActive(now))

	future := now.Add(time.Hour)
	m.ExpiresAt = &future
	assert.True(t, m.IsActive(now))

	m.Status = MemoryStatusPending
	assert.False(t, m.IsActive(now))

	var nilEntry *MemoryEntry
	assert.False(t, nilEntry.IsActive(now))
}
