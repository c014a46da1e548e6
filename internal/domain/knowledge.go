package domain

import (
	"fmt"
	"strings"
	"time"
)

// KnowledgeKind represents the type of a workspace knowledge asset
type KnowledgeKind string

const (
	KnowledgeKindText    KnowledgeKind = "text"
	KnowledgeKindURL     KnowledgeKind = "url"
	KnowledgeKindFile    KnowledgeKind = "file"
	KnowledgeKindSnippet KnowledgeKind = "snippet"
)

// PrimaryWebsiteAssetName names the knowledge asset that holds the workspace's
// primary website. It reaches prompts through a dedicated field and is never
// part of generic knowledge context.
const PrimaryWebsiteAssetName = "Primary: Website URL"

// KnowledgeItem is an immutable snapshot of a workspace knowledge asset
type KnowledgeItem struct {
	ID          string
	WorkspaceID string
	Name        string
	Kind        KnowledgeKind
	RawText     string
	LastUpdated time.Time
}

// NewKnowledgeItem creates a new KnowledgeItem instance
func NewKnowledgeItem(id, workspaceID, name string, kind KnowledgeKind, rawText string, lastUpdated time.Time) *KnowledgeItem {
	return &KnowledgeItem{
		ID:          id,
		WorkspaceID: workspaceID,
		Name:        name,
		Kind:        kind,
		RawText:     rawText,
		LastUpdated: lastUpdated,
	}
}

// IsPrimaryWebsite reports whether the item is the primary website asset.
// Names are compared case-insensitively, ignoring surrounding whitespace.
func (k *KnowledgeItem) IsPrimaryWebsite() bool {
	return k != nil && strings.EqualFold(strings.TrimSpace(k.Name), PrimaryWebsiteAssetName)
}

// ValidateKnowledgeItem validates a KnowledgeItem instance
func ValidateKnowledgeItem(k *KnowledgeItem) error {
	if k == nil {
		return fmt.Errorf("knowledge item cannot be nil")
	}

	if k.Name == "" {
		return fmt.Errorf("knowledge item Name is required")
	}

	if !isValidKnowledgeKind(k.Kind) {
		return fmt.Errorf("knowledge item Kind is invalid: %s", k.Kind)
	}

	return nil
}

// isValidKnowledgeKind checks if a KnowledgeKind is valid
func isValidKnowledgeKind(k KnowledgeKind) bool {
	switch k {
	case KnowledgeKindText, KnowledgeKindURL, KnowledgeKindFile, KnowledgeKindSnippet:
		return true
	}
	return false
}
