package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/draftgate/internal/domain"
)

const defaultSelectorLimit = 5

// SelectorRequest describes the draft the selector picks guidance for
type SelectorRequest struct {
	WorkspaceID   string
	LeadID        string
	Channel       domain.Channel
	Draft         string
	LatestInbound string
	Limit         int
}

// SelectorResult is advisory context for the reviser
type SelectorResult struct {
	Selection string   `json:"selection"`
	MemoryIDs []string `json:"memory_ids"`
}

// OptimizationContextSelector picks advisory context for a revision
type OptimizationContextSelector interface {
	Select(ctx context.Context, req SelectorRequest) (*SelectorResult, error)
}

// EmbeddingClientInterface generates embeddings
type EmbeddingClientInterface interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ScoredMemory is a memory entry with its similarity to the query
type ScoredMemory struct {
	Entry      *domain.MemoryEntry
	Similarity float64
}

// MemorySearchRepositoryInterface runs nearest-neighbour search over memory
type MemorySearchRepositoryInterface interface {
	SearchSimilar(ctx context.Context, workspaceID, leadID string, embedding []float32, limit int) ([]*ScoredMemory, error)
}

// MemorySelector picks the approved memory facts closest to the draft and
// the latest inbound message.
type MemorySelector struct {
	embeddings EmbeddingClientInterface
	search     MemorySearchRepositoryInterface
}

// NewMemorySelector creates a new MemorySelector
func NewMemorySelector(embeddings EmbeddingClientInterface, search MemorySearchRepositoryInterface) *MemorySelector {
	return &MemorySelector{embeddings: embeddings, search: search}
}

// Select implements OptimizationContextSelector
func (s *MemorySelector) Select(ctx context.Context, req SelectorRequest) (*SelectorResult, error) {
	query := strings.TrimSpace(req.LatestInbound + "\n\n" + req.Draft)
	if query == "" {
		return &SelectorResult{}, nil
	}

	embedding, err := s.embeddings.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed selector query: %w", err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSelectorLimit
	}

	matches, err := s.search.SearchSimilar(ctx, req.WorkspaceID, req.LeadID, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("search memory: %w", err)
	}

	result := &SelectorResult{MemoryIDs: make([]string, 0, len(matches))}
	var b strings.Builder
	for _, m := range matches {
		if m == nil || m.Entry == nil {
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s (similarity %.2f)\n", m.Entry.Category, RedactContactPII(m.Entry.Content), m.Similarity)
		result.MemoryIDs = append(result.MemoryIDs, m.Entry.ID)
	}
	result.Selection = strings.TrimSuffix(b.String(), "\n")

	return result, nil
}
