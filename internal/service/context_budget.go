package service

import (
	"sort"
	"strings"

	"github.com/cloo-solutions/draftgate/internal/domain"
)

const contextItemSeparator = "\n\n"

// ContextItemStats records how one candidate fared during assembly.
type ContextItemStats struct {
	Name           string `json:"name"`
	OriginalTokens int    `json:"original_tokens"`
	IncludedTokens int    `json:"included_tokens"`
	Truncated      bool   `json:"truncated"`
	Skipped        bool   `json:"skipped"`
}

// ContextStats summarises a budgeted context assembly.
type ContextStats struct {
	MaxTokens               int                `json:"max_tokens"`
	MaxTokensPerItem        int                `json:"max_tokens_per_item"`
	TotalItems              int                `json:"total_items"`
	TotalBytes              int                `json:"total_bytes"`
	TotalTokensEstimated    int                `json:"total_tokens_estimated"`
	IncludedItems           int                `json:"included_items"`
	IncludedBytes           int                `json:"included_bytes"`
	IncludedTokensEstimated int                `json:"included_tokens_estimated"`
	TruncatedItems          int                `json:"truncated_items"`
	Items                   []ContextItemStats `json:"items"`
}

type contextCandidate struct {
	name   string
	header string
	body   string
}

// BuildKnowledgeContext assembles knowledge items, most recently updated first,
// into a block whose estimated size never exceeds maxTokens. The primary
// website item and items with an empty body are not candidates.
func BuildKnowledgeContext(items []*domain.KnowledgeItem, maxTokens, maxTokensPerItem int) (string, ContextStats) {
	eligible := make([]*domain.KnowledgeItem, 0, len(items))
	for _, item := range items {
		if item == nil || item.IsPrimaryWebsite() || strings.TrimSpace(item.RawText) == "" {
			continue
		}
		eligible = append(eligible, item)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].LastUpdated.After(eligible[j].LastUpdated)
	})

	candidates := make([]contextCandidate, len(eligible))
	for i, item := range eligible {
		candidates[i] = contextCandidate{
			name:   item.Name,
			header: "[" + item.Name + "]\n",
			body:   strings.TrimSpace(item.RawText),
		}
	}

	return assembleContext(candidates, maxTokens, maxTokensPerItem)
}

// BuildMemoryContext assembles memory entries, newest first, with the same
// budget rules as BuildKnowledgeContext. For every profile except draft,
// contact details are redacted before anything is counted.
func BuildMemoryContext(entries []*domain.MemoryEntry, maxTokens, maxTokensPerItem int, profile domain.ContextProfile) (string, ContextStats) {
	eligible := make([]*domain.MemoryEntry, 0, len(entries))
	for _, entry := range entries {
		if entry == nil || strings.TrimSpace(entry.Content) == "" {
			continue
		}
		eligible = append(eligible, entry)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].CreatedAt.After(eligible[j].CreatedAt)
	})

	redact := !profileSeesRawPII(profile)
	candidates := make([]contextCandidate, len(eligible))
	for i, entry := range eligible {
		body := strings.TrimSpace(entry.Content)
		if redact {
			body = RedactContactPII(body)
		}
		label := entry.Category + " · " + entry.CreatedAt.UTC().Format("2006-01-02")
		candidates[i] = contextCandidate{
			name:   label,
			header: "[" + label + "]\n",
			body:   body,
		}
	}

	return assembleContext(candidates, maxTokens, maxTokensPerItem)
}

// assembleContext is the shared greedy budget walk. Header cost is charged
// before the body; an item whose header does not fit is skipped whole.
func assembleContext(candidates []contextCandidate, maxTokens, maxTokensPerItem int) (string, ContextStats) {
	if maxTokensPerItem <= 0 || maxTokensPerItem > maxTokens {
		maxTokensPerItem = maxTokens
	}

	stats := ContextStats{
		MaxTokens:        maxTokens,
		MaxTokensPerItem: maxTokensPerItem,
		TotalItems:       len(candidates),
		Items:            make([]ContextItemStats, 0, len(candidates)),
	}

	var b strings.Builder
	remaining := maxTokens

	for _, c := range candidates {
		full := c.header + c.body
		stats.TotalBytes += len(full)
		stats.TotalTokensEstimated += EstimateTokens(full)

		item := ContextItemStats{
			Name:           c.name,
			OriginalTokens: EstimateTokens(c.body),
		}

		if remaining <= 0 {
			item.Skipped = true
			stats.Items = append(stats.Items, item)
			continue
		}

		header := c.header
		if b.Len() > 0 {
			header = contextItemSeparator + header
		}
		headerCost := EstimateTokens(header)

		bodyBudget := min(maxTokensPerItem, remaining-headerCost)
		if bodyBudget <= 0 {
			item.Skipped = true
			stats.Items = append(stats.Items, item)
			continue
		}

		body := TruncateToTokens(c.body, bodyBudget, KeepStart)
		item.IncludedTokens = EstimateTokens(body)
		item.Truncated = body != c.body
		if item.Truncated {
			stats.TruncatedItems++
		}

		b.WriteString(header)
		b.WriteString(body)
		remaining -= headerCost + item.IncludedTokens
		stats.IncludedItems++
		stats.Items = append(stats.Items, item)
	}

	text := b.String()
	stats.IncludedBytes = len(text)
	stats.IncludedTokensEstimated = EstimateTokens(text)
	return text, stats
}
