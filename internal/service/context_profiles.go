package service

import "github.com/cloo-solutions/draftgate/internal/domain"

// ProfileBudget holds the context budgets applied for one context profile.
type ProfileBudget struct {
	KnowledgeAllowed          bool
	KnowledgeMaxTokens        int
	KnowledgeMaxTokensPerItem int
	MemoryMaxTokens           int
	MemoryMaxTokensPerItem    int
}

// Knowledge is only piped into profiles that compose or score outbound copy.
// Gate and parse profiles reason from facts passed to them explicitly.
var contextProfileBudgets = map[domain.ContextProfile]ProfileBudget{
	domain.ContextProfileDraft: {
		KnowledgeAllowed:          true,
		KnowledgeMaxTokens:        4000,
		KnowledgeMaxTokensPerItem: 1000,
		MemoryMaxTokens:           1200,
		MemoryMaxTokensPerItem:    300,
	},
	domain.ContextProfileRevision: {
		KnowledgeAllowed:          true,
		KnowledgeMaxTokens:        3000,
		KnowledgeMaxTokensPerItem: 800,
		MemoryMaxTokens:           1200,
		MemoryMaxTokensPerItem:    300,
	},
	domain.ContextProfileAutoSendEvaluator: {
		KnowledgeAllowed:          true,
		KnowledgeMaxTokens:        2400,
		KnowledgeMaxTokensPerItem: 600,
		MemoryMaxTokens:           800,
		MemoryMaxTokensPerItem:    200,
	},
	domain.ContextProfileMeetingOverseerGate: {
		MemoryMaxTokens:        600,
		MemoryMaxTokensPerItem: 200,
	},
	domain.ContextProfileFollowUpParse: {
		MemoryMaxTokens:        400,
		MemoryMaxTokensPerItem: 200,
	},
	domain.ContextProfileFollowUpBookingGate: {
		MemoryMaxTokens:        600,
		MemoryMaxTokensPerItem: 200,
	},
}

// ResolveProfileBudget returns the default budgets for profile with any
// positive workspace override applied. Overrides never enable knowledge for
// a profile that does not allow it.
func ResolveProfileBudget(profile domain.ContextProfile, overrides map[domain.ContextProfile]domain.ProfileBudgetOverride) (ProfileBudget, error) {
	budget, ok := contextProfileBudgets[profile]
	if !ok {
		return ProfileBudget{}, domain.ErrInvalidContextProfile
	}

	override, ok := overrides[profile]
	if !ok {
		return budget, nil
	}

	if budget.KnowledgeAllowed {
		budget.KnowledgeMaxTokens = positiveOr(override.KnowledgeMaxTokens, budget.KnowledgeMaxTokens)
		budget.KnowledgeMaxTokensPerItem = positiveOr(override.KnowledgeMaxTokensPerItem, budget.KnowledgeMaxTokensPerItem)
	}
	budget.MemoryMaxTokens = positiveOr(override.MemoryMaxTokens, budget.MemoryMaxTokens)
	budget.MemoryMaxTokensPerItem = positiveOr(override.MemoryMaxTokensPerItem, budget.MemoryMaxTokensPerItem)

	return budget, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
