package domain

// ContextProfile names a consumer of lead context; each profile has its own
// token budgets and knowledge eligibility.
type ContextProfile string

const (
	ContextProfileDraft               ContextProfile = "draft"
	ContextProfileRevision            ContextProfile = "revision"
	ContextProfileAutoSendEvaluator   ContextProfile = "auto_send_evaluator"
	ContextProfileMeetingOverseerGate ContextProfile = "meeting_overseer_gate"
	ContextProfileFollowUpParse       ContextProfile = "followup_parse"
	ContextProfileFollowUpBookingGate ContextProfile = "followup_booking_gate"
)

// ProfileBudgetOverride overrides the default budgets of a context profile.
// Zero values keep the default.
type ProfileBudgetOverride struct {
	KnowledgeMaxTokens        int `json:"knowledge_max_tokens,omitempty"`
	KnowledgeMaxTokensPerItem int `json:"knowledge_max_tokens_per_item,omitempty"`
	MemoryMaxTokens           int `json:"memory_max_tokens,omitempty"`
	MemoryMaxTokensPerItem    int `json:"memory_max_tokens_per_item,omitempty"`
}

// WorkspaceSettings holds the per-workspace inputs of the pipeline
type WorkspaceSettings struct {
	WorkspaceID             string
	ServiceDescription      string
	Goals                   string
	MemoryAllowedCategories []string
	MemoryMinConfidence     *float64
	MemoryMinTTLDays        *int
	MemoryMaxTTLDays        *int
	ContextBudgets          map[ContextProfile]ProfileBudgetOverride
}

// IsValidContextProfile checks if a ContextProfile is valid
func IsValidContextProfile(p ContextProfile) bool {
	switch p {
	case ContextProfileDraft, ContextProfileRevision, ContextProfileAutoSendEvaluator,
		ContextProfileMeetingOverseerGate, ContextProfileFollowUpParse, ContextProfileFollowUpBookingGate:
		return true
	}
	return false
}
