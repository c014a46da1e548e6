package service

import (
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/draftgate/internal/domain"
)

const verifiedContextInstructions = "service_description, goals and knowledge_context are verified facts supplied by the workspace. " +
	"Treat them as ground truth. Do not report information found there as missing, unverified or hallucinated."

// EvaluatorCase is the conversation state scored by the auto-send evaluator
type EvaluatorCase struct {
	WorkspaceID         string         `json:"workspace_id"`
	LeadID              string         `json:"lead_id"`
	DraftID             string         `json:"draft_id,omitempty"`
	Channel             domain.Channel `json:"channel"`
	Draft               string         `json:"draft"`
	ConversationHistory string         `json:"conversation_history"`
	LatestInbound       string         `json:"latest_inbound,omitempty"`
	LeadName            string         `json:"lead_name,omitempty"`
	LeadCompany         string         `json:"lead_company,omitempty"`
	LeadTimezone        string         `json:"lead_timezone,omitempty"`
	MemoryContext       string         `json:"memory_context,omitempty"`
}

// EvaluatorWorkspaceContext carries the verified workspace facts
type EvaluatorWorkspaceContext struct {
	ServiceDescription string
	Goals              string
	Knowledge          []*domain.KnowledgeItem
}

// EvaluatorInputBudgets holds token budgets per field. Zero means default.
type EvaluatorInputBudgets struct {
	HistoryMaxTokens            int
	ServiceDescriptionMaxTokens int
	GoalsMaxTokens              int
	KnowledgeMaxTokens          int
	KnowledgeMaxTokensPerItem   int
}

// DefaultEvaluatorInputBudgets returns the default field budgets
func DefaultEvaluatorInputBudgets() EvaluatorInputBudgets {
	return EvaluatorInputBudgets{
		HistoryMaxTokens:            2400,
		ServiceDescriptionMaxTokens: 800,
		GoalsMaxTokens:              400,
		KnowledgeMaxTokens:          2400,
		KnowledgeMaxTokensPerItem:   600,
	}
}

func (b EvaluatorInputBudgets) withDefaults() EvaluatorInputBudgets {
	d := DefaultEvaluatorInputBudgets()
	return EvaluatorInputBudgets{
		HistoryMaxTokens:            positiveOr(b.HistoryMaxTokens, d.HistoryMaxTokens),
		ServiceDescriptionMaxTokens: positiveOr(b.ServiceDescriptionMaxTokens, d.ServiceDescriptionMaxTokens),
		GoalsMaxTokens:              positiveOr(b.GoalsMaxTokens, d.GoalsMaxTokens),
		KnowledgeMaxTokens:          positiveOr(b.KnowledgeMaxTokens, d.KnowledgeMaxTokens),
		KnowledgeMaxTokensPerItem:   positiveOr(b.KnowledgeMaxTokensPerItem, d.KnowledgeMaxTokensPerItem),
	}
}

// EvaluatorInputStats reports per-field token estimates
type EvaluatorInputStats struct {
	ConversationHistory TruncatedField `json:"conversation_history"`
	ServiceDescription  TruncatedField `json:"service_description"`
	Goals               TruncatedField `json:"goals"`
	Knowledge           ContextStats   `json:"knowledge"`
	TotalTokens         int            `json:"total_tokens"`
}

type evaluatorPayload struct {
	EvaluatorCase
	ServiceDescription          string `json:"service_description"`
	Goals                       string `json:"goals"`
	KnowledgeContext            string `json:"knowledge_context"`
	VerifiedContextInstructions string `json:"verified_context_instructions"`
}

// BuildEvaluatorInput packages the case and budgeted workspace context into
// the evaluator's JSON input.
func BuildEvaluatorInput(c EvaluatorCase, wc EvaluatorWorkspaceContext, budgets EvaluatorInputBudgets) (json.RawMessage, EvaluatorInputStats, error) {
	budgets = budgets.withDefaults()

	var stats EvaluatorInputStats
	payload := evaluatorPayload{
		EvaluatorCase:               c,
		VerifiedContextInstructions: verifiedContextInstructions,
	}

	payload.ConversationHistory, stats.ConversationHistory = truncateField(c.ConversationHistory, budgets.HistoryMaxTokens, KeepEnd)
	payload.ServiceDescription, stats.ServiceDescription = truncateField(wc.ServiceDescription, budgets.ServiceDescriptionMaxTokens, KeepStart)
	payload.Goals, stats.Goals = truncateField(wc.Goals, budgets.GoalsMaxTokens, KeepStart)
	payload.KnowledgeContext, stats.Knowledge = BuildKnowledgeContext(wc.Knowledge, budgets.KnowledgeMaxTokens, budgets.KnowledgeMaxTokensPerItem)

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, stats, fmt.Errorf("marshal evaluator input: %w", err)
	}
	stats.TotalTokens = EstimateTokens(string(data))

	return data, stats, nil
}
