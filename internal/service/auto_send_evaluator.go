package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/cloo-solutions/draftgate/internal/telemetry"
)

// PromptKeyAutoSendEvaluate is the prompt used to score drafts
const PromptKeyAutoSendEvaluate = "auto_send.evaluate.v1"

var evaluationSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"confidence", "safe_to_send", "requires_human_review", "reason"},
	"properties": map[string]any{
		"confidence":            map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"safe_to_send":          map[string]any{"type": "boolean"},
		"requires_human_review": map[string]any{"type": "boolean"},
		"reason":                map[string]any{"type": "string"},
	},
}

// AutoSendEvaluatorConfig controls the evaluator
type AutoSendEvaluatorConfig struct {
	Model   string
	Budgets EvaluatorInputBudgets
}

// AutoSendEvaluator scores whether a draft is safe to send without review
type AutoSendEvaluator struct {
	runner     StructuredRunner
	knowledge  KnowledgeRepositoryInterface
	memory     MemoryReaderInterface
	workspaces WorkspaceRepositoryInterface
	cfg        AutoSendEvaluatorConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewAutoSendEvaluator creates a new AutoSendEvaluator
func NewAutoSendEvaluator(
	runner StructuredRunner,
	knowledge KnowledgeRepositoryInterface,
	memory MemoryReaderInterface,
	workspaces WorkspaceRepositoryInterface,
	cfg AutoSendEvaluatorConfig,
	logger *zap.Logger,
) *AutoSendEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoSendEvaluator{
		runner:     runner,
		knowledge:  knowledge,
		memory:     memory,
		workspaces: workspaces,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Evaluate scores the case's draft
func (e *AutoSendEvaluator) Evaluate(ctx context.Context, c EvaluatorCase) (*domain.EvaluationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "AutoSendEvaluator.Evaluate", telemetry.SpanAttributes{
		WorkspaceID: c.WorkspaceID,
		LeadID:      c.LeadID,
		DraftID:     c.DraftID,
		Operation:   "evaluate",
	})
	defer span.End()

	input, stats, err := e.buildInput(ctx, c)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	e.logger.Debug("evaluator input built",
		zap.String("draft_id", c.DraftID),
		zap.Int("total_tokens", stats.TotalTokens),
		zap.Int("knowledge_tokens", stats.Knowledge.IncludedTokensEstimated),
		zap.Bool("history_truncated", stats.ConversationHistory.Truncated),
	)

	res := e.runner.Run(ctx, StructuredPrompt{
		PromptKey:  PromptKeyAutoSendEvaluate,
		Model:      e.cfg.Model,
		Variables:  map[string]string{"channel": string(c.Channel)},
		Input:      string(input),
		SchemaName: "auto_send_evaluation",
		Schema:     evaluationSchema,
		Budget:     TokenBudget{Min: 200, Max: 600, RetryMax: 1200},
		Validate: func(data json.RawMessage) error {
			_, err := parseEvaluation(data)
			return err
		},
	})
	if !res.Success {
		span.SetError(res.Err)
		return nil, domain.ErrStructuredRunFailed.WithCause(res.Err)
	}

	return parseEvaluation(res.Data)
}

// reEvaluator returns a function scoring alternate draft text for the same case
func reEvaluator(evaluator CaseEvaluatorInterface, c EvaluatorCase) func(ctx context.Context, draft string) (*domain.EvaluationResult, error) {
	return func(ctx context.Context, draft string) (*domain.EvaluationResult, error) {
		next := c
		next.Draft = draft
		return evaluator.Evaluate(ctx, next)
	}
}

func (e *AutoSendEvaluator) buildInput(ctx context.Context, c EvaluatorCase) (json.RawMessage, EvaluatorInputStats, error) {
	settings, err := e.workspaces.GetSettings(ctx, c.WorkspaceID)
	if err != nil {
		if !errors.Is(err, domain.ErrWorkspaceNotFound) {
			return nil, EvaluatorInputStats{}, fmt.Errorf("load workspace settings: %w", err)
		}
		settings = &domain.WorkspaceSettings{WorkspaceID: c.WorkspaceID}
	}

	profile, err := ResolveProfileBudget(domain.ContextProfileAutoSendEvaluator, settings.ContextBudgets)
	if err != nil {
		return nil, EvaluatorInputStats{}, err
	}

	budgets := e.cfg.Budgets
	if budgets.KnowledgeMaxTokens == 0 {
		budgets.KnowledgeMaxTokens = profile.KnowledgeMaxTokens
		budgets.KnowledgeMaxTokensPerItem = profile.KnowledgeMaxTokensPerItem
	}

	items, err := e.knowledge.ListByWorkspace(ctx, c.WorkspaceID)
	if err != nil {
		return nil, EvaluatorInputStats{}, fmt.Errorf("list knowledge: %w", err)
	}

	if c.MemoryContext == "" && c.LeadID != "" {
		entries, err := e.memory.ListActive(ctx, c.WorkspaceID, c.LeadID, e.now())
		if err != nil {
			return nil, EvaluatorInputStats{}, fmt.Errorf("list memory: %w", err)
		}
		c.MemoryContext, _ = BuildMemoryContext(entries, profile.MemoryMaxTokens, profile.MemoryMaxTokensPerItem, domain.ContextProfileAutoSendEvaluator)
	}

	return BuildEvaluatorInput(c, EvaluatorWorkspaceContext{
		ServiceDescription: settings.ServiceDescription,
		Goals:              settings.Goals,
		Knowledge:          items,
	}, budgets)
}

type evaluationPayload struct {
	Confidence          *float64 `json:"confidence"`
	SafeToSend          *bool    `json:"safe_to_send"`
	RequiresHumanReview *bool    `json:"requires_human_review"`
	Reason              *string  `json:"reason"`
}

// parseEvaluation strictly decodes an evaluator response
func parseEvaluation(data json.RawMessage) (*domain.EvaluationResult, error) {
	var p evaluationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, domain.ErrInvalidEvaluation.WithCause(err)
	}

	var missing []string
	if p.Confidence == nil {
		missing = append(missing, "confidence")
	}
	if p.SafeToSend == nil {
		missing = append(missing, "safe_to_send")
	}
	if p.RequiresHumanReview == nil {
		missing = append(missing, "requires_human_review")
	}
	if p.Reason == nil {
		missing = append(missing, "reason")
	}
	if len(missing) > 0 {
		return nil, domain.ErrInvalidEvaluation.WithCause(fmt.Errorf("missing fields: %s", strings.Join(missing, ", ")))
	}

	result := &domain.EvaluationResult{
		Confidence:          *p.Confidence,
		SafeToSend:          *p.SafeToSend,
		RequiresHumanReview: *p.RequiresHumanReview,
		Reason:              *p.Reason,
	}
	if err := domain.ValidateEvaluationResult(result); err != nil {
		return nil, domain.ErrInvalidEvaluation.WithCause(err)
	}
	return result, nil
}
