package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/cloo-solutions/draftgate/internal/metrics"
	"github.com/cloo-solutions/draftgate/internal/telemetry"
)

// PromptKeyJudgeGate is the prompt used by both judge passes
const PromptKeyJudgeGate = "meeting_overseer.gate.v1"

var judgeSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"decision", "confidence", "issues", "final_draft", "rationale"},
	"properties": map[string]any{
		"decision":    map[string]any{"type": "string", "enum": []string{"approve", "revise"}},
		"confidence":  map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"issues":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"final_draft": map[string]any{"type": []string{"string", "null"}},
		"rationale":   map[string]any{"type": "string"},
	},
}

// JudgeInput is everything the quality gate scores a draft against.
// Availability, extraction and the decision contract are produced upstream.
type JudgeInput struct {
	WorkspaceID         string                   `json:"workspace_id"`
	LeadID              string                   `json:"lead_id"`
	DraftID             string                   `json:"draft_id,omitempty"`
	Channel             domain.Channel           `json:"channel"`
	Draft               string                   `json:"draft"`
	LatestInbound       string                   `json:"latest_inbound,omitempty"`
	ConversationHistory string                   `json:"conversation_history,omitempty"`
	AvailabilitySlots   []string                 `json:"availability_slots,omitempty"`
	Extraction          json.RawMessage          `json:"extraction,omitempty"`
	DecisionContract    *domain.DecisionContract `json:"decision_contract,omitempty"`
	MemoryContext       string                   `json:"memory_context,omitempty"`

	Profile          domain.JudgeProfile `json:"profile,omitempty"`
	Threshold        *float64            `json:"threshold,omitempty"`
	AdjudicationBand *domain.ScoreBand   `json:"adjudication_band,omitempty"`
	TokenBounds      TokenBounds         `json:"-"`
}

// JudgeOutcome is the gate result plus the exogenous inputs it was scored with
type JudgeOutcome struct {
	Score            domain.JudgeScore        `json:"score"`
	SystemPrompt     string                   `json:"system_prompt"`
	DecisionContract *domain.DecisionContract `json:"decision_contract,omitempty"`
	Decision         domain.JudgeDecision     `json:"decision"`
	FinalDraft       *string                  `json:"final_draft"`
	Confidence       float64                  `json:"confidence"`
	Model            string                   `json:"model"`
}

// JudgeConfig controls the quality gate
type JudgeConfig struct {
	Model               string
	Profile             domain.JudgeProfile
	AdjudicationEnabled bool
	AdjudicationBand    domain.ScoreBand
}

// DefaultJudgeConfig returns the default judge configuration
func DefaultJudgeConfig() JudgeConfig {
	return JudgeConfig{
		Profile:             domain.JudgeProfileBalanced,
		AdjudicationEnabled: true,
		AdjudicationBand:    domain.ScoreBand{Min: defaultBandMin, Max: defaultBandMax},
	}
}

// JudgeService runs the two-pass quality gate
type JudgeService struct {
	runner  StructuredRunner
	cfg     JudgeConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewJudgeService creates a new JudgeService
func NewJudgeService(runner StructuredRunner, cfg JudgeConfig, m *metrics.Metrics, logger *zap.Logger) *JudgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JudgeService{
		runner:  runner,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

type judgeRequest struct {
	*JudgeInput
	BorderlineReview bool `json:"borderline_review,omitempty"`
}

// Evaluate scores the draft. An invalid primary payload fails the call;
// a failed adjudicator pass falls back to the primary result.
func (s *JudgeService) Evaluate(ctx context.Context, input JudgeInput) (*JudgeOutcome, error) {
	if strings.TrimSpace(input.Draft) == "" {
		return nil, domain.ErrMissingRequiredField.WithCause(errors.New("draft"))
	}

	ctx, span := telemetry.StartSpan(ctx, "JudgeService.Evaluate", telemetry.SpanAttributes{
		WorkspaceID: input.WorkspaceID,
		LeadID:      input.LeadID,
		DraftID:     input.DraftID,
		Operation:   "judge",
	})
	defer span.End()

	profile := input.Profile
	if profile == "" {
		profile = s.cfg.Profile
	}
	threshold := resolveJudgeThreshold(profile, input.Threshold)

	band := input.AdjudicationBand
	if band == nil && (s.cfg.AdjudicationBand != domain.ScoreBand{}) {
		band = &s.cfg.AdjudicationBand
	}
	resolvedBand := resolveAdjudicationBand(band)

	budget := judgeTokenBudget(estimateJudgeInputTokens(input), input.TokenBounds)

	primary, res, err := s.runPass(ctx, &input, budget, false)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	scoreJudgePass(primary, threshold)

	score := primaryScore(primary, threshold, resolvedBand)
	model := res.Model

	if s.cfg.AdjudicationEnabled && resolvedBand.Contains(primary.overall) {
		adjudicator, adjRes, err := s.runPass(ctx, &input, budget, true)
		if err != nil {
			s.logger.Warn("judge adjudication failed, using primary result",
				zap.String("draft_id", input.DraftID),
				zap.Float64("primary_score", primary.overall),
				zap.Error(err),
			)
		} else {
			scoreJudgePass(adjudicator, threshold)
			score = blendScores(primary, adjudicator, threshold, resolvedBand)
			if primary.finalDraft == nil {
				primary.finalDraft = adjudicator.finalDraft
			}
			model = firstNonEmpty(adjRes.Model, model)
		}
	}

	s.metrics.RecordJudge(score.Pass, score.Adjudicated, score.OverallScore)

	return &JudgeOutcome{
		Score:            score,
		SystemPrompt:     res.SystemPrompt,
		DecisionContract: input.DecisionContract,
		Decision:         primary.decision,
		FinalDraft:       primary.finalDraft,
		Confidence:       score.Confidence,
		Model:            model,
	}, nil
}

func (s *JudgeService) runPass(ctx context.Context, input *JudgeInput, budget TokenBudget, borderline bool) (*judgePassResult, StructuredResult, error) {
	payload, err := json.Marshal(judgeRequest{JudgeInput: input, BorderlineReview: borderline})
	if err != nil {
		return nil, StructuredResult{}, fmt.Errorf("marshal judge input: %w", err)
	}

	reviewMode := "primary"
	if borderline {
		reviewMode = "borderline_review"
	}

	res := s.runner.Run(ctx, StructuredPrompt{
		PromptKey: PromptKeyJudgeGate,
		Model:     s.cfg.Model,
		Variables: map[string]string{
			"channel":     string(input.Channel),
			"review_mode": reviewMode,
		},
		Input:      string(payload),
		SchemaName: "meeting_overseer_gate",
		Schema:     judgeSchema,
		Budget:     budget,
		Validate: func(data json.RawMessage) error {
			_, err := parseJudgePayload(data)
			return err
		},
	})
	if !res.Success {
		var serr *StructuredError
		if errors.As(res.Err, &serr) && (serr.Kind == StructuredErrorValidation || serr.Kind == StructuredErrorParse) {
			return nil, res, domain.ErrInvalidJudgePayload.WithCause(res.Err)
		}
		return nil, res, domain.ErrStructuredRunFailed.WithCause(res.Err)
	}

	pass, err := parseJudgePayload(res.Data)
	if err != nil {
		return nil, res, err
	}
	return pass, res, nil
}

func estimateJudgeInputTokens(input JudgeInput) int {
	total := EstimateTokens(input.Draft) +
		EstimateTokens(input.MemoryContext) +
		EstimateTokens(input.LatestInbound) +
		EstimateTokens(input.ConversationHistory) +
		EstimateTokens(strings.Join(input.AvailabilitySlots, "\n")) +
		EstimateTokens(string(input.Extraction))
	if input.DecisionContract != nil {
		if b, err := json.Marshal(input.DecisionContract); err == nil {
			total += EstimateTokens(string(b))
		}
	}
	return total
}

type judgePayload struct {
	Decision   *string         `json:"decision"`
	Confidence *float64        `json:"confidence"`
	Issues     []string        `json:"issues"`
	FinalDraft json.RawMessage `json:"final_draft"`
	Rationale  *string         `json:"rationale"`
}

// parseJudgePayload strictly validates a judge response. Nothing is coerced.
func parseJudgePayload(data json.RawMessage) (*judgePassResult, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, domain.ErrInvalidJudgePayload.WithCause(err)
	}
	for _, field := range []string{"decision", "confidence", "issues", "final_draft", "rationale"} {
		if _, ok := raw[field]; !ok {
			return nil, domain.ErrInvalidJudgePayload.WithCause(fmt.Errorf("missing field %q", field))
		}
	}
	if string(raw["issues"]) == "null" {
		return nil, domain.ErrInvalidJudgePayload.WithCause(errors.New("issues must be an array"))
	}

	var p judgePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, domain.ErrInvalidJudgePayload.WithCause(err)
	}

	if p.Decision == nil {
		return nil, domain.ErrInvalidJudgePayload.WithCause(errors.New("decision must be a string"))
	}
	decision := domain.JudgeDecision(*p.Decision)
	if decision != domain.JudgeDecisionApprove && decision != domain.JudgeDecisionRevise {
		return nil, domain.ErrInvalidJudgePayload.WithCause(fmt.Errorf("decision %q not in {approve, revise}", *p.Decision))
	}
	if p.Confidence == nil || !domain.IsUnitInterval(*p.Confidence) {
		return nil, domain.ErrInvalidJudgePayload.WithCause(errors.New("confidence must be a number in [0,1]"))
	}
	if p.Rationale == nil {
		return nil, domain.ErrInvalidJudgePayload.WithCause(errors.New("rationale must be a string"))
	}

	var finalDraft *string
	if string(p.FinalDraft) != "null" {
		var s string
		if err := json.Unmarshal(p.FinalDraft, &s); err != nil {
			return nil, domain.ErrInvalidJudgePayload.WithCause(errors.New("final_draft must be a string or null"))
		}
		finalDraft = &s
	}

	return &judgePassResult{
		decision:   decision,
		confidence: *p.Confidence,
		issues:     p.Issues,
		finalDraft: finalDraft,
		rationale:  *p.Rationale,
	}, nil
}
