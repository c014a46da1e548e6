package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/cloo-solutions/draftgate/internal/metrics"
	"github.com/cloo-solutions/draftgate/internal/telemetry"
)

// PromptKeyRevise is the prompt used to revise a draft
const PromptKeyRevise = "auto_send.revise.v1"

const revisionEllipsis = "…"

// channelCharLimits caps revised drafts per channel
var channelCharLimits = map[domain.Channel]int{
	domain.ChannelSMS:      480,
	domain.ChannelLinkedIn: 1800,
	domain.ChannelEmail:    5000,
}

var revisionSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required": []string{
		"revised_draft", "changes_made", "issues_addressed",
		"unresolved_requirements", "confidence", "memory_proposals",
	},
	"properties": map[string]any{
		"revised_draft":           map[string]any{"type": "string"},
		"changes_made":            map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"issues_addressed":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"unresolved_requirements": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"confidence":              map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"memory_proposals": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"scope", "category", "content", "ttl_days", "confidence"},
				"properties": map[string]any{
					"scope":      map[string]any{"type": "string", "enum": []string{"lead", "workspace"}},
					"category":   map[string]any{"type": "string"},
					"content":    map[string]any{"type": "string"},
					"ttl_days":   map[string]any{"type": "integer"},
					"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				},
			},
		},
	},
}

// DraftRepositoryInterface holds the conditional draft updates of a revision.
// Both methods only match rows whose status is still pending.
type DraftRepositoryInterface interface {
	ClaimRevision(ctx context.Context, draftID string, at time.Time) (bool, error)
	ApplyRevision(ctx context.Context, draftID, content string, confidence float64) (bool, error)
}

// LeadContextBuilderInterface assembles a lead context bundle
type LeadContextBuilderInterface interface {
	Build(ctx context.Context, req LeadContextRequest) (*LeadContextBundle, error)
}

// RevisionConstraints are hard requirements passed to the reviser verbatim
type RevisionConstraints struct {
	RequiredContent  []string `json:"required_content,omitempty"`
	ForbiddenContent []string `json:"forbidden_content,omitempty"`
	OfferedSlots     []string `json:"offered_slots,omitempty"`
	BookingLinks     []string `json:"booking_links,omitempty"`
	CurrentDay       string   `json:"current_day,omitempty"`
	LeadTimezone     string   `json:"lead_timezone,omitempty"`
}

// RevisionInput is one revision attempt for a draft
type RevisionInput struct {
	RunID               string
	Iteration           int
	Draft               *domain.Draft
	Evaluation          *domain.EvaluationResult
	Threshold           float64
	Timeout             time.Duration
	ConversationHistory string
	LatestInbound       string
	Constraints         RevisionConstraints
	JudgeFeedback       *domain.JudgeScore

	// ReEvaluate scores revised text with the evaluator that produced Evaluation.
	ReEvaluate func(ctx context.Context, draft string) (*domain.EvaluationResult, error)
	// Validate optionally checks revised text against hard constraints.
	Validate func(ctx context.Context, draft string) error
}

// RevisionTelemetry describes what a revision attempt did
type RevisionTelemetry struct {
	Attempted          bool     `json:"attempted"`
	SelectorUsed       bool     `json:"selector_used"`
	Improved           bool     `json:"improved"`
	OriginalConfidence float64  `json:"original_confidence"`
	RevisedConfidence  *float64 `json:"revised_confidence"`
	Threshold          float64  `json:"threshold"`
	ValidationPassed   *bool    `json:"validation_passed,omitempty"`
	ValidationReasons  []string `json:"validation_reasons,omitempty"`
	Applied            bool     `json:"applied"`
	RunID              string   `json:"run_id"`
	Iteration          int      `json:"iteration"`
}

// RevisionOutcome is the result of Revise
type RevisionOutcome struct {
	RevisedDraft      *string                  `json:"revised_draft"`
	RevisedEvaluation *domain.EvaluationResult `json:"revised_evaluation"`
	Telemetry         RevisionTelemetry        `json:"telemetry"`
}

// RevisionConfig controls the revision orchestrator
type RevisionConfig struct {
	Disabled        bool
	Model           string
	Timeout         time.Duration
	SelectorTimeout time.Duration
	ContextTimeout  time.Duration
	MemoryPolicy    MemoryPolicy
}

// DefaultRevisionConfig returns the default orchestrator configuration
func DefaultRevisionConfig() RevisionConfig {
	return RevisionConfig{
		Timeout:         45 * time.Second,
		SelectorTimeout: 8 * time.Second,
		ContextTimeout:  5 * time.Second,
		MemoryPolicy:    DefaultMemoryPolicy(),
	}
}

// RevisionService runs the bounded, resumable revision of a draft
type RevisionService struct {
	runner      StructuredRunner
	drafts      DraftRepositoryInterface
	artifacts   *ArtifactRecorder
	leadContext LeadContextBuilderInterface
	selector    OptimizationContextSelector
	workspaces  WorkspaceRepositoryInterface
	txRunner    TxRunner
	cfg         RevisionConfig
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// RevisionDeps are the collaborators of RevisionService.
// LeadContext and Selector are optional.
type RevisionDeps struct {
	Runner      StructuredRunner
	Drafts      DraftRepositoryInterface
	Artifacts   ArtifactRepositoryInterface
	LeadContext LeadContextBuilderInterface
	Selector    OptimizationContextSelector
	Workspaces  WorkspaceRepositoryInterface
	TxRunner    TxRunner
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// NewRevisionService creates a new RevisionService
func NewRevisionService(deps RevisionDeps, cfg RevisionConfig) *RevisionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevisionService{
		runner:      deps.Runner,
		drafts:      deps.Drafts,
		artifacts:   NewArtifactRecorder(deps.Artifacts, logger),
		leadContext: deps.LeadContext,
		selector:    deps.Selector,
		workspaces:  deps.Workspaces,
		txRunner:    deps.TxRunner,
		cfg:         cfg,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// revisionPayload is the validated reviser response
type revisionPayload struct {
	RevisedDraft           string                  `json:"revised_draft"`
	ChangesMade            []string                `json:"changes_made"`
	IssuesAddressed        []string                `json:"issues_addressed"`
	UnresolvedRequirements []string                `json:"unresolved_requirements"`
	Confidence             float64                 `json:"confidence"`
	MemoryProposals        []domain.MemoryProposal `json:"memory_proposals"`
}

// evaluationArtifact is the payload of the evaluation stage, enough to
// replay the decision without calling the evaluator again.
type evaluationArtifact struct {
	Evaluation        *domain.EvaluationResult `json:"evaluation"`
	Improved          bool                     `json:"improved"`
	ValidationPassed  bool                     `json:"validation_passed"`
	ValidationReasons []string                 `json:"validation_reasons,omitempty"`
	Applied           bool                     `json:"applied"`
}

type loopErrorArtifact struct {
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

// Revise attempts one revision of a draft that scored below threshold.
// Only a deadline error is returned; it comes with an outcome whose
// telemetry reports the attempt as not improved.
func (s *RevisionService) Revise(ctx context.Context, in RevisionInput) (*RevisionOutcome, error) {
	if in.Draft == nil || in.Evaluation == nil || in.ReEvaluate == nil {
		return nil, domain.ErrMissingRequiredField.WithCause(errors.New("draft, evaluation and re-evaluator are required"))
	}
	if in.RunID == "" {
		in.RunID = uuid.New().String()
	}

	timeout := in.Timeout
	if timeout <= 0 {
		timeout = s.cfg.Timeout
	}
	start := time.Now()
	deadline := start.Add(clampRevisionTimeout(timeout))

	ctx, span := telemetry.StartSpan(ctx, "RevisionService.Revise", telemetry.SpanAttributes{
		WorkspaceID: in.Draft.WorkspaceID,
		LeadID:      in.Draft.LeadID,
		DraftID:     in.Draft.ID,
		RunID:       in.RunID,
		Operation:   "revise",
	})
	defer span.End()

	logger := s.logger.With(
		zap.String("draft_id", in.Draft.ID),
		zap.String("run_id", in.RunID),
		zap.Int("iteration", in.Iteration),
	)

	out := &RevisionOutcome{Telemetry: RevisionTelemetry{
		OriginalConfidence: in.Evaluation.Confidence,
		Threshold:          in.Threshold,
		RunID:              in.RunID,
		Iteration:          in.Iteration,
	}}

	outcome, err := s.revise(ctx, in, deadline, out, logger)
	s.metrics.RecordRevision(string(in.Draft.Channel), outcomeLabel(outcome, err), time.Since(start))
	if err != nil {
		span.SetError(err)
		logger.Warn("revision aborted", zap.Error(err))
		out.Telemetry.Improved = false
		out.Telemetry.Applied = false
		return out, err
	}
	return outcome, nil
}

func (s *RevisionService) revise(ctx context.Context, in RevisionInput, deadline time.Time, out *RevisionOutcome, logger *zap.Logger) (*RevisionOutcome, error) {
	switch {
	case s.cfg.Disabled:
		logger.Debug("revision skipped: kill switch set")
		return out, nil
	case in.Evaluation.IsHardBlock():
		logger.Debug("revision skipped: hard block", zap.String("code", in.Evaluation.HardBlockCode))
		return out, nil
	case in.Evaluation.Confidence >= in.Threshold:
		return out, nil
	}

	claimed, err := awaitWithDeadline(ctx, deadline, "claim", func(ctx context.Context) (bool, error) {
		return s.drafts.ClaimRevision(ctx, in.Draft.ID, s.now())
	})
	if errors.Is(err, ErrDeadlineExceeded) {
		return out, err
	}
	if err != nil {
		logger.Warn("revision claim failed, not attempting", zap.Error(err))
		return out, nil
	}
	if !claimed && in.Iteration == 0 {
		logger.Debug("revision already claimed")
		return out, nil
	}

	out.Telemetry.Attempted = true
	s.artifacts.RecordJSON(ctx, in.RunID, domain.ArtifactStageInputEvaluation, in.Iteration, in.Evaluation, artifactMeta{Text: in.Draft.Content})

	if in.Iteration > 0 {
		if _, ok := s.artifacts.Lookup(ctx, in.RunID, domain.ArtifactStageLoopError, in.Iteration); ok {
			logger.Info("revision iteration previously failed, not retrying")
			out.Telemetry.Attempted = false
			return out, nil
		}
		if cached, ok := s.replayCached(ctx, in, deadline, out, logger); ok {
			return cached, nil
		}
	}

	workspace := s.loadWorkspace(ctx, in.Draft.WorkspaceID, logger)

	bundle, err := s.buildLeadContext(ctx, in, deadline, logger)
	if err != nil {
		return nil, err
	}

	pack := s.buildContextPack(ctx, in, logger)

	selection, err := s.selectContext(ctx, in, deadline, logger)
	if err != nil {
		return nil, err
	}
	out.Telemetry.SelectorUsed = selection != nil && selection.Selection != ""

	payload, res, err := s.runReviser(ctx, in, deadline, bundle, pack, selection)
	if err != nil {
		if errors.Is(err, ErrDeadlineExceeded) {
			return nil, err
		}
		s.recordLoopError(ctx, in, "reviser_failed", err)
		logger.Warn("reviser produced no usable draft", zap.Error(err))
		return out, nil
	}

	revised := trimToChannel(payload.RevisedDraft, in.Draft.Channel)
	s.artifacts.RecordJSON(ctx, in.RunID, domain.ArtifactStageReviser, in.Iteration, payload, artifactMeta{
		Text:      revised,
		Model:     res.Model,
		PromptKey: PromptKeyRevise,
	})
	if revised == "" {
		s.recordLoopError(ctx, in, "empty_revised_draft", nil)
		return out, nil
	}

	revisedEval, err := awaitWithDeadline(ctx, deadline, "re-evaluation", func(ctx context.Context) (*domain.EvaluationResult, error) {
		return in.ReEvaluate(ctx, revised)
	})
	if err != nil {
		if errors.Is(err, ErrDeadlineExceeded) {
			return nil, err
		}
		s.recordLoopError(ctx, in, "re_evaluation_failed", err)
		logger.Warn("re-evaluation failed", zap.Error(err))
		return out, nil
	}
	if err := domain.ValidateEvaluationResult(revisedEval); err != nil {
		s.recordLoopError(ctx, in, "re_evaluation_invalid", err)
		return out, nil
	}

	passed, reasons, err := s.validate(ctx, in, deadline, payload, revised)
	if err != nil {
		return nil, err
	}

	improved := (revisedEval.Confidence > in.Evaluation.Confidence || revisedEval.Confidence >= in.Threshold) && passed

	out.RevisedDraft = &revised
	out.RevisedEvaluation = revisedEval
	out.Telemetry.RevisedConfidence = &revisedEval.Confidence
	out.Telemetry.ValidationPassed = &passed
	out.Telemetry.ValidationReasons = reasons
	out.Telemetry.Improved = improved

	if improved {
		applied, err := s.applyRevision(ctx, in, deadline, revised, revisedEval.Confidence)
		if err != nil {
			if errors.Is(err, ErrDeadlineExceeded) {
				return nil, err
			}
			logger.Warn("apply revision failed", zap.Error(err))
		}
		out.Telemetry.Applied = applied
	}

	s.artifacts.RecordJSON(ctx, in.RunID, domain.ArtifactStageEvaluation, in.Iteration, evaluationArtifact{
		Evaluation:        revisedEval,
		Improved:          improved,
		ValidationPassed:  passed,
		ValidationReasons: reasons,
		Applied:           out.Telemetry.Applied,
	}, artifactMeta{Text: revised})

	s.governMemory(ctx, in, workspace, payload.MemoryProposals, logger)

	return out, nil
}

// replayCached reuses reviser and evaluation artifacts of this iteration
func (s *RevisionService) replayCached(ctx context.Context, in RevisionInput, deadline time.Time, out *RevisionOutcome, logger *zap.Logger) (*RevisionOutcome, bool) {
	reviser, ok := s.artifacts.Lookup(ctx, in.RunID, domain.ArtifactStageReviser, in.Iteration)
	if !ok || strings.TrimSpace(reviser.Text) == "" {
		return nil, false
	}
	evalArtifact, ok := s.artifacts.Lookup(ctx, in.RunID, domain.ArtifactStageEvaluation, in.Iteration)
	if !ok {
		return nil, false
	}

	var cached evaluationArtifact
	if err := json.Unmarshal(evalArtifact.Payload, &cached); err != nil || domain.ValidateEvaluationResult(cached.Evaluation) != nil {
		logger.Warn("cached evaluation artifact unusable, recomputing")
		return nil, false
	}

	revised := reviser.Text
	out.RevisedDraft = &revised
	out.RevisedEvaluation = cached.Evaluation
	out.Telemetry.RevisedConfidence = &cached.Evaluation.Confidence
	out.Telemetry.ValidationPassed = &cached.ValidationPassed
	out.Telemetry.ValidationReasons = cached.ValidationReasons
	out.Telemetry.Improved = cached.Improved

	if cached.Improved {
		applied, err := s.applyRevision(ctx, in, deadline, revised, cached.Evaluation.Confidence)
		if err != nil {
			logger.Warn("apply cached revision failed", zap.Error(err))
		}
		out.Telemetry.Applied = applied || cached.Applied
	}

	logger.Info("revision replayed from artifacts")
	return out, true
}

func (s *RevisionService) loadWorkspace(ctx context.Context, workspaceID string, logger *zap.Logger) *domain.WorkspaceSettings {
	if s.workspaces == nil {
		return nil
	}
	settings, err := s.workspaces.GetSettings(ctx, workspaceID)
	return Try(settings, err).OrDefault(nil, func(err error) {
		if !errors.Is(err, domain.ErrWorkspaceNotFound) {
			logger.Warn("workspace settings unavailable", zap.Error(err))
		}
	})
}

func (s *RevisionService) buildLeadContext(ctx context.Context, in RevisionInput, deadline time.Time, logger *zap.Logger) (*LeadContextBundle, error) {
	if s.leadContext == nil {
		return nil, nil
	}
	bundle, err := awaitWithDeadline(ctx, deadline, "lead context", func(ctx context.Context) (*LeadContextBundle, error) {
		return s.leadContext.Build(ctx, LeadContextRequest{
			WorkspaceID: in.Draft.WorkspaceID,
			LeadID:      in.Draft.LeadID,
			Profile:     domain.ContextProfileRevision,
			Timeout:     s.cfg.ContextTimeout,
		})
	})
	if errors.Is(err, ErrDeadlineExceeded) {
		return nil, err
	}
	return Try(bundle, err).OrDefault(nil, func(err error) {
		logger.Warn("lead context unavailable, continuing without it", zap.Error(err))
	}), nil
}

func (s *RevisionService) buildContextPack(ctx context.Context, in RevisionInput, logger *zap.Logger) string {
	artifacts, err := s.artifacts.List(ctx, in.RunID)
	pack := Try(artifacts, err).OrDefault(nil, func(err error) {
		logger.Warn("context pack unavailable", zap.Error(err))
	})
	text := BuildContextPack(pack, in.Iteration)
	if text != "" {
		s.artifacts.Record(ctx, &domain.PipelineArtifact{
			RunID:     in.RunID,
			Stage:     domain.ArtifactStageContextPack,
			Iteration: in.Iteration,
			Text:      text,
		})
	}
	return text
}

func (s *RevisionService) selectContext(ctx context.Context, in RevisionInput, deadline time.Time, logger *zap.Logger) (*SelectorResult, error) {
	if s.selector == nil {
		return nil, nil
	}

	sub := subDeadline(deadline, s.cfg.SelectorTimeout)
	selection, err := awaitWithDeadline(ctx, sub, "selector", func(ctx context.Context) (*SelectorResult, error) {
		return s.selector.Select(ctx, SelectorRequest{
			WorkspaceID:   in.Draft.WorkspaceID,
			LeadID:        in.Draft.LeadID,
			Channel:       in.Draft.Channel,
			Draft:         in.Draft.Content,
			LatestInbound: in.LatestInbound,
		})
	})
	// only the outer deadline is fatal; the selector's own budget is not
	if err != nil && errors.Is(err, ErrDeadlineExceeded) && !time.Now().Before(deadline) {
		return nil, &DeadlineExceededError{Step: "selector", Deadline: deadline}
	}

	selection = Try(selection, err).OrDefault(nil, func(err error) {
		logger.Warn("selector failed, continuing without guidance", zap.Error(err))
	})
	if selection != nil {
		s.artifacts.RecordJSON(ctx, in.RunID, domain.ArtifactStageSelector, in.Iteration, selection, artifactMeta{Text: selection.Selection})
	}
	return selection, nil
}

type revisionRequest struct {
	Channel             domain.Channel           `json:"channel"`
	CharLimit           int                      `json:"char_limit"`
	OriginalDraft       string                   `json:"original_draft"`
	OriginalEvaluation  *domain.EvaluationResult `json:"original_evaluation"`
	ConversationHistory string                   `json:"conversation_history,omitempty"`
	LatestInbound       string                   `json:"latest_inbound,omitempty"`
	Constraints         RevisionConstraints      `json:"hard_constraints"`
	JudgeFeedback       *domain.JudgeScore       `json:"review_feedback,omitempty"`
	LeadContext         *LeadContextBundle       `json:"lead_context,omitempty"`
	ContextPack         string                   `json:"context_pack,omitempty"`
	SelectorGuidance    string                   `json:"selector_guidance,omitempty"`
}

func (s *RevisionService) runReviser(ctx context.Context, in RevisionInput, deadline time.Time, bundle *LeadContextBundle, pack string, selection *SelectorResult) (*revisionPayload, StructuredResult, error) {
	req := revisionRequest{
		Channel:             in.Draft.Channel,
		CharLimit:           channelCharLimits[in.Draft.Channel],
		OriginalDraft:       in.Draft.Content,
		OriginalEvaluation:  in.Evaluation,
		ConversationHistory: TruncateToTokens(in.ConversationHistory, DefaultEvaluatorInputBudgets().HistoryMaxTokens, KeepEnd),
		LatestInbound:       in.LatestInbound,
		Constraints:         in.Constraints,
		JudgeFeedback:       in.JudgeFeedback,
		LeadContext:         bundle,
		ContextPack:         pack,
	}
	if selection != nil {
		req.SelectorGuidance = selection.Selection
	}

	input, err := json.Marshal(req)
	if err != nil {
		return nil, StructuredResult{}, fmt.Errorf("marshal revision input: %w", err)
	}

	res, err := awaitWithDeadline(ctx, deadline, "reviser", func(ctx context.Context) (StructuredResult, error) {
		return s.runner.Run(ctx, StructuredPrompt{
			PromptKey:       PromptKeyRevise,
			Model:           s.cfg.Model,
			ReasoningEffort: "medium",
			Variables:       map[string]string{"channel": string(in.Draft.Channel)},
			Input:           string(input),
			SchemaName:      "draft_revision",
			Schema:          revisionSchema,
			Budget: TokenBudget{
				Min:            600,
				Max:            2400,
				RetryMax:       4000,
				OverheadTokens: 300,
				OutputScale:    0.5,
			},
			Validate: func(data json.RawMessage) error {
				_, err := parseRevisionPayload(data)
				return err
			},
		}), nil
	})
	if err != nil {
		return nil, res, err
	}
	if !res.Success {
		return nil, res, domain.ErrInvalidRevisionPayload.WithCause(res.Err)
	}

	payload, err := parseRevisionPayload(res.Data)
	if err != nil {
		return nil, res, err
	}
	return payload, res, nil
}

// parseRevisionPayload strictly decodes a reviser response
func parseRevisionPayload(data json.RawMessage) (*revisionPayload, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, domain.ErrInvalidRevisionPayload.WithCause(err)
	}
	for _, field := range []string{"revised_draft", "changes_made", "issues_addressed", "unresolved_requirements", "confidence"} {
		v, ok := raw[field]
		if !ok || string(v) == "null" {
			return nil, domain.ErrInvalidRevisionPayload.WithCause(fmt.Errorf("missing field %q", field))
		}
	}

	var p revisionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, domain.ErrInvalidRevisionPayload.WithCause(err)
	}
	if strings.TrimSpace(p.RevisedDraft) == "" {
		return nil, domain.ErrInvalidRevisionPayload.WithCause(errors.New("revised_draft is empty"))
	}
	if !domain.IsUnitInterval(p.Confidence) {
		return nil, domain.ErrInvalidRevisionPayload.WithCause(errors.New("confidence must be within [0,1]"))
	}
	return &p, nil
}

// trimToChannel cuts text to the channel's character ceiling with an ellipsis
func trimToChannel(text string, channel domain.Channel) string {
	text = strings.TrimSpace(text)
	limit, ok := channelCharLimits[channel]
	if !ok || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	cut := strings.TrimSpace(string(runes[:limit-utf8.RuneCountInString(revisionEllipsis)]))
	return cut + revisionEllipsis
}

// validate fails on unresolved requirements, then on the optional validator
func (s *RevisionService) validate(ctx context.Context, in RevisionInput, deadline time.Time, payload *revisionPayload, revised string) (bool, []string, error) {
	if len(payload.UnresolvedRequirements) > 0 {
		reasons := make([]string, 0, len(payload.UnresolvedRequirements))
		for _, r := range payload.UnresolvedRequirements {
			reasons = append(reasons, "unresolved: "+r)
		}
		return false, reasons, nil
	}
	if in.Validate == nil {
		return true, nil, nil
	}

	_, err := awaitWithDeadline(ctx, deadline, "validation", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, in.Validate(ctx, revised)
	})
	if err != nil {
		if errors.Is(err, ErrDeadlineExceeded) {
			return false, nil, err
		}
		return false, []string{err.Error()}, nil
	}
	return true, nil, nil
}

func (s *RevisionService) applyRevision(ctx context.Context, in RevisionInput, deadline time.Time, content string, confidence float64) (bool, error) {
	return awaitWithDeadline(ctx, deadline, "apply revision", func(ctx context.Context) (bool, error) {
		return s.drafts.ApplyRevision(ctx, in.Draft.ID, content, confidence)
	})
}

// governMemory filters and persists memory proposals. The counts artifact
// is recorded whether or not persistence succeeds.
func (s *RevisionService) governMemory(ctx context.Context, in RevisionInput, workspace *domain.WorkspaceSettings, proposals []domain.MemoryProposal, logger *zap.Logger) {
	policy := s.cfg.MemoryPolicy.ForWorkspace(workspace)
	result := GovernMemoryProposals(proposals, policy, in.Draft.WorkspaceID, in.Draft.LeadID, s.now())

	if len(result.Entries) > 0 && s.txRunner != nil {
		if err := persistMemoryEntries(ctx, s.txRunner, result.Entries, s.now()); err != nil {
			logger.Warn("memory persist failed", zap.Error(err))
			result.Error = err.Error()
		} else {
			result.Persisted = true
		}
	}

	s.metrics.RecordMemoryProposals(result.Approved, result.Pending, result.Dropped)
	s.artifacts.RecordJSON(ctx, in.RunID, domain.ArtifactStageMemoryGovernance, in.Iteration, result, artifactMeta{})
}

func (s *RevisionService) recordLoopError(ctx context.Context, in RevisionInput, reason string, err error) {
	payload := loopErrorArtifact{Reason: reason}
	if err != nil {
		payload.Error = err.Error()
	}
	s.artifacts.RecordJSON(ctx, in.RunID, domain.ArtifactStageLoopError, in.Iteration, payload, artifactMeta{PromptKey: PromptKeyRevise})
}

func outcomeLabel(out *RevisionOutcome, err error) string {
	switch {
	case err != nil:
		return "deadline_exceeded"
	case out == nil || !out.Telemetry.Attempted:
		return "not_attempted"
	case out.Telemetry.Applied:
		return "applied"
	case out.Telemetry.Improved:
		return "improved"
	default:
		return "not_improved"
	}
}
