package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloo-solutions/draftgate/internal/domain"
)

// RevisionRequest is the serialized case behind a revision run. It is the
// body of POST /v1/revisions and the payload of a revision job.
type RevisionRequest struct {
	DraftID       string                   `json:"draft_id"`
	RunID         string                   `json:"run_id,omitempty"`
	Iteration     int                      `json:"iteration"`
	Threshold     float64                  `json:"threshold"`
	TimeoutMS     int                      `json:"timeout_ms,omitempty"`
	Case          EvaluatorCase            `json:"case"`
	Evaluation    *domain.EvaluationResult `json:"evaluation,omitempty"`
	Constraints   RevisionConstraints      `json:"constraints"`
	JudgeFeedback *domain.JudgeScore       `json:"judge_feedback,omitempty"`
}

// DraftReaderInterface loads drafts
type DraftReaderInterface interface {
	GetByID(ctx context.Context, id string) (*domain.Draft, error)
}

// CaseEvaluatorInterface scores a draft case
type CaseEvaluatorInterface interface {
	Evaluate(ctx context.Context, c EvaluatorCase) (*domain.EvaluationResult, error)
}

// RevisionJobCreatorInterface enqueues revision jobs
type RevisionJobCreatorInterface interface {
	Create(ctx context.Context, job *domain.RevisionJob) error
}

// ReviserInterface runs one revision attempt
type ReviserInterface interface {
	Revise(ctx context.Context, in RevisionInput) (*RevisionOutcome, error)
}

// RevisionRunner turns a RevisionRequest into a revision attempt, either
// inline or through the revision job queue.
type RevisionRunner struct {
	reviser   ReviserInterface
	evaluator CaseEvaluatorInterface
	drafts    DraftReaderInterface
	jobs      RevisionJobCreatorInterface
	logger    *zap.Logger
}

// NewRevisionRunner creates a new RevisionRunner
func NewRevisionRunner(
	reviser ReviserInterface,
	evaluator CaseEvaluatorInterface,
	drafts DraftReaderInterface,
	jobs RevisionJobCreatorInterface,
	logger *zap.Logger,
) *RevisionRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevisionRunner{
		reviser:   reviser,
		evaluator: evaluator,
		drafts:    drafts,
		jobs:      jobs,
		logger:    logger,
	}
}

// Run loads the draft, scores it when no evaluation was supplied and
// attempts a revision.
func (r *RevisionRunner) Run(ctx context.Context, req RevisionRequest) (*RevisionOutcome, error) {
	if req.DraftID == "" {
		return nil, domain.ErrMissingRequiredField.WithCause(errors.New("draft_id is required"))
	}

	draft, err := r.drafts.GetByID(ctx, req.DraftID)
	if err != nil {
		return nil, err
	}

	c := req.Case
	c.DraftID = draft.ID
	c.Draft = draft.Content
	if c.WorkspaceID == "" {
		c.WorkspaceID = draft.WorkspaceID
	}
	if c.LeadID == "" {
		c.LeadID = draft.LeadID
	}
	if c.Channel == "" {
		c.Channel = draft.Channel
	}

	evaluation := req.Evaluation
	if evaluation == nil {
		evaluation, err = r.evaluator.Evaluate(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("initial evaluation: %w", err)
		}
	}

	return r.reviser.Revise(ctx, RevisionInput{
		RunID:               req.RunID,
		Iteration:           req.Iteration,
		Draft:               draft,
		Evaluation:          evaluation,
		Threshold:           req.Threshold,
		Timeout:             time.Duration(req.TimeoutMS) * time.Millisecond,
		ConversationHistory: c.ConversationHistory,
		LatestInbound:       c.LatestInbound,
		Constraints:         req.Constraints,
		JudgeFeedback:       req.JudgeFeedback,
		ReEvaluate:          reEvaluator(r.evaluator, c),
	})
}

// Enqueue stores the request as a pending revision job. A run id is
// assigned when the request has none so that retries replay artifacts.
func (r *RevisionRunner) Enqueue(ctx context.Context, req RevisionRequest) (*domain.RevisionJob, error) {
	if req.DraftID == "" {
		return nil, domain.ErrMissingRequiredField.WithCause(errors.New("draft_id is required"))
	}

	draft, err := r.drafts.GetByID(ctx, req.DraftID)
	if err != nil {
		return nil, err
	}
	if draft.Status != domain.DraftStatusPending {
		return nil, domain.ErrDraftNotPending
	}

	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode revision request: %w", err)
	}

	job := &domain.RevisionJob{
		ID:        uuid.New().String(),
		DraftID:   req.DraftID,
		RunID:     req.RunID,
		Iteration: req.Iteration,
		Payload:   payload,
		Status:    domain.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create revision job: %w", err)
	}

	r.logger.Info("revision job enqueued",
		zap.String("job_id", job.ID),
		zap.String("draft_id", job.DraftID),
		zap.String("run_id", job.RunID),
	)
	return job, nil
}

// RunJob decodes a revision job payload and runs it
func (r *RevisionRunner) RunJob(ctx context.Context, job *domain.RevisionJob) (*RevisionOutcome, error) {
	var req RevisionRequest
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		return nil, domain.ErrInvalidRevisionPayload.WithCause(err)
	}
	req.DraftID = job.DraftID
	req.RunID = job.RunID
	req.Iteration = job.Iteration
	return r.Run(ctx, req)
}
