package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/draftgate/internal/domain"
)

type fakeDraftReader struct {
	drafts map[string]*domain.Draft
}

func (f *fakeDraftReader) GetByID(ctx context.Context, id string) (*domain.Draft, error) {
	d, ok := f.drafts[id]
	if !ok {
		return nil, domain.ErrDraftNotFound
	}
	return d, nil
}

type fakeCaseEvaluator struct {
	cases []EvaluatorCase
	err   error
}

func (f *fakeCaseEvaluator) Evaluate(ctx context.Context, c EvaluatorCase) (*domain.EvaluationResult, error) {
	f.cases = append(f.cases, c)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.EvaluationResult{Confidence: 0.4, Reason: "vague"}, nil
}

type fakeReviser struct {
	inputs []RevisionInput
}

func (f *fakeReviser) Revise(ctx context.Context, in RevisionInput) (*RevisionOutcome, error) {
	f.inputs = append(f.inputs, in)
	return &RevisionOutcome{Telemetry: RevisionTelemetry{Attempted: true, RunID: in.RunID}}, nil
}

type fakeRevisionJobs struct {
	jobs []*domain.RevisionJob
}

func (f *fakeRevisionJobs) Create(ctx context.Context, job *domain.RevisionJob) error {
	if err := domain.ValidateRevisionJob(job); err != nil {
		return err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func newRunnerFixture() (*RevisionRunner, *fakeReviser, *fakeCaseEvaluator, *fakeRevisionJobs) {
	drafts := &fakeDraftReader{drafts: map[string]*domain.Draft{
		"d-1": {ID: "d-1", WorkspaceID: "ws-1", LeadID: "lead-1", Channel: domain.ChannelSMS, Content: "Maybe next week?", Status: domain.DraftStatusPending},
		"d-2": {ID: "d-2", WorkspaceID: "ws-1", Channel: domain.ChannelEmail, Content: "Sent", Status: domain.DraftStatusApproved},
	}}
	reviser := &fakeReviser{}
	evaluator := &fakeCaseEvaluator{}
	jobs := &fakeRevisionJobs{}
	return NewRevisionRunner(reviser, evaluator, drafts, jobs, nil), reviser, evaluator, jobs
}

func TestRevisionRunner_Run(t *testing.T) {
	t.Run("evaluates when no evaluation is supplied", func(t *testing.T) {
		runner, reviser, evaluator, _ := newRunnerFixture()

		out, err := runner.Run(context.Background(), RevisionRequest{
			DraftID:   "d-1",
			RunID:     "run-9",
			Threshold: 0.7,
			TimeoutMS: 5000,
			Case:      EvaluatorCase{LatestInbound: "Can we talk Tuesday?"},
		})
		require.NoError(t, err)
		assert.True(t, out.Telemetry.Attempted)

		require.Len(t, evaluator.cases, 1)
		assert.Equal(t, "ws-1", evaluator.cases[0].WorkspaceID)
		assert.Equal(t, domain.ChannelSMS, evaluator.cases[0].Channel)
		assert.Equal(t, "Maybe next week?", evaluator.cases[0].Draft)

		require.Len(t, reviser.inputs, 1)
		in := reviser.inputs[0]
		assert.Equal(t, "run-9", in.RunID)
		assert.Equal(t, 0.4, in.Evaluation.Confidence)
		assert.Equal(t, "Can we talk Tuesday?", in.LatestInbound)
		assert.Equal(t, int64(5000), in.Timeout.Milliseconds())

		_, err = in.ReEvaluate(context.Background(), "Does Tuesday at 10 work?")
		require.NoError(t, err)
		assert.Equal(t, "Does Tuesday at 10 work?", evaluator.cases[1].Draft)
	})

	t.Run("supplied evaluation skips scoring", func(t *testing.T) {
		runner, reviser, evaluator, _ := newRunnerFixture()

		_, err := runner.Run(context.Background(), RevisionRequest{
			DraftID:    "d-1",
			Evaluation: &domain.EvaluationResult{Confidence: 0.55},
		})
		require.NoError(t, err)
		assert.Empty(t, evaluator.cases)
		assert.Equal(t, 0.55, reviser.inputs[0].Evaluation.Confidence)
	})

	t.Run("errors", func(t *testing.T) {
		runner, _, evaluator, _ := newRunnerFixture()

		_, err := runner.Run(context.Background(), RevisionRequest{})
		assert.ErrorIs(t, err, domain.ErrMissingRequiredField)

		_, err = runner.Run(context.Background(), RevisionRequest{DraftID: "missing"})
		assert.ErrorIs(t, err, domain.ErrDraftNotFound)

		evaluator.err = errors.New("provider down")
		_, err = runner.Run(context.Background(), RevisionRequest{DraftID: "d-1"})
		assert.ErrorContains(t, err, "initial evaluation: provider down")
	})
}

func TestRevisionRunner_Enqueue(t *testing.T) {
	runner, reviser, _, jobs := newRunnerFixture()

	job, err := runner.Enqueue(context.Background(), RevisionRequest{DraftID: "d-1", Iteration: 2, Threshold: 0.7})
	require.NoError(t, err)
	require.Len(t, jobs.jobs, 1)
	assert.NotEmpty(t, job.RunID)
	assert.Equal(t, 2, job.Iteration)
	assert.Equal(t, domain.JobStatusPending, job.Status)

	var stored RevisionRequest
	require.NoError(t, json.Unmarshal(job.Payload, &stored))
	assert.Equal(t, job.RunID, stored.RunID)

	_, err = runner.RunJob(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, job.RunID, reviser.inputs[0].RunID)
	assert.Equal(t, 2, reviser.inputs[0].Iteration)

	_, err = runner.Enqueue(context.Background(), RevisionRequest{DraftID: "d-2"})
	assert.ErrorIs(t, err, domain.ErrDraftNotPending)

	_, err = runner.RunJob(context.Background(), &domain.RevisionJob{DraftID: "d-1", Payload: json.RawMessage(`nope`)})
	assert.ErrorIs(t, err, domain.ErrInvalidRevisionPayload)
}
