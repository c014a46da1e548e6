package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/cloo-solutions/draftgate/internal/service"
)

type MockRevisionJobRepository struct {
	mock.Mock
}

func (m *MockRevisionJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.RevisionJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RevisionJob), args.Error(1)
}

func (m *MockRevisionJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg string) error {
	args := m.Called(ctx, jobID, status, errMsg)
	return args.Error(0)
}

func (m *MockRevisionJobRepository) IncrementRetries(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

type MockRevisionJobRunner struct {
	mock.Mock
}

func (m *MockRevisionJobRunner) RunJob(ctx context.Context, job *domain.RevisionJob) (*service.RevisionOutcome, error) {
	args := m.Called(ctx, job)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RevisionOutcome), args.Error(1)
}

func TestRevisionWorker_ProcessJobs(t *testing.T) {
	ctx := context.Background()
	job := &domain.RevisionJob{ID: "job-1", DraftID: "d-1", RunID: "run-1", Retries: 0}

	t.Run("completed", func(t *testing.T) {
		repo := new(MockRevisionJobRepository)
		runner := new(MockRevisionJobRunner)
		repo.On("GetPendingJobs", ctx).Return([]*domain.RevisionJob{job}, nil)
		runner.On("RunJob", ctx, job).Return(&service.RevisionOutcome{Telemetry: service.RevisionTelemetry{Attempted: true}}, nil)
		repo.On("UpdateJobStatus", ctx, "job-1", domain.JobStatusCompleted, "").Return(nil)

		require.NoError(t, NewRevisionWorker(repo, runner, nil, nil).ProcessJobs(ctx))
		repo.AssertExpectations(t)
	})

	t.Run("transient error retried", func(t *testing.T) {
		repo := new(MockRevisionJobRepository)
		runner := new(MockRevisionJobRunner)
		repo.On("GetPendingJobs", ctx).Return([]*domain.RevisionJob{job}, nil)
		runner.On("RunJob", ctx, job).Return(nil, errors.New("connection reset"))
		repo.On("IncrementRetries", ctx, "job-1").Return(nil)
		repo.On("UpdateJobStatus", ctx, "job-1", domain.JobStatusPending, "retry 1: connection reset").Return(nil)

		require.NoError(t, NewRevisionWorker(repo, runner, nil, nil).ProcessJobs(ctx))
		repo.AssertExpectations(t)
	})

	t.Run("deadline fails for manual handling", func(t *testing.T) {
		repo := new(MockRevisionJobRepository)
		runner := new(MockRevisionJobRunner)
		deadlineErr := &service.DeadlineExceededError{Step: "reviser", Deadline: time.Now()}
		repo.On("GetPendingJobs", ctx).Return([]*domain.RevisionJob{job}, nil)
		runner.On("RunJob", ctx, job).Return(&service.RevisionOutcome{}, deadlineErr)
		repo.On("UpdateJobStatus", ctx, "job-1", domain.JobStatusFailed, deadlineErr.Error()).Return(nil)

		require.NoError(t, NewRevisionWorker(repo, runner, nil, nil).ProcessJobs(ctx))
		repo.AssertNotCalled(t, "IncrementRetries", mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("status update failure is logged", func(t *testing.T) {
		repo := new(MockRevisionJobRepository)
		runner := new(MockRevisionJobRunner)
		repo.On("GetPendingJobs", ctx).Return([]*domain.RevisionJob{job}, nil)
		runner.On("RunJob", ctx, job).Return(&service.RevisionOutcome{}, nil)
		repo.On("UpdateJobStatus", ctx, "job-1", domain.JobStatusCompleted, "").Return(errors.New("db down"))

		assert.NoError(t, NewRevisionWorker(repo, runner, nil, nil).ProcessJobs(ctx))
	})
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{err: &service.DeadlineExceededError{Step: "reviser"}, want: true},
		{err: fmt.Errorf("load: %w", domain.ErrDraftNotFound), want: true},
		{err: domain.ErrInvalidRevisionPayload.WithCause(errors.New("bad json")), want: true},
		{err: domain.ErrDraftNotPending, want: true},
		{err: fmt.Errorf("initial evaluation: %w", domain.ErrStructuredRunFailed), want: false},
		{err: errors.New("connection reset"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, isPermanent(tt.err))
		})
	}
}
