//go:build integration

package repository

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/cloo-solutions/draftgate/internal/service"
	"github.com/cloo-solutions/draftgate/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const migrationsDir = "../../migrations"

func newPendingDraft(t *testing.T, ctx context.Context, repo *DraftRepository) *domain.Draft {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	d := &domain.Draft{
		ID:          uuid.NewString(),
		WorkspaceID: "ws-1",
		LeadID:      "lead-1",
		Channel:     domain.ChannelEmail,
		Content:     "Original",
		Status:      domain.DraftStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, repo.Create(ctx, d))
	return d
}

func TestDraftRepository_ClaimRevision(t *testing.T) {
	ctx := context.Background()
	pool := testutil.StartPostgres(t, migrationsDir)
	repo := NewDraftRepository(pool)

	t.Run("only one concurrent claim wins", func(t *testing.T) {
		d := newPendingDraft(t, ctx, repo)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.ClaimRevision(ctx, d.ID, time.Now().UTC())
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		stored, err := repo.GetByID(ctx, d.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored.RevisionAttemptedAt)
	})

	t.Run("decided draft cannot be claimed", func(t *testing.T) {
		d := newPendingDraft(t, ctx, repo)
		require.NoError(t, repo.UpdateStatus(ctx, d.ID, domain.DraftStatusApproved))

		ok, err := repo.ClaimRevision(ctx, d.ID, time.Now().UTC())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestDraftRepository_ApplyRevision(t *testing.T) {
	ctx := context.Background()
	pool := testutil.StartPostgres(t, migrationsDir)
	repo := NewDraftRepository(pool)

	d := newPendingDraft(t, ctx, repo)
	ok, err := repo.ApplyRevision(ctx, d.ID, "Revised", 0.82)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Revised", stored.Content)
	assert.True(t, stored.RevisionApplied)
	require.NotNil(t, stored.RevisionConfidence)
	assert.Equal(t, 0.82, *stored.RevisionConfidence)

	rejected := newPendingDraft(t, ctx, repo)
	require.NoError(t, repo.UpdateStatus(ctx, rejected.ID, domain.DraftStatusRejected))
	ok, err = repo.ApplyRevision(ctx, rejected.ID, "Too late", 0.9)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrDraftNotFound)
}

func TestArtifactRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	pool := testutil.StartPostgres(t, migrationsDir)
	repo := NewArtifactRepository(pool)

	runID := uuid.NewString()
	first := &domain.PipelineArtifact{RunID: runID, Stage: domain.ArtifactStageReviser, Iteration: 0, Payload: json.RawMessage(`{"v":1}`), Text: "one"}
	require.NoError(t, repo.Upsert(ctx, first))

	second := &domain.PipelineArtifact{RunID: runID, Stage: domain.ArtifactStageReviser, Iteration: 0, Payload: json.RawMessage(`{"v":2}`), Text: "two"}
	require.NoError(t, repo.Upsert(ctx, second))

	got, err := repo.Get(ctx, runID, domain.ArtifactStageReviser, 0)
	require.NoError(t, err)
	assert.Equal(t, "two", got.Text)
	assert.JSONEq(t, `{"v":2}`, string(got.Payload))

	require.NoError(t, repo.Upsert(ctx, &domain.PipelineArtifact{RunID: runID, Stage: domain.ArtifactStageContextPack, Iteration: 1, Text: "pack"}))
	all, err := repo.ListByRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Empty(t, all[1].Payload)

	_, err = repo.Get(ctx, runID, domain.ArtifactStageLoopError, 0)
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	pool := testutil.StartPostgres(t, migrationsDir)
	repo := NewMemoryRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)
	past := now.Add(-time.Hour)

	entries := []*domain.MemoryEntry{
		{ID: uuid.NewString(), WorkspaceID: "ws-1", LeadID: "lead-1", Scope: domain.MemoryScopeLead, Category: "timezone", Content: "CET", Status: domain.MemoryStatusApproved, Source: domain.MemorySourceRevisionAgent, Confidence: 0.9, CreatedAt: now},
		{ID: uuid.NewString(), WorkspaceID: "ws-1", Scope: domain.MemoryScopeWorkspace, Category: "company_context", Content: "Series B", Status: domain.MemoryStatusApproved, Source: domain.MemorySourceRevisionAgent, Confidence: 0.8, CreatedAt: now.Add(-time.Minute)},
		{ID: uuid.NewString(), WorkspaceID: "ws-1", LeadID: "lead-2", Scope: domain.MemoryScopeLead, Category: "role", Content: "CTO", Status: domain.MemoryStatusApproved, Source: domain.MemorySourceRevisionAgent, Confidence: 0.9, CreatedAt: now},
		{ID: uuid.NewString(), WorkspaceID: "ws-1", LeadID: "lead-1", Scope: domain.MemoryScopeLead, Category: "role", Content: "Maybe CFO", Status: domain.MemoryStatusPending, Source: domain.MemorySourceRevisionAgent, Confidence: 0.4, CreatedAt: now},
		{ID: uuid.NewString(), WorkspaceID: "ws-1", LeadID: "lead-1", Scope: domain.MemoryScopeLead, Category: "objection", Content: "Expired", Status: domain.MemoryStatusApproved, Source: domain.MemorySourceRevisionAgent, Confidence: 0.9, CreatedAt: now, ExpiresAt: &past},
	}
	for _, e := range entries {
		require.NoError(t, repo.Create(ctx, e))
	}

	active, err := repo.ListActive(ctx, "ws-1", "lead-1", now)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "CET", active[0].Content)
	assert.Equal(t, "Series B", active[1].Content)
	assert.Empty(t, active[1].LeadID)

	workspaceOnly, err := repo.ListActive(ctx, "ws-1", "", now)
	require.NoError(t, err)
	require.Len(t, workspaceOnly, 1)

	vec := make([]float32, 1536)
	vec[0] = 1
	require.NoError(t, repo.UpdateEmbedding(ctx, entries[0].ID, vec))

	matches, err := repo.SearchSimilar(ctx, "ws-1", "lead-1", vec, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, entries[0].ID, matches[0].Entry.ID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)

	assert.ErrorIs(t, repo.UpdateEmbedding(ctx, uuid.NewString(), vec), domain.ErrMemoryNotFound)
}

func TestTxRunner_RollsBackMemoryAndJobs(t *testing.T) {
	ctx := context.Background()
	pool := testutil.StartPostgres(t, migrationsDir)
	runner := NewTxRunner(pool)
	memory := NewMemoryRepository(pool)

	entry := &domain.MemoryEntry{ID: uuid.NewString(), WorkspaceID: "ws-1", Scope: domain.MemoryScopeWorkspace, Category: "role", Content: "x", Status: domain.MemoryStatusApproved, Source: domain.MemorySourceRevisionAgent, Confidence: 0.9, CreatedAt: time.Now().UTC()}

	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		require.NoError(t, repos.Memory().Create(ctx, entry))
		return repos.MemoryEmbeddingJobs().Create(ctx, domain.NewMemoryEmbeddingJob(uuid.NewString(), uuid.NewString(), time.Now().UTC()))
	})
	require.Error(t, err)

	_, err = memory.GetByID(ctx, entry.ID)
	assert.ErrorIs(t, err, domain.ErrMemoryNotFound)
}

func TestJobRepositories_ClaimAndRetry(t *testing.T) {
	ctx := context.Background()
	pool := testutil.StartPostgres(t, migrationsDir)
	drafts := NewDraftRepository(pool)
	jobs := NewRevisionJobRepository(pool)

	d := newPendingDraft(t, ctx, drafts)
	job := &domain.RevisionJob{
		ID:        uuid.NewString(),
		DraftID:   d.ID,
		RunID:     uuid.NewString(),
		Payload:   json.RawMessage(`{"threshold":0.7}`),
		Status:    domain.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, jobs.Create(ctx, job))

	claimed, err := jobs.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, domain.JobStatusProcessing, claimed[0].Status)
	assert.JSONEq(t, `{"threshold":0.7}`, string(claimed[0].Payload))

	again, err := jobs.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, jobs.IncrementRetries(ctx, job.ID))
	require.NoError(t, jobs.UpdateJobStatus(ctx, job.ID, domain.JobStatusFailed, "boom"))
	stored, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), stored.Retries)
	assert.Equal(t, "boom", stored.Error)
	assert.NotNil(t, stored.ProcessedAt)

	assert.ErrorIs(t, jobs.UpdateJobStatus(ctx, uuid.NewString(), domain.JobStatusCompleted, ""), domain.ErrJobNotFound)
}
