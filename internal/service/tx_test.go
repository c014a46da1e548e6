package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloo-solutions/draftgate/internal/domain"
)

type fakeMemoryWriter struct {
	mu      sync.Mutex
	entries []*domain.MemoryEntry
	err     error
}

func (f *fakeMemoryWriter) Create(ctx context.Context, entry *domain.MemoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

type fakeEmbeddingJobs struct {
	mu   sync.Mutex
	jobs []*domain.MemoryEmbeddingJob
}

func (f *fakeEmbeddingJobs) Create(ctx context.Context, job *domain.MemoryEmbeddingJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

type testTxRepos struct {
	memory        *fakeMemoryWriter
	embeddingJobs *fakeEmbeddingJobs
}

func (t *testTxRepos) Memory() MemoryWriterInterface {
	return t.memory
}

func (t *testTxRepos) MemoryEmbeddingJobs() MemoryEmbeddingJobRepositoryInterface {
	return t.embeddingJobs
}

type testTxRunner struct {
	repos  *testTxRepos
	called bool
}

func newTestTxRunner() *testTxRunner {
	return &testTxRunner{repos: &testTxRepos{memory: &fakeMemoryWriter{}, embeddingJobs: &fakeEmbeddingJobs{}}}
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}

// fakeDraftStore applies the same pending-only predicates as the SQL store
type fakeDraftStore struct {
	mu       sync.Mutex
	drafts   map[string]*domain.Draft
	claimErr error
	claims   int
	// stallClaim blocks ClaimRevision until its context ends
	stallClaim bool
}

func newFakeDraftStore(drafts ...*domain.Draft) *fakeDraftStore {
	s := &fakeDraftStore{drafts: make(map[string]*domain.Draft)}
	for _, d := range drafts {
		cp := *d
		s.drafts[d.ID] = &cp
	}
	return s
}

func (s *fakeDraftStore) ClaimRevision(ctx context.Context, draftID string, at time.Time) (bool, error) {
	if s.stallClaim {
		<-ctx.Done()
		return false, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims++
	if s.claimErr != nil {
		return false, s.claimErr
	}
	d, ok := s.drafts[draftID]
	if !ok || d.Status != domain.DraftStatusPending || d.RevisionAttemptedAt != nil {
		return false, nil
	}
	d.RevisionAttemptedAt = &at
	return true, nil
}

func (s *fakeDraftStore) ApplyRevision(ctx context.Context, draftID, content string, confidence float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[draftID]
	if !ok || d.Status != domain.DraftStatusPending {
		return false, nil
	}
	d.Content = content
	d.RevisionApplied = true
	d.RevisionConfidence = &confidence
	return true, nil
}

func (s *fakeDraftStore) get(id string) domain.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.drafts[id]
}

type artifactKey struct {
	runID     string
	stage     domain.ArtifactStage
	iteration int
}

type fakeArtifactStore struct {
	mu        sync.Mutex
	artifacts map[artifactKey]*domain.PipelineArtifact
	upsertErr error
}

func newFakeArtifactStore() *fakeArtifactStore {
	return &fakeArtifactStore{artifacts: make(map[artifactKey]*domain.PipelineArtifact)}
}

func (s *fakeArtifactStore) Get(ctx context.Context, runID string, stage domain.ArtifactStage, iteration int) (*domain.PipelineArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[artifactKey{runID, stage, iteration}]
	if !ok {
		return nil, domain.ErrArtifactNotFound
	}
	return a, nil
}

func (s *fakeArtifactStore) Upsert(ctx context.Context, artifact *domain.PipelineArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.artifacts[artifactKey{artifact.RunID, artifact.Stage, artifact.Iteration}] = artifact
	return nil
}

func (s *fakeArtifactStore) ListByRun(ctx context.Context, runID string) ([]*domain.PipelineArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.PipelineArtifact
	for k, a := range s.artifacts {
		if k.runID == runID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeArtifactStore) has(runID string, stage domain.ArtifactStage, iteration int) bool {
	_, err := s.Get(context.Background(), runID, stage, iteration)
	return err == nil
}

var errStoreDown = errors.New("store unavailable")
