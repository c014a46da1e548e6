package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockStructuredRunner is a mock implementation of StructuredRunner.
// Successful results are passed through the prompt's Validate callback,
// like the real runner does.
type MockStructuredRunner struct {
	mock.Mock
}

func (m *MockStructuredRunner) Run(ctx context.Context, prompt StructuredPrompt) StructuredResult {
	args := m.Called(ctx, prompt.PromptKey)
	res := args.Get(0).(StructuredResult)
	if res.Success && prompt.Validate != nil {
		if err := prompt.Validate(res.Data); err != nil {
			return StructuredResult{
				Err:          &StructuredError{Kind: StructuredErrorValidation, Err: err},
				SystemPrompt: res.SystemPrompt,
				Model:        res.Model,
			}
		}
	}
	return res
}

func structuredOK(v any) StructuredResult {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return StructuredResult{
		Success:      true,
		Data:         data,
		SystemPrompt: "system prompt",
		Model:        "test-model",
	}
}

func structuredFailed(kind StructuredErrorKind, err error) StructuredResult {
	return StructuredResult{Err: &StructuredError{Kind: kind, Err: err}, Model: "test-model"}
}

// MockKnowledgeRepository is a mock implementation of KnowledgeRepositoryInterface
type MockKnowledgeRepository struct {
	mock.Mock
}

func (m *MockKnowledgeRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.KnowledgeItem, error) {
	args := m.Called(ctx, workspaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeItem), args.Error(1)
}

// MockMemoryReader is a mock implementation of MemoryReaderInterface
type MockMemoryReader struct {
	mock.Mock
}

func (m *MockMemoryReader) ListActive(ctx context.Context, workspaceID, leadID string, now time.Time) ([]*domain.MemoryEntry, error) {
	args := m.Called(ctx, workspaceID, leadID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.MemoryEntry), args.Error(1)
}

// MockWorkspaceRepository is a mock implementation of WorkspaceRepositoryInterface
type MockWorkspaceRepository struct {
	mock.Mock
}

func (m *MockWorkspaceRepository) GetSettings(ctx context.Context, workspaceID string) (*domain.WorkspaceSettings, error) {
	args := m.Called(ctx, workspaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WorkspaceSettings), args.Error(1)
}
