package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/cloo-solutions/draftgate/internal/service"
)

type MockJudgeService struct {
	mock.Mock
}

func (m *MockJudgeService) Evaluate(ctx context.Context, input service.JudgeInput) (*service.JudgeOutcome, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.JudgeOutcome), args.Error(1)
}

type MockEvaluatorService struct {
	mock.Mock
}

func (m *MockEvaluatorService) Evaluate(ctx context.Context, c service.EvaluatorCase) (*domain.EvaluationResult, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EvaluationResult), args.Error(1)
}

type MockRevisionService struct {
	mock.Mock
}

func (m *MockRevisionService) Run(ctx context.Context, req service.RevisionRequest) (*service.RevisionOutcome, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RevisionOutcome), args.Error(1)
}

func (m *MockRevisionService) Enqueue(ctx context.Context, req service.RevisionRequest) (*domain.RevisionJob, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RevisionJob), args.Error(1)
}

type MockArtifactLister struct {
	mock.Mock
}

func (m *MockArtifactLister) List(ctx context.Context, runID string) ([]*domain.PipelineArtifact, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PipelineArtifact), args.Error(1)
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

func TestGateHandler_Judge(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		judge := new(MockJudgeService)
		handler := NewGateHandler(judge, new(MockEvaluatorService))
		judge.On("Evaluate", mock.Anything, mock.MatchedBy(func(in service.JudgeInput) bool {
			return in.Draft == "Does Tuesday at 10 work?" && in.Channel == domain.ChannelEmail
		})).Return(&service.JudgeOutcome{
			Score:      domain.JudgeScore{Pass: true, OverallScore: 86},
			Confidence: 0.86,
			Model:      "gpt-4.1-mini",
		}, nil)

		body := `{"workspace_id":"ws-1","channel":"email","draft":"Does Tuesday at 10 work?"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/judge", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		handler.Judge(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, 0.86, data["confidence"])
		judge.AssertExpectations(t)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name    string
			body    string
			message string
		}{
			{name: "invalid json", body: `{`, message: "invalid request body"},
			{name: "missing draft", body: `{"channel":"sms"}`, message: "draft is required"},
			{name: "bad channel", body: `{"channel":"fax","draft":"hi"}`, message: "invalid channel"},
			{name: "bad profile", body: `{"draft":"hi","profile":"relaxed"}`, message: "invalid profile"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				judge := new(MockJudgeService)
				handler := NewGateHandler(judge, new(MockEvaluatorService))

				w := httptest.NewRecorder()
				handler.Judge(w, httptest.NewRequest(http.MethodPost, "/v1/judge", bytes.NewBufferString(tt.body)))

				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Contains(t, w.Body.String(), tt.message)
				judge.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("structured run failure is a 500", func(t *testing.T) {
		judge := new(MockJudgeService)
		handler := NewGateHandler(judge, new(MockEvaluatorService))
		judge.On("Evaluate", mock.Anything, mock.Anything).Return(nil, domain.ErrStructuredRunFailed)

		w := httptest.NewRecorder()
		handler.Judge(w, httptest.NewRequest(http.MethodPost, "/v1/judge", bytes.NewBufferString(`{"draft":"hi"}`)))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestGateHandler_Evaluate(t *testing.T) {
	evaluator := new(MockEvaluatorService)
	handler := NewGateHandler(new(MockJudgeService), evaluator)
	evaluator.On("Evaluate", mock.Anything, mock.MatchedBy(func(c service.EvaluatorCase) bool {
		return c.WorkspaceID == "ws-1" && c.Channel == domain.ChannelSMS
	})).Return(&domain.EvaluationResult{Confidence: 0.62, Reason: "vague time"}, nil)

	body := `{"workspace_id":"ws-1","lead_id":"lead-1","channel":"sms","draft":"Talk soon"}`
	w := httptest.NewRecorder()
	handler.Evaluate(w, httptest.NewRequest(http.MethodPost, "/v1/evaluations", bytes.NewBufferString(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.62, decodeData(t, w)["confidence"])

	w = httptest.NewRecorder()
	handler.Evaluate(w, httptest.NewRequest(http.MethodPost, "/v1/evaluations", bytes.NewBufferString(`{"draft":"x","channel":"sms"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRevisionHandler_Run(t *testing.T) {
	revised := "Does Tuesday at 10 CET work for a 20 minute call?"
	body := `{"draft_id":"d-1","threshold":0.7,"case":{"latest_inbound":"Can we talk next week?"}}`

	t.Run("success", func(t *testing.T) {
		svc := new(MockRevisionService)
		handler := NewRevisionHandler(svc, new(MockArtifactLister))
		svc.On("Run", mock.Anything, mock.MatchedBy(func(req service.RevisionRequest) bool {
			return req.DraftID == "d-1" && req.Case.LatestInbound == "Can we talk next week?"
		})).Return(&service.RevisionOutcome{
			RevisedDraft: &revised,
			Telemetry:    service.RevisionTelemetry{Attempted: true, Improved: true, Applied: true, RunID: "run-1"},
		}, nil)

		w := httptest.NewRecorder()
		handler.Run(w, httptest.NewRequest(http.MethodPost, "/v1/revisions", bytes.NewBufferString(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		outcome := decodeData(t, w)["outcome"].(map[string]interface{})
		assert.Equal(t, revised, outcome["revised_draft"])
		assert.Equal(t, true, outcome["telemetry"].(map[string]interface{})["applied"])
	})

	t.Run("deadline returns outcome with error", func(t *testing.T) {
		svc := new(MockRevisionService)
		handler := NewRevisionHandler(svc, new(MockArtifactLister))
		svc.On("Run", mock.Anything, mock.Anything).Return(
			&service.RevisionOutcome{Telemetry: service.RevisionTelemetry{Attempted: true}},
			&service.DeadlineExceededError{Step: "reviser", Deadline: time.Now()},
		)

		w := httptest.NewRecorder()
		handler.Run(w, httptest.NewRequest(http.MethodPost, "/v1/revisions", bytes.NewBufferString(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Contains(t, data["error"], "deadline exceeded during reviser")
		assert.Equal(t, false, data["outcome"].(map[string]interface{})["telemetry"].(map[string]interface{})["improved"])
	})

	t.Run("missing draft", func(t *testing.T) {
		svc := new(MockRevisionService)
		handler := NewRevisionHandler(svc, new(MockArtifactLister))
		svc.On("Run", mock.Anything, mock.Anything).Return(nil, domain.ErrDraftNotFound)

		w := httptest.NewRecorder()
		handler.Run(w, httptest.NewRequest(http.MethodPost, "/v1/revisions", bytes.NewBufferString(body)))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("validation", func(t *testing.T) {
		for _, bad := range []string{`{`, `{"threshold":0.7}`, `{"draft_id":"d-1","threshold":1.5}`, `{"draft_id":"d-1","threshold":0.7,"iteration":-1}`} {
			svc := new(MockRevisionService)
			handler := NewRevisionHandler(svc, new(MockArtifactLister))

			w := httptest.NewRecorder()
			handler.Run(w, httptest.NewRequest(http.MethodPost, "/v1/revisions", bytes.NewBufferString(bad)))

			assert.Equal(t, http.StatusBadRequest, w.Code, bad)
		}
	})
}

func TestRevisionHandler_Enqueue(t *testing.T) {
	svc := new(MockRevisionService)
	handler := NewRevisionHandler(svc, new(MockArtifactLister))
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.On("Enqueue", mock.Anything, mock.Anything).Return(&domain.RevisionJob{
		ID: "job-1", DraftID: "d-1", RunID: "run-1", Status: domain.JobStatusPending, CreatedAt: created,
	}, nil).Once()
	svc.On("Enqueue", mock.Anything, mock.Anything).Return(nil, domain.ErrDraftNotPending).Once()

	body := `{"draft_id":"d-1","threshold":0.7}`
	w := httptest.NewRecorder()
	handler.Enqueue(w, httptest.NewRequest(http.MethodPost, "/v1/revisions/jobs", bytes.NewBufferString(body)))

	assert.Equal(t, http.StatusAccepted, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "job-1", data["job_id"])
	assert.Equal(t, "2026-03-01T12:00:00Z", data["created_at"])

	w = httptest.NewRecorder()
	handler.Enqueue(w, httptest.NewRequest(http.MethodPost, "/v1/revisions/jobs", bytes.NewBufferString(body)))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRevisionHandler_ListArtifacts(t *testing.T) {
	lister := new(MockArtifactLister)
	handler := NewRevisionHandler(new(MockRevisionService), lister)
	lister.On("List", mock.Anything, "run-1").Return([]*domain.PipelineArtifact{
		{RunID: "run-1", Stage: domain.ArtifactStageReviser, Iteration: 0, Text: "revised", Payload: json.RawMessage(`{"confidence":0.8}`)},
	}, nil)

	r := chi.NewRouter()
	r.Get("/v1/runs/{runID}/artifacts", handler.ListArtifacts)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/runs/run-1/artifacts", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []ArtifactResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "reviser", resp.Data[0].Stage)
	assert.JSONEq(t, `{"confidence":0.8}`, string(resp.Data[0].Payload))
}
