package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/draftgate/internal/api"
	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/cloo-solutions/draftgate/internal/service"
)

type RevisionService interface {
	Run(ctx context.Context, req service.RevisionRequest) (*service.RevisionOutcome, error)
	Enqueue(ctx context.Context, req service.RevisionRequest) (*domain.RevisionJob, error)
}

type ArtifactLister interface {
	List(ctx context.Context, runID string) ([]*domain.PipelineArtifact, error)
}

type RevisionHandler struct {
	svc       RevisionService
	artifacts ArtifactLister
}

func NewRevisionHandler(svc RevisionService, artifacts ArtifactLister) *RevisionHandler {
	return &RevisionHandler{svc: svc, artifacts: artifacts}
}

// RevisionResponse carries the outcome. Error is set when the shared
// deadline ran out; the outcome then reports the attempt as not improved.
type RevisionResponse struct {
	Outcome *service.RevisionOutcome `json:"outcome"`
	Error   string                   `json:"error,omitempty"`
}

type RevisionJobResponse struct {
	JobID     string `json:"job_id"`
	DraftID   string `json:"draft_id"`
	RunID     string `json:"run_id"`
	Iteration int    `json:"iteration"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type ArtifactResponse struct {
	RunID     string          `json:"run_id"`
	Stage     string          `json:"stage"`
	Iteration int             `json:"iteration"`
	Text      string          `json:"text,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Model     string          `json:"model,omitempty"`
	PromptKey string          `json:"prompt_key,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

func artifactToResponse(a *domain.PipelineArtifact) ArtifactResponse {
	return ArtifactResponse{
		RunID:     a.RunID,
		Stage:     string(a.Stage),
		Iteration: a.Iteration,
		Text:      a.Text,
		Payload:   a.Payload,
		Model:     a.Model,
		PromptKey: a.PromptKey,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func decodeRevisionRequest(w http.ResponseWriter, r *http.Request) (service.RevisionRequest, bool) {
	var req service.RevisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.DraftID == "" {
		api.Error(w, http.StatusBadRequest, "draft_id is required")
		return req, false
	}
	if req.Threshold <= 0 || req.Threshold > 1 {
		api.Error(w, http.StatusBadRequest, "threshold must be in (0, 1]")
		return req, false
	}
	if req.Iteration < 0 {
		api.Error(w, http.StatusBadRequest, "iteration cannot be negative")
		return req, false
	}
	return req, true
}

// Run attempts a revision inline and returns its outcome
func (h *RevisionHandler) Run(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRevisionRequest(w, r)
	if !ok {
		return
	}

	outcome, err := h.svc.Run(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrDeadlineExceeded) && outcome != nil {
			api.Success(w, http.StatusOK, RevisionResponse{Outcome: outcome, Error: err.Error()})
			return
		}
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, RevisionResponse{Outcome: outcome})
}

// Enqueue stores the request for the revision worker
func (h *RevisionHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRevisionRequest(w, r)
	if !ok {
		return
	}

	job, err := h.svc.Enqueue(r.Context(), req)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, RevisionJobResponse{
		JobID:     job.ID,
		DraftID:   job.DraftID,
		RunID:     job.RunID,
		Iteration: job.Iteration,
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// ListArtifacts returns every artifact recorded for a run
func (h *RevisionHandler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		api.Error(w, http.StatusBadRequest, "run id is required")
		return
	}

	artifacts, err := h.artifacts.List(r.Context(), runID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]ArtifactResponse, 0, len(artifacts))
	for _, a := range artifacts {
		resp = append(resp, artifactToResponse(a))
	}
	api.Success(w, http.StatusOK, resp)
}
