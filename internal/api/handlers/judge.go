package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/draftgate/internal/api"
	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/cloo-solutions/draftgate/internal/service"
)

type JudgeService interface {
	Evaluate(ctx context.Context, input service.JudgeInput) (*service.JudgeOutcome, error)
}

type EvaluatorService interface {
	Evaluate(ctx context.Context, c service.EvaluatorCase) (*domain.EvaluationResult, error)
}

// GateHandler serves the judge and the auto-send evaluator
type GateHandler struct {
	judge     JudgeService
	evaluator EvaluatorService
}

func NewGateHandler(judge JudgeService, evaluator EvaluatorService) *GateHandler {
	return &GateHandler{judge: judge, evaluator: evaluator}
}

func (h *GateHandler) Judge(w http.ResponseWriter, r *http.Request) {
	var req service.JudgeInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Draft == "" {
		api.Error(w, http.StatusBadRequest, "draft is required")
		return
	}
	if req.Channel != "" && !domain.IsValidChannel(req.Channel) {
		api.Error(w, http.StatusBadRequest, "invalid channel")
		return
	}
	if req.Profile != "" && !domain.IsValidJudgeProfile(req.Profile) {
		api.Error(w, http.StatusBadRequest, "invalid profile")
		return
	}

	outcome, err := h.judge.Evaluate(r.Context(), req)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, outcome)
}

func (h *GateHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req service.EvaluatorCase
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.WorkspaceID == "" {
		api.Error(w, http.StatusBadRequest, "workspace_id is required")
		return
	}
	if req.Draft == "" {
		api.Error(w, http.StatusBadRequest, "draft is required")
		return
	}
	if !domain.IsValidChannel(req.Channel) {
		api.Error(w, http.StatusBadRequest, "invalid channel")
		return
	}

	result, err := h.evaluator.Evaluate(r.Context(), req)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, result)
}
