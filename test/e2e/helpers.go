//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap/zaptest"

	"github.com/cloo-solutions/draftgate/internal/api/middleware"
	"github.com/cloo-solutions/draftgate/internal/cli/admin"
	"github.com/cloo-solutions/draftgate/internal/config"
	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/cloo-solutions/draftgate/internal/repository"
	"github.com/cloo-solutions/draftgate/internal/server"
	"github.com/cloo-solutions/draftgate/internal/service"
	"github.com/cloo-solutions/draftgate/internal/testutil"
)

const (
	testToken       = "e2e-token"
	embeddingLength = 1536
)

// scriptedModel answers completion calls by schema name
type scriptedModel struct {
	mu        sync.Mutex
	responses map[string]string
	calls     map[string]int
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{responses: map[string]string{}, calls: map[string]int{}}
}

func (s *scriptedModel) set(schema string, payload any) {
	data, _ := json.Marshal(payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[schema] = string(data)
}

func (s *scriptedModel) count(schema string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[schema]
}

func (s *scriptedModel) Complete(ctx context.Context, req service.CompletionRequest) (*service.CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[req.SchemaName]++
	content, ok := s.responses[req.SchemaName]
	if !ok {
		return nil, fmt.Errorf("no scripted response for %q", req.SchemaName)
	}
	return &service.CompletionResponse{Content: content, Model: "scripted", InputTokens: 100, OutputTokens: 50}, nil
}

type constantEmbedder struct{}

func (constantEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, embeddingLength)
	for i := range v {
		v[i] = 0.01
	}
	return v, nil
}

// Env holds all resources needed for e2e tests
type Env struct {
	T          *testing.T
	Ctx        context.Context
	Pool       *pgxpool.Pool
	Model      *scriptedModel
	App        *admin.App
	ServerURL  string
	HTTPClient *http.Client
}

func testConfig() *config.Config {
	return &config.Config{
		APIToken:                  testToken,
		LLMProvider:               "openai",
		RevisionModel:             "reviser",
		JudgeModel:                "judge",
		EvaluatorModel:            "evaluator",
		RevisionTimeoutMs:         20000,
		RevisionSelectorTimeoutMs: 5000,
		RevisionContextTimeoutMs:  5000,
		JudgeProfile:              "balanced",
		JudgeAdjudicationMin:      40,
		JudgeAdjudicationMax:      80,
		MemoryAllowedCategories:   []string{"role", "timezone"},
		MemoryMinConfidence:       0.7,
		MemoryMinTTLDays:          1,
		MemoryMaxTTLDays:          90,
		WorkerPollInterval:        100 * time.Millisecond,
	}
}

// SetupEnv starts Postgres, wires the gate against a scripted model and
// serves it over httptest. Workers are running.
func SetupEnv(t *testing.T) *Env {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	pool := testutil.StartPostgres(t, "../../migrations")
	model := newScriptedModel()

	app, err := admin.NewApp(testConfig(), admin.Deps{
		Pool:       pool,
		Completion: model,
		Embedder:   constantEmbedder{},
		Logger:     zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}
	app.Start(ctx)

	srv := httptest.NewServer(server.NewRouter(server.RouterConfig{
		TokenValidator:  middleware.StaticTokens{testToken: "e2e"},
		GateHandler:     app.GateHandler,
		RevisionHandler: app.RevisionHandler,
	}))

	t.Cleanup(func() {
		srv.Close()
		app.Stop()
		cancel()
	})

	return &Env{
		T:          t,
		Ctx:        ctx,
		Pool:       pool,
		Model:      model,
		App:        app,
		ServerURL:  srv.URL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateDraft inserts a pending draft
func (e *Env) CreateDraft(content string, channel domain.Channel) *domain.Draft {
	e.T.Helper()
	now := time.Now().UTC()
	d := &domain.Draft{
		ID:          uuid.NewString(),
		WorkspaceID: "ws-e2e",
		LeadID:      "lead-e2e",
		Channel:     channel,
		Content:     content,
		Status:      domain.DraftStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repository.NewDraftRepository(e.Pool).Create(e.Ctx, d); err != nil {
		e.T.Fatalf("failed to create draft: %v", err)
	}
	return d
}

// GetDraft reloads a draft
func (e *Env) GetDraft(id string) *domain.Draft {
	e.T.Helper()
	d, err := repository.NewDraftRepository(e.Pool).GetByID(e.Ctx, id)
	if err != nil {
		e.T.Fatalf("failed to load draft: %v", err)
	}
	return d
}

// Eventually polls cond until it holds or the timeout passes
func (e *Env) Eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return cond()
}

// APIResponse represents a standard API response
type APIResponse struct {
	Status int
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *Env) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, authToken)
}

// Post performs a POST request
func (e *Env) Post(path string, body any, authToken string) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body, authToken)
}

func (e *Env) doRequest(method, path string, body any, authToken string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := &APIResponse{Status: resp.StatusCode}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(respBody, apiResp); err != nil {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody)
		}
	}
	return apiResp, nil
}
