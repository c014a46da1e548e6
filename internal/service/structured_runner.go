package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/draftgate/internal/metrics"
)

const defaultMaxOutputTokens = 2000

// CompletionRequest is a single provider call for a JSON object response
type CompletionRequest struct {
	Model           string
	System          string
	User            string
	SchemaName      string
	Schema          map[string]any
	MaxTokens       int
	ReasoningEffort string
}

// CompletionResponse is the raw provider answer
type CompletionResponse struct {
	Content      string
	Model        string
	InputTokens  int64
	OutputTokens int64
	Truncated    bool
}

// CompletionClientInterface is implemented by the model provider adapters
type CompletionClientInterface interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// PromptRegistryInterface resolves prompt keys into rendered system prompts
type PromptRegistryInterface interface {
	Render(key string, vars map[string]string) (system string, model string, err error)
}

// PromptRunner implements StructuredRunner on top of a completion client
type PromptRunner struct {
	client       CompletionClientInterface
	prompts      PromptRegistryInterface
	defaultModel string
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewPromptRunner creates a new PromptRunner
func NewPromptRunner(
	client CompletionClientInterface,
	prompts PromptRegistryInterface,
	defaultModel string,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PromptRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptRunner{
		client:       client,
		prompts:      prompts,
		defaultModel: defaultModel,
		metrics:      m,
		logger:       logger,
	}
}

// Run renders the prompt, calls the provider, retries once with RetryMax on
// truncation, then parses and validates the JSON object.
func (r *PromptRunner) Run(ctx context.Context, prompt StructuredPrompt) StructuredResult {
	start := time.Now()

	system, registryModel, err := r.prompts.Render(prompt.PromptKey, prompt.Variables)
	if err != nil {
		return r.fail(prompt, "", StructuredResult{}, StructuredErrorAPI, err, start)
	}

	model := firstNonEmpty(prompt.Model, registryModel, r.defaultModel)
	result := StructuredResult{SystemPrompt: system, Model: model}

	inputEstimate := EstimateTokens(system) + EstimateTokens(prompt.Input)
	maxTokens := outputTokenBudget(prompt.Budget, inputEstimate)

	req := CompletionRequest{
		Model:           model,
		System:          system,
		User:            prompt.Input,
		SchemaName:      prompt.SchemaName,
		Schema:          prompt.Schema,
		MaxTokens:       maxTokens,
		ReasoningEffort: prompt.ReasoningEffort,
	}

	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		return r.fail(prompt, model, result, StructuredErrorAPI, err, start)
	}
	r.addUsage(&result, resp, prompt.Budget, inputEstimate)

	if resp.Truncated && prompt.Budget.RetryMax > maxTokens {
		r.logger.Info("structured output truncated, retrying with larger budget",
			zap.String("prompt_key", prompt.PromptKey),
			zap.Int("max_tokens", maxTokens),
			zap.Int("retry_max_tokens", prompt.Budget.RetryMax),
		)
		req.MaxTokens = prompt.Budget.RetryMax
		resp, err = r.client.Complete(ctx, req)
		if err != nil {
			return r.fail(prompt, model, result, StructuredErrorAPI, err, start)
		}
		r.addUsage(&result, resp, prompt.Budget, inputEstimate)
	}

	if resp.Truncated {
		return r.fail(prompt, model, result, StructuredErrorTruncated,
			fmt.Errorf("output exceeded %d tokens", req.MaxTokens), start)
	}
	if resp.Model != "" {
		result.Model = resp.Model
	}

	data, err := extractJSONObject(resp.Content)
	if err != nil {
		return r.fail(prompt, result.Model, result, StructuredErrorParse, err, start)
	}

	if prompt.Validate != nil {
		if err := prompt.Validate(data); err != nil {
			return r.fail(prompt, result.Model, result, StructuredErrorValidation, err, start)
		}
	}

	result.Success = true
	result.Data = data
	r.metrics.RecordLLMCall(prompt.PromptKey, result.Model, "success", time.Since(start),
		result.Usage.InputTokens, result.Usage.OutputTokens)
	return result
}

func (r *PromptRunner) fail(prompt StructuredPrompt, model string, result StructuredResult, kind StructuredErrorKind, err error, start time.Time) StructuredResult {
	result.Success = false
	result.Err = &StructuredError{Kind: kind, Err: err}
	r.metrics.RecordLLMCall(prompt.PromptKey, model, string(kind), time.Since(start),
		result.Usage.InputTokens, result.Usage.OutputTokens)
	r.logger.Warn("structured prompt run failed",
		zap.String("prompt_key", prompt.PromptKey),
		zap.String("model", model),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	return result
}

func (r *PromptRunner) addUsage(result *StructuredResult, resp *CompletionResponse, budget TokenBudget, inputEstimate int) {
	input := resp.InputTokens
	if !budget.PreferAPICount || input == 0 {
		input = int64(inputEstimate)
	}
	result.Usage.InputTokens += input
	result.Usage.OutputTokens += resp.OutputTokens
}

// outputTokenBudget returns the max output tokens for the first attempt
func outputTokenBudget(b TokenBudget, inputTokens int) int {
	maxTokens := b.Max
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}
	minTokens := min(max(b.Min, 0), maxTokens)

	n := maxTokens
	if b.OutputScale > 0 {
		n = b.OverheadTokens + int(math.Ceil(float64(inputTokens)*b.OutputScale))
	}
	return min(max(n, minTokens), maxTokens)
}

// extractJSONObject accepts a bare JSON object, optionally wrapped in a
// markdown code fence.
func extractJSONObject(content string) (json.RawMessage, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return nil, errors.New("empty response")
	}
	raw := []byte(s)
	if !json.Valid(raw) {
		return nil, errors.New("response is not valid JSON")
	}
	if !bytes.HasPrefix(raw, []byte("{")) {
		return nil, errors.New("response is not a JSON object")
	}
	return json.RawMessage(raw), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
