package service

import (
	"context"
	"encoding/json"
	"fmt"
)

// TokenBudget bounds the output tokens requested from a structured prompt run.
// When OutputScale is set the request size scales with the estimated input.
type TokenBudget struct {
	Min            int
	Max            int
	RetryMax       int
	OverheadTokens int
	OutputScale    float64
	PreferAPICount bool
}

// StructuredPrompt describes one structured JSON prompt run
type StructuredPrompt struct {
	PromptKey       string
	Model           string
	ReasoningEffort string
	Variables       map[string]string
	Input           string
	SchemaName      string
	Schema          map[string]any
	Budget          TokenBudget
	// Validate receives the raw JSON object; a non-nil error fails the run.
	Validate func(data json.RawMessage) error
}

// StructuredUsage reports token usage of a run
type StructuredUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// StructuredErrorKind classifies structured run failures
type StructuredErrorKind string

const (
	StructuredErrorAPI        StructuredErrorKind = "api"
	StructuredErrorParse      StructuredErrorKind = "parse"
	StructuredErrorValidation StructuredErrorKind = "validation"
	StructuredErrorTruncated  StructuredErrorKind = "truncated"
)

// StructuredError is the typed error carried by a failed StructuredResult
type StructuredError struct {
	Kind StructuredErrorKind
	Err  error
}

func (e *StructuredError) Error() string {
	return fmt.Sprintf("structured %s error: %v", e.Kind, e.Err)
}

func (e *StructuredError) Unwrap() error {
	return e.Err
}

// StructuredResult is the outcome of a structured prompt run.
// Data is only set when Success is true.
type StructuredResult struct {
	Success      bool
	Data         json.RawMessage
	Err          error
	SystemPrompt string
	Model        string
	Usage        StructuredUsage
}

// StructuredRunner runs a prompt and returns validated structured JSON
type StructuredRunner interface {
	Run(ctx context.Context, prompt StructuredPrompt) StructuredResult
}
