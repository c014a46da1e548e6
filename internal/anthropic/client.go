// Package anthropic adapts the Anthropic Messages API to the structured
// completion interface used by the judge, evaluator and reviser.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/cloo-solutions/draftgate/internal/service"
)

const (
	DefaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 4096
)

var ErrNoTextContent = errors.New("no text content in response")

// MessagesAPI is the subset of the SDK message service used here
type MessagesAPI interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Client implements service.CompletionClientInterface
type Client struct {
	messages MessagesAPI
}

// NewClient creates a client authenticated with apiKey. An empty baseURL
// keeps the SDK default.
func NewClient(apiKey, baseURL string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &Client{messages: &client.Messages}
}

// Complete sends a single-turn request. The response schema is appended to
// the system prompt since the Messages API has no JSON schema response mode.
func (c *Client) Complete(ctx context.Context, req service.CompletionRequest) (*service.CompletionResponse, error) {
	system, err := systemWithSchema(req.System, req.Schema)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	message, err := c.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, ErrNoTextContent
	}

	return &service.CompletionResponse{
		Content:      text.String(),
		Model:        string(message.Model),
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
		Truncated:    message.StopReason == anthropic.StopReasonMaxTokens,
	}, nil
}

func systemWithSchema(system string, schema map[string]any) (string, error) {
	if schema == nil {
		return system, nil
	}
	encoded, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("encode response schema: %w", err)
	}
	return system + "\n\nRespond with a single JSON object and nothing else. It must match this JSON schema:\n" + string(encoded), nil
}
