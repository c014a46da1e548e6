package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/cloo-solutions/draftgate/internal/service"
)

func TestDefaultRegistry(t *testing.T) {
	r, err := NewDefaultRegistry()
	require.NoError(t, err)

	assert.Equal(t, []string{
		service.PromptKeyAutoSendEvaluate,
		service.PromptKeyRevise,
		service.PromptKeyJudgeGate,
	}, r.Keys())

	system, model, err := r.Render(service.PromptKeyJudgeGate, map[string]string{"channel": "sms", "review_mode": "primary"})
	require.NoError(t, err)
	assert.Empty(t, model)
	assert.Contains(t, system, "outbound sms drafts")
	assert.Contains(t, system, "Fail the draft when any issue would be noticed")

	borderline, _, err := r.Render(service.PromptKeyJudgeGate, map[string]string{"channel": "email", "review_mode": "borderline_review"})
	require.NoError(t, err)
	assert.Contains(t, borderline, "scored this draft as borderline")
}

func TestRegistry_Render(t *testing.T) {
	r, err := Load([]byte(`
prompts:
  greet.v1:
    model: small-model
    system: "Hello {{.name}}{{.missing}}!"
`))
	require.NoError(t, err)

	system, model, err := r.Render("greet.v1", map[string]string{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada!", system)
	assert.Equal(t, "small-model", model)

	_, _, err = r.Render("unknown.v1", nil)
	assert.ErrorIs(t, err, domain.ErrPromptNotFound)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not yaml", data: "prompts: ["},
		{name: "empty", data: "prompts: {}"},
		{name: "empty system", data: "prompts:\n  a.v1:\n    model: m\n"},
		{name: "bad template", data: "prompts:\n  a.v1:\n    system: \"{{.x\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
