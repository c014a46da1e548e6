// Package prompts holds the versioned system prompts used by the
// structured runner.
package prompts

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/cloo-solutions/draftgate/internal/domain"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompt is one registry entry
type Prompt struct {
	Description string `yaml:"description"`
	Model       string `yaml:"model"`
	System      string `yaml:"system"`
}

type file struct {
	Prompts map[string]Prompt `yaml:"prompts"`
}

// Registry renders prompt templates by key
type Registry struct {
	prompts   map[string]Prompt
	templates map[string]*template.Template
}

// NewDefaultRegistry loads the embedded prompts
func NewDefaultRegistry() (*Registry, error) {
	return Load(defaultPrompts)
}

// Load parses a prompts YAML document and compiles every template.
func Load(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	if len(f.Prompts) == 0 {
		return nil, errors.New("prompts file defines no prompts")
	}

	r := &Registry{
		prompts:   f.Prompts,
		templates: make(map[string]*template.Template, len(f.Prompts)),
	}
	for key, p := range f.Prompts {
		if p.System == "" {
			return nil, fmt.Errorf("prompt %s: empty system template", key)
		}
		tmpl, err := template.New(key).Option("missingkey=zero").Parse(p.System)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", key, err)
		}
		r.templates[key] = tmpl
	}
	return r, nil
}

// Render executes the template for key. The returned model is empty unless
// the prompt pins one.
func (r *Registry) Render(key string, vars map[string]string) (string, string, error) {
	tmpl, ok := r.templates[key]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", domain.ErrPromptNotFound, key)
	}
	if vars == nil {
		vars = map[string]string{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", "", fmt.Errorf("render prompt %s: %w", key, err)
	}
	return buf.String(), r.prompts[key].Model, nil
}

// Keys returns the registered prompt keys in sorted order
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.prompts))
	for k := range r.prompts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
