package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cloo-solutions/draftgate/internal/domain"
)

const (
	contextPackMaxTokens        = 1500
	contextPackMaxSectionTokens = 400
)

// BuildContextPack renders prior pipeline artifacts of a run as markdown,
// oldest first, bounded by the context pack budget. Context pack artifacts
// themselves are not repeated.
func BuildContextPack(artifacts []*domain.PipelineArtifact, beforeIteration int) string {
	prior := make([]*domain.PipelineArtifact, 0, len(artifacts))
	for _, a := range artifacts {
		if a == nil || a.Stage == domain.ArtifactStageContextPack {
			continue
		}
		if a.Iteration >= beforeIteration && a.Stage != domain.ArtifactStageInputEvaluation {
			continue
		}
		prior = append(prior, a)
	}
	if len(prior) == 0 {
		return ""
	}

	sort.SliceStable(prior, func(i, j int) bool {
		if prior[i].Iteration != prior[j].Iteration {
			return prior[i].Iteration < prior[j].Iteration
		}
		return prior[i].CreatedAt.Before(prior[j].CreatedAt)
	})

	var b strings.Builder
	b.WriteString("# Revision context pack\n")
	remaining := contextPackMaxTokens - EstimateTokens(b.String())

	for _, a := range prior {
		heading := fmt.Sprintf("\n## %s (iteration %d)\n", a.Stage, a.Iteration)
		headingCost := EstimateTokens(heading)
		budget := min(contextPackMaxSectionTokens, remaining-headingCost)
		if budget <= 0 {
			break
		}

		body := TruncateToTokens(artifactBody(a), budget, KeepStart)
		b.WriteString(heading)
		b.WriteString(body)
		remaining -= headingCost + EstimateTokens(body)
	}

	return b.String()
}

func artifactBody(a *domain.PipelineArtifact) string {
	if len(a.Payload) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, a.Payload, "", "  "); err == nil {
			body := "```json\n" + buf.String() + "\n```"
			if a.Text != "" {
				body = a.Text + "\n\n" + body
			}
			return body
		}
	}
	return a.Text
}
