package domain

import (
	"fmt"
	"math"
)

// EvaluationSourceHardBlock marks evaluations produced by deterministic
// hard-block rules rather than the model.
const EvaluationSourceHardBlock = "hard_block"

// EvaluationResult is the confidence verdict of the auto-send evaluator
type EvaluationResult struct {
	Confidence          float64 `json:"confidence"`
	SafeToSend          bool    `json:"safe_to_send"`
	RequiresHumanReview bool    `json:"requires_human_review"`
	Reason              string  `json:"reason"`
	Source              string  `json:"source,omitempty"`
	HardBlockCode       string  `json:"hard_block_code,omitempty"`
}

// IsHardBlock reports whether the evaluation came from a hard-block rule
func (e *EvaluationResult) IsHardBlock() bool {
	if e == nil {
		return false
	}
	return e.Source == EvaluationSourceHardBlock || e.HardBlockCode != ""
}

// ValidateEvaluationResult validates an EvaluationResult instance
func ValidateEvaluationResult(e *EvaluationResult) error {
	if e == nil {
		return fmt.Errorf("evaluation result cannot be nil")
	}

	if !IsUnitInterval(e.Confidence) {
		return fmt.Errorf("evaluation Confidence must be within [0,1]: %v", e.Confidence)
	}

	return nil
}

// IsUnitInterval reports whether v is a finite number within [0,1]
func IsUnitInterval(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v >= 0 && v <= 1
}
