package service

import "math"

const (
	judgeTokenFloor   = 800
	judgeTokenCeiling = 4000
	judgeMinScale     = 0.35
	judgeMaxScale     = 0.9
)

// TokenBounds are optional caller limits on the judge output budget
type TokenBounds struct {
	Min int
	Max int
}

// judgeTokenBudget scales the output budget with the estimated input size.
// Caller bounds apply first, then the global floor and ceiling.
func judgeTokenBudget(inputTokens int, bounds TokenBounds) TokenBudget {
	lo := int(math.Ceil(float64(inputTokens) * judgeMinScale))
	hi := int(math.Ceil(float64(inputTokens) * judgeMaxScale))

	if bounds.Min > 0 {
		lo = max(lo, bounds.Min)
		hi = max(hi, bounds.Min)
	}
	if bounds.Max > 0 {
		lo = min(lo, bounds.Max)
		hi = min(hi, bounds.Max)
	}

	lo = clampInt(lo, judgeTokenFloor, judgeTokenCeiling)
	hi = clampInt(hi, judgeTokenFloor, judgeTokenCeiling)
	if lo > hi {
		lo = hi
	}

	return TokenBudget{
		Min:      lo,
		Max:      hi,
		RetryMax: judgeTokenCeiling,
	}
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
