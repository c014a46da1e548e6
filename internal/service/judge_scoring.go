package service

import (
	"regexp"
	"strings"

	"github.com/cloo-solutions/draftgate/internal/domain"
)

const (
	judgeBaseApprove  = 90.0
	judgeBaseRevise   = 70.0
	judgeIssuePenalty = 20.0
	judgeDimensionMin = 15.0
	judgeDimensionMax = 100.0
	defaultBandMin    = 40.0
	defaultBandMax    = 80.0
	maxJudgeThreshold = 100.0
	minJudgeThreshold = 0.0
)

var judgeProfileThresholds = map[domain.JudgeProfile]float64{
	domain.JudgeProfileStrict:   72,
	domain.JudgeProfileBalanced: 62,
	domain.JudgeProfileLenient:  52,
}

type judgeDimension int

const (
	dimensionPricingCadence judgeDimension = iota
	dimensionFactual
	dimensionSafety
	dimensionQuality
)

// judgeBucket maps issue keywords to the dimension they penalise.
// The keyword lists are tuning policy, matched case-insensitively on word
// boundaries. A trailing * marks a stem that matches as a word prefix.
type judgeBucket struct {
	dimension judgeDimension
	matcher   *regexp.Regexp
	fix       string
}

var judgeBuckets = []judgeBucket{
	{
		dimension: dimensionPricingCadence,
		matcher: keywordMatcher(
			"price*", "pricing", "cost", "costs", "fee", "fees", "billing", "billed", "invoice*",
			"discount*", "quote", "quoted", "quotes", "per month", "per year", "monthly", "annual*",
			"cadence", "frequency", "$*",
		),
		fix: "State pricing and cadence exactly as given in the verified service description.",
	},
	{
		dimension: dimensionFactual,
		matcher: keywordMatcher(
			"hallucinat*", "fabricat*", "factual*", "inaccura*", "incorrect*", "made up",
			"invent", "invents", "invented", "inventing", "unsupported", "not supported",
			"contradict*", "mismatch*", "wrong*", "not mentioned",
		),
		fix: "Remove claims that are not backed by the conversation or verified context.",
	},
	{
		dimension: dimensionSafety,
		matcher: keywordMatcher(
			"opt-out*", "opt out", "unsubscrib*", "do not contact", "unsafe", "policy", "policies",
			"compliance", "compliant", "guarantee*", "legal*", "illegal*", "sensitive", "booked",
			"confirmed", "premature*",
		),
		fix: "Respect opt-outs, avoid guarantees and do not claim a meeting is booked before it is.",
	},
	{
		dimension: dimensionQuality,
		matcher: keywordMatcher(
			"tone", "tones", "grammar*", "typo", "typos", "too long", "verbose", "wordy", "awkward*",
			"generic", "repetitive", "repetition", "unclear", "clarity", "robotic", "call to action",
			"personaliz*",
		),
		fix: "Tighten the wording and keep one clear call to action in the lead's tone.",
	},
}

// keywordMatcher compiles keywords into one pattern over lower-cased text.
// Whole keywords need a non-alphanumeric rune (or the text edge) on both
// sides; stems only before.
func keywordMatcher(keywords ...string) *regexp.Regexp {
	alts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		stem := strings.HasSuffix(kw, "*")
		alt := regexp.QuoteMeta(strings.TrimSuffix(kw, "*"))
		if !stem {
			alt += `(?:$|[^a-z0-9])`
		}
		alts = append(alts, alt)
	}
	return regexp.MustCompile(`(?:^|[^a-z0-9])(?:` + strings.Join(alts, "|") + `)`)
}

// judgePassResult is one scored judge pass
type judgePassResult struct {
	decision   domain.JudgeDecision
	confidence float64
	issues     []string
	finalDraft *string
	rationale  string
	dimensions domain.JudgeDimensions
	overall    float64
	pass       bool
	fixes      []string
}

// resolveJudgeThreshold returns the override when set, else the profile default
func resolveJudgeThreshold(profile domain.JudgeProfile, override *float64) float64 {
	if override != nil {
		return clampFloat(*override, minJudgeThreshold, maxJudgeThreshold)
	}
	if t, ok := judgeProfileThresholds[profile]; ok {
		return t
	}
	return judgeProfileThresholds[domain.JudgeProfileBalanced]
}

// resolveAdjudicationBand fills defaults and keeps min <= max within [0,100]
func resolveAdjudicationBand(band *domain.ScoreBand) domain.ScoreBand {
	b := domain.ScoreBand{Min: defaultBandMin, Max: defaultBandMax}
	if band != nil {
		b = *band
	}
	b.Min = clampFloat(b.Min, 0, 100)
	b.Max = clampFloat(b.Max, 0, 100)
	if b.Min > b.Max {
		b.Max = b.Min
	}
	return b
}

// scoreJudgePass derives dimension scores from the decision and issue text
func scoreJudgePass(p *judgePassResult, threshold float64) {
	base := judgeBaseRevise
	if p.decision == domain.JudgeDecisionApprove {
		base = judgeBaseApprove
	}
	scores := [4]float64{base, base, base, base}
	hit := [4]bool{}

	for _, issue := range p.issues {
		text := strings.ToLower(issue)
		matched := false
		for _, bucket := range judgeBuckets {
			if bucket.matcher.MatchString(text) {
				scores[bucket.dimension] -= judgeIssuePenalty
				hit[bucket.dimension] = true
				matched = true
			}
		}
		if !matched {
			scores[dimensionQuality] -= judgeIssuePenalty
			hit[dimensionQuality] = true
		}
	}

	for i := range scores {
		scores[i] = clampFloat(scores[i], judgeDimensionMin, judgeDimensionMax)
	}

	p.dimensions = domain.JudgeDimensions{
		PricingCadenceAccuracy: scores[dimensionPricingCadence],
		FactualAlignment:       scores[dimensionFactual],
		SafetyAndPolicy:        scores[dimensionSafety],
		ResponseQuality:        scores[dimensionQuality],
	}
	p.overall = p.dimensions.Mean()
	p.pass = p.decision == domain.JudgeDecisionApprove || p.overall >= threshold

	p.fixes = nil
	for _, bucket := range judgeBuckets {
		if hit[bucket.dimension] {
			p.fixes = append(p.fixes, bucket.fix)
		}
	}
}

// primaryScore builds the JudgeScore for a primary-only decision
func primaryScore(p *judgePassResult, threshold float64, band domain.ScoreBand) domain.JudgeScore {
	score := domain.JudgeScore{
		Pass:             p.pass,
		Dimensions:       p.dimensions,
		OverallScore:     p.overall,
		JudgeThreshold:   threshold,
		Confidence:       p.confidence,
		AdjudicationBand: band,
		FailureReasons:   []string{},
		SuggestedFixes:   []string{},
		Summary:          p.rationale,
	}
	if !p.pass {
		score.FailureReasons = unionStrings(p.issues)
		score.SuggestedFixes = unionStrings(p.fixes)
	}
	return score
}

// blendScores averages both passes. Either pass approving, or the blended
// overall meeting the threshold, passes the draft.
func blendScores(primary, adjudicator *judgePassResult, threshold float64, band domain.ScoreBand) domain.JudgeScore {
	dims := domain.JudgeDimensions{
		PricingCadenceAccuracy: (primary.dimensions.PricingCadenceAccuracy + adjudicator.dimensions.PricingCadenceAccuracy) / 2,
		FactualAlignment:       (primary.dimensions.FactualAlignment + adjudicator.dimensions.FactualAlignment) / 2,
		SafetyAndPolicy:        (primary.dimensions.SafetyAndPolicy + adjudicator.dimensions.SafetyAndPolicy) / 2,
		ResponseQuality:        (primary.dimensions.ResponseQuality + adjudicator.dimensions.ResponseQuality) / 2,
	}
	overall := (primary.overall + adjudicator.overall) / 2
	pass := primary.pass || adjudicator.pass || overall >= threshold

	score := domain.JudgeScore{
		Pass:             pass,
		Dimensions:       dims,
		OverallScore:     overall,
		JudgeThreshold:   threshold,
		Confidence:       (primary.confidence + adjudicator.confidence) / 2,
		Adjudicated:      true,
		AdjudicationBand: band,
		FailureReasons:   []string{},
		SuggestedFixes:   []string{},
		Summary:          firstNonEmpty(adjudicator.rationale, primary.rationale),
	}
	if !pass {
		score.FailureReasons = unionStrings(primary.issues, adjudicator.issues)
		score.SuggestedFixes = unionStrings(primary.fixes, adjudicator.fixes)
	}
	return score
}

// unionStrings merges lists preserving first-seen order, dropping blanks and duplicates
func unionStrings(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, list := range lists {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
