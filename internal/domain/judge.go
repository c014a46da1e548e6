package domain

// JudgeProfile selects the default pass threshold of the quality gate
type JudgeProfile string

const (
	JudgeProfileStrict   JudgeProfile = "strict"
	JudgeProfileBalanced JudgeProfile = "balanced"
	JudgeProfileLenient  JudgeProfile = "lenient"
)

// JudgeDecision is the verdict returned by a single judge pass
type JudgeDecision string

const (
	JudgeDecisionApprove JudgeDecision = "approve"
	JudgeDecisionRevise  JudgeDecision = "revise"
)

// JudgeDimensions holds the per-dimension scores, each within [0,100]
type JudgeDimensions struct {
	PricingCadenceAccuracy float64 `json:"pricing_cadence_accuracy"`
	FactualAlignment       float64 `json:"factual_alignment"`
	SafetyAndPolicy        float64 `json:"safety_and_policy"`
	ResponseQuality        float64 `json:"response_quality"`
}

// Mean returns the average of the four dimensions
func (d JudgeDimensions) Mean() float64 {
	return (d.PricingCadenceAccuracy + d.FactualAlignment + d.SafetyAndPolicy + d.ResponseQuality) / 4
}

// ScoreBand is an inclusive score range
type ScoreBand struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether score lies within the band
func (b ScoreBand) Contains(score float64) bool {
	return score >= b.Min && score <= b.Max
}

// JudgeScore is the immutable result of one quality gate invocation
type JudgeScore struct {
	Pass             bool            `json:"pass"`
	Dimensions       JudgeDimensions `json:"dimensions"`
	OverallScore     float64         `json:"overall_score"`
	JudgeThreshold   float64         `json:"judge_threshold"`
	Confidence       float64         `json:"confidence"`
	Adjudicated      bool            `json:"adjudicated"`
	AdjudicationBand ScoreBand       `json:"adjudication_band"`
	FailureReasons   []string        `json:"failure_reasons"`
	SuggestedFixes   []string        `json:"suggested_fixes"`
	Summary          string          `json:"summary"`
}

// DecisionContract is the extraction-derived contract a draft is judged
// against. It is produced by an external extraction step and passed through.
type DecisionContract struct {
	Version            string   `json:"version,omitempty"`
	HasBookingIntent   bool     `json:"has_booking_intent"`
	ShouldBookNow      bool     `json:"should_book_now"`
	NeedsPricingAnswer bool     `json:"needs_pricing_answer"`
	ResponseMode       string   `json:"response_mode,omitempty"`
	AcceptedSlot       string   `json:"accepted_slot,omitempty"`
	LeadTimezone       string   `json:"lead_timezone,omitempty"`
	EvidenceQuotes     []string `json:"evidence_quotes,omitempty"`
}

// IsValidJudgeProfile checks if a JudgeProfile is valid
func IsValidJudgeProfile(p JudgeProfile) bool {
	switch p {
	case JudgeProfileStrict, JudgeProfileBalanced, JudgeProfileLenient:
		return true
	}
	return false
}
