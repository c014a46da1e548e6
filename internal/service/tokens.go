package service

import "unicode/utf8"

// charsPerToken is the rune-to-token ratio used for budget estimates.
const charsPerToken = 4

// TruncateMode selects which end of a text survives truncation.
type TruncateMode int

const (
	// KeepStart keeps the beginning of the text.
	KeepStart TruncateMode = iota
	// KeepEnd keeps the end of the text (most recent conversation turns).
	KeepEnd
)

// EstimateTokens returns ceil(runes/4). It is an estimate, not a tokenizer count.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

// TruncateToTokens cuts text so that EstimateTokens(result) <= maxTokens.
func TruncateToTokens(text string, maxTokens int, mode TruncateMode) string {
	if maxTokens <= 0 {
		return ""
	}
	if EstimateTokens(text) <= maxTokens {
		return text
	}

	runes := []rune(text)
	keep := maxTokens * charsPerToken
	if mode == KeepEnd {
		return string(runes[len(runes)-keep:])
	}
	return string(runes[:keep])
}

// TruncatedField reports how a single text field was cut to budget.
type TruncatedField struct {
	MaxTokens      int  `json:"max_tokens"`
	OriginalTokens int  `json:"original_tokens"`
	IncludedTokens int  `json:"included_tokens"`
	Truncated      bool `json:"truncated"`
}

func truncateField(text string, maxTokens int, mode TruncateMode) (string, TruncatedField) {
	out := TruncateToTokens(text, maxTokens, mode)
	return out, TruncatedField{
		MaxTokens:      maxTokens,
		OriginalTokens: EstimateTokens(text),
		IncludedTokens: EstimateTokens(out),
		Truncated:      out != text,
	}
}
