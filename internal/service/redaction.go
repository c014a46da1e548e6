package service

import (
	"regexp"
	"strings"

	"github.com/cloo-solutions/draftgate/internal/domain"
)

const (
	redactedEmail = "[redacted-email]"
	redactedPhone = "[redacted-phone]"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	// Candidate phone runs. A run may hold several numbers separated by
	// spaces; redactPhoneRun splits it back into phone-sized segments.
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{6,}\d`)
	spacePattern = regexp.MustCompile(`\s+`)
)

const (
	minPhoneDigits = 9
	maxPhoneDigits = 15
)

// RedactContactPII replaces email addresses and phone numbers with placeholders.
func RedactContactPII(text string) string {
	text = emailPattern.ReplaceAllString(text, redactedEmail)
	return phonePattern.ReplaceAllStringFunc(text, redactPhoneRun)
}

// redactPhoneRun walks the space separated parts of run, grouping adjacent
// parts while the group stays within maxPhoneDigits. Each group holding
// between minPhoneDigits and maxPhoneDigits digits is redacted.
func redactPhoneRun(run string) string {
	if n := countDigits(run); n <= maxPhoneDigits {
		if n >= minPhoneDigits {
			return redactedPhone
		}
		return run
	}

	var b strings.Builder
	flush := func(segment string) {
		if n := countDigits(segment); n >= minPhoneDigits && n <= maxPhoneDigits {
			b.WriteString(redactedPhone)
			return
		}
		b.WriteString(segment)
	}

	segStart, segEnd, segDigits, partStart := 0, 0, 0, 0
	for _, sep := range append(spacePattern.FindAllStringIndex(run, -1), []int{len(run), len(run)}) {
		part := run[partStart:sep[0]]
		digits := countDigits(part)
		if segDigits > 0 && segDigits+digits > maxPhoneDigits {
			flush(run[segStart:segEnd])
			b.WriteString(run[segEnd:partStart])
			segStart, segDigits = partStart, 0
		}
		segDigits += digits
		segEnd = sep[0]
		partStart = sep[1]
	}
	flush(run[segStart:segEnd])
	return b.String()
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// profileSeesRawPII reports whether memory for profile is emitted unredacted.
// Only draft authoring composes text that reaches the lead.
func profileSeesRawPII(profile domain.ContextProfile) bool {
	return profile == domain.ContextProfileDraft
}
