package logging

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// RedactPII masks emails, card numbers and phone numbers in free text.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, r := range []struct {
		re   *regexp.Regexp
		mask string
	}{
		{emailPattern, "[REDACTED_EMAIL]"},
		// Before phones so long digit runs are not taken for phone numbers.
		{cardPattern, "[REDACTED_CARD]"},
		{phonePattern, "[REDACTED_PHONE]"},
	} {
		next := r.re.ReplaceAllString(out, r.mask)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// Preview returns a redacted single-line excerpt of text for log fields.
func Preview(text string, limit int) string {
	out, _ := RedactPII(strings.Join(strings.Fields(text), " "))
	if limit > 0 {
		if r := []rune(out); len(r) > limit {
			return string(r[:limit]) + "..."
		}
	}
	return out
}
