package voice

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	speechURLPattern          = regexp.MustCompile(`https?://\S+`)
	speechFencedCodePattern   = regexp.MustCompile("(?s)```.*?```")
	speechInlineCodePattern   = regexp.MustCompile("`[^`]*`")
	speechMarkdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)

	statusPercentPattern = regexp.MustCompile(`(\d+)%`)
	statusMetersPattern  = regexp.MustCompile(`\b(\d+)m\b`)
	statusDegreesPattern = regexp.MustCompile(`\b(\d+)deg\b`)
)

var statusWords = strings.NewReplacer(
	"Status - ", "Status. ",
	" | ", ", ",
	"Batt ", "battery ",
	"Dist ", "distance ",
	"Alt ", "altitude ",
	"Hdg ", "heading ",
	"Safe ", "safety ",
)

// SpeechText prepares reply text for synthesis. Status line abbreviations
// are spelled out and markup noise is dropped.
func SpeechText(reply string) string {
	return sanitizeSpeechText(expandStatusLine(reply))
}

func expandStatusLine(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "Status - ") {
			continue
		}
		line = statusWords.Replace(strings.TrimSpace(line))
		line = statusPercentPattern.ReplaceAllString(line, "$1 percent")
		line = statusMetersPattern.ReplaceAllString(line, "$1 meters")
		line = statusDegreesPattern.ReplaceAllString(line, "$1 degrees")
		if !strings.HasSuffix(line, ".") {
			line += "."
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// speechSymbols are replaced with a space before the rune pass.
var speechSymbols = strings.NewReplacer(
	"*", " ", "_", " ", "\\", " ", "/", " ", "|", " ",
	"#", " ", "~", " ", "<", " ", ">", " ",
)

// sanitizeSpeechText drops markup, links and glyphs that a synthesizer would
// read out literally, and collapses whitespace.
func sanitizeSpeechText(raw string) string {
	raw = speechFencedCodePattern.ReplaceAllString(raw, " ")
	raw = speechInlineCodePattern.ReplaceAllString(raw, " ")
	raw = speechMarkdownLinkPattern.ReplaceAllString(raw, "$1")
	raw = speechURLPattern.ReplaceAllString(raw, " ")
	raw = speechSymbols.Replace(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(raw))
	space := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), " ") {
			b.WriteByte(' ')
		}
	}
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
			space()
		case r == '\u200d' || r == '\ufe0f' || r == '\u20e3',
			unicode.IsControl(r),
			unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
		case strings.ContainsRune(".,!?:;'\"-()", r):
			b.WriteRune(r)
		case unicode.IsPunct(r):
			space()
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
