package sanitize

import (
	"strings"
	"unicode"
)

// separatorRunes are characters used to draw horizontal rule chrome.
var separatorRunes = "─━-="

// promptPrefixes are known chrome line prefixes stripped outright.
var promptPrefixes = []string{"╭", "╰", "│", "┌", "└", "├", "┤", "┬", "┴", "┼"}

// FilterLines applies the optional natural-language-only pass described for
// modes that favor aggressive cleaning: it drops pure-chrome lines (rule
// separators, empty `>` prompts, punctuation-only lines, known box-drawing
// prefixes) and, within kept lines, strips characters that are not letters,
// numbers, spaces, or a small set of sentence punctuation, using Unicode
// category lookups rather than ASCII ranges.
func FilterLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if isChromeLine(line) {
			continue
		}
		kept = append(kept, filterLineContent(line))
	}
	return strings.Join(kept, "\n")
}

func isChromeLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if isSeparatorRun(trimmed) {
		return true
	}
	for _, p := range promptPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	if strings.HasPrefix(trimmed, ">") && strings.TrimSpace(strings.TrimPrefix(trimmed, ">")) == "" {
		return true
	}
	if isPunctuationOnly(trimmed) {
		return true
	}
	return false
}

func isSeparatorRun(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune(separatorRunes, r) {
			return false
		}
	}
	return true
}

func isPunctuationOnly(s string) bool {
	seenAny := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		seenAny = true
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return false
		}
	}
	return seenAny
}

// sentencePunctuation is kept verbatim in filtered line content.
const sentencePunctuation = ".,!?'\":;()-"

func filterLineContent(line string) string {
	var out strings.Builder
	out.Grow(len(line))
	for _, r := range line {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r), unicode.IsSpace(r):
			out.WriteRune(r)
		case strings.ContainsRune(sentencePunctuation, r):
			out.WriteRune(r)
		}
	}
	return out.String()
}
