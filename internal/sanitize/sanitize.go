// Package sanitize cleans the free-text fields of trial records posted by
// the experiment client before they reach the trial database. It strips
// control characters and markup and bounds field lengths, so stored rows
// stay safe to print in tables and to hand to MCP clients.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxIDLength is the maximum allowed length for user and session ids.
const MaxIDLength = 128

// MaxLabelLength is the maximum allowed length for block and stimulus labels.
const MaxLabelLength = 32

var (
	// reTag matches XML/HTML tags including those with attributes and self-closing tags.
	reTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>`)

	// reRepeatedHyphens matches 2 or more consecutive hyphens.
	reRepeatedHyphens = regexp.MustCompile(`-{2,}`)

	// reRepeatedUnderscores matches 2 or more consecutive underscores.
	reRepeatedUnderscores = regexp.MustCompile(`_{2,}`)
)

// ID sanitizes a participant or session id: control characters and tags
// are removed, surrounding whitespace is trimmed, and the result is
// truncated to MaxIDLength bytes on a rune boundary. Anything else the
// client chose (uuids, emails, prolific ids) is kept as is.
func ID(input string) string {
	if input == "" {
		return ""
	}
	s := stripControlChars(input)
	s = reTag.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	return truncate(s, MaxIDLength)
}

// Label sanitizes a block or stimulus label. Tags are removed, then only
// [a-zA-Z0-9-_] is kept and repeated hyphens or underscores are collapsed.
// The result is at most MaxLabelLength bytes.
func Label(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range reTag.ReplaceAllString(input, "") {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	s := reRepeatedHyphens.ReplaceAllString(b.String(), "-")
	s = reRepeatedUnderscores.ReplaceAllString(s, "_")
	return truncate(s, MaxLabelLength)
}

// stripControlChars removes ASCII control characters (0x00-0x1F) and DEL.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
