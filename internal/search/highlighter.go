package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Highlight returns a snippet of at most maxLen bytes of content (plus
// ellipses) centered on the first query term found, with every query term
// wrapped in <mark> tags. Without a match it returns the leading text.
func Highlight(content, query string, maxLen int) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	if maxLen <= 0 {
		maxLen = 200
	}
	terms := queryTerms(query)
	lower := strings.ToLower(content)

	start := 0
	for _, term := range terms {
		if i := strings.Index(lower, term); i >= 0 {
			start = i - maxLen/4
			break
		}
	}
	if start < 0 {
		start = 0
	}
	end := start + maxLen
	if end > len(content) {
		end = len(content)
		start = max(0, end-maxLen)
	}
	start = runeStart(content, start)
	end = runeStart(content, end)

	snippet := markTerms(content[start:end], terms)
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet += "..."
	}
	return snippet
}

func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			terms = append(terms, f)
		}
	}
	return terms
}

// markTerms wraps case-insensitive occurrences of terms in s.
func markTerms(s string, terms []string) string {
	if len(terms) == 0 {
		return s
	}
	lower := strings.ToLower(s)
	// ToLower can change byte lengths for some scripts; skip marking then.
	if len(lower) != len(s) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		matched := ""
		for _, t := range terms {
			if strings.HasPrefix(lower[i:], t) && len(t) > len(matched) {
				matched = t
			}
		}
		if matched == "" {
			b.WriteByte(s[i])
			i++
			continue
		}
		b.WriteString("<mark>")
		b.WriteString(s[i : i+len(matched)])
		b.WriteString("</mark>")
		i += len(matched)
	}
	return b.String()
}

// runeStart moves i back to the start of a UTF-8 sequence.
func runeStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
