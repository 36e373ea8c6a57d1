package indexer

import (
	"errors"
	"strings"
	"unicode"
)

// Reasons a text is not embeddable.
var (
	ErrEmptyContent   = errors.New("content is empty")
	ErrControlContent = errors.New("content contains control characters")
)

// Sanitize normalizes c to text and returns it trimmed if it can be embedded.
// Text that is blank or holds an ASCII control character other than tab, line
// feed or carriage return is rejected.
func Sanitize(c TextContent) (string, error) {
	if c == nil {
		return "", ErrEmptyContent
	}
	text := strings.TrimSpace(c.String())
	if text == "" {
		return "", ErrEmptyContent
	}
	if strings.IndexFunc(text, isRejectedControl) >= 0 {
		return "", ErrControlContent
	}
	return text, nil
}

func isRejectedControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return r < 0x20 || r == 0x7f
}

// Clean strips control characters and collapses whitespace runs to one space,
// for text that is indexed for keywords even when it cannot be embedded.
func Clean(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := true
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}
