package indexer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TextContent is text in one of the shapes extraction can produce. It is
// normalized to a string once, before sanitizing.
type TextContent interface {
	String() string
}

// Plain is ordinary text.
type Plain string

func (p Plain) String() string { return string(p) }

// Segments is text split into pieces, joined with single spaces.
type Segments []string

func (s Segments) String() string { return strings.Join(s, " ") }

// Structured is any other value. It is rendered as JSON, falling back to %v.
type Structured struct {
	Value interface{}
}

func (s Structured) String() string {
	switch v := s.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	b, err := json.Marshal(s.Value)
	if err != nil {
		return fmt.Sprint(s.Value)
	}
	return string(b)
}

// ContentOf wraps an arbitrary value in the matching TextContent shape.
func ContentOf(v interface{}) TextContent {
	switch t := v.(type) {
	case TextContent:
		return t
	case string:
		return Plain(t)
	case []string:
		return Segments(t)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, ContentOf(e).String())
		}
		return Segments(parts)
	default:
		return Structured{Value: v}
	}
}
