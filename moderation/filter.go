// Package moderation is the deterministic, synchronous text gate run before
// any attachment or network work, so obviously bad text short-circuits
// cheaply.
package moderation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Violation codes.
const (
	CodeTooLong      = "too-long"
	CodeBannedTerm   = "banned-term"
	CodeTooManyLinks = "too-many-links"
)

// Violation identifies which rule rejected the text.
type Violation struct {
	Code   string
	Reason string
}

// DefaultBannedTerms is the channel's house denylist.
var DefaultBannedTerms = []string{
	"суицид", "бомба", "террор", "насилие", "экстремизм",
}

const (
	// MaxTextLength is the hard cap on submission text, matching the
	// channel's own message limit.
	MaxTextLength = 4000

	maxLinks = 2
)

// Filter evaluates submission text. All checks are case-insensitive and run
// in a fixed order; the first violated rule wins.
type Filter struct {
	banned []string
}

// NewFilter builds a filter over the given denylist. A nil list selects
// DefaultBannedTerms; an explicit empty list disables the term check.
func NewFilter(banned []string) *Filter {
	if banned == nil {
		banned = DefaultBannedTerms
	}
	f := &Filter{}
	for _, term := range banned {
		if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
			f.banned = append(f.banned, term)
		}
	}
	return f
}

// Evaluate returns the first violation found, or nil. Order: length, banned
// terms, link density.
func (f *Filter) Evaluate(text string) *Violation {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return &Violation{
			Code:   CodeTooLong,
			Reason: fmt.Sprintf("message is longer than %d characters", MaxTextLength),
		}
	}
	lower := strings.ToLower(text)
	for _, term := range f.banned {
		if strings.Contains(lower, term) {
			return &Violation{Code: CodeBannedTerm, Reason: "message contains a banned term"}
		}
	}
	if links := strings.Count(lower, "http://") + strings.Count(lower, "https://") + strings.Count(lower, "www."); links > maxLinks {
		return &Violation{Code: CodeTooManyLinks, Reason: "message contains too many links"}
	}
	return nil
}
