package capture

import (
	"net/http"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher decides which observed responses are captured.
//
// A criteria string containing glob metacharacters is compiled as a glob
// over the full URL; anything else is a plain substring test.
type Matcher struct {
	substr string
	g      glob.Glob
}

// NewMatcher builds a Matcher from criteria, using fallback when criteria is
// empty.
func NewMatcher(criteria, fallback string) (*Matcher, error) {
	criteria = strings.TrimSpace(criteria)
	if criteria == "" {
		criteria = fallback
	}
	if !strings.ContainsAny(criteria, "*?[{") {
		return &Matcher{substr: criteria}, nil
	}
	g, err := glob.Compile(criteria)
	if err != nil {
		return nil, err
	}
	return &Matcher{g: g}, nil
}

// Match reports whether a response to method url should be captured.
// Only GET and POST requests qualify.
func (m *Matcher) Match(url, method string) bool {
	if method != http.MethodGet && method != http.MethodPost {
		return false
	}
	if m.g != nil {
		return m.g.Match(url)
	}
	return strings.Contains(url, m.substr)
}
