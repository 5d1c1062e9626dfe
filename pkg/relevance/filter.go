package relevance

import (
	"errors"
	"regexp"
	"strings"
)

// DefaultKeywords is used when no keywords are configured.
var DefaultKeywords = []string{"transaction", "spent", "payment"}

var ErrNoKeywords = errors.New("relevance filter requires at least one keyword")

// Filter decides whether a message subject looks like a receipt before the
// model is asked to extract anything from it.
type Filter struct {
	pattern *regexp.Regexp
}

// New compiles a case-insensitive, word-bounded matcher for the keywords.
func New(keywords []string) (*Filter, error) {
	cleaned := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			cleaned = append(cleaned, regexp.QuoteMeta(k))
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoKeywords
	}

	pattern, err := regexp.Compile(`(?i)\b(?:` + strings.Join(cleaned, "|") + `)\b`)
	if err != nil {
		return nil, err
	}
	return &Filter{pattern: pattern}, nil
}

// Match reports whether the subject contains one of the keywords as a whole word.
func (f *Filter) Match(subject string) bool {
	return f.pattern.MatchString(subject)
}
