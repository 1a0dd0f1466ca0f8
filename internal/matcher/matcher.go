// Package matcher implements keyword pattern compilation and the shared
// registry of active keywords.
package matcher

import (
	"regexp"
	"strings"
)

// Pattern pairs a keyword with its compiled matcher.
type Pattern struct {
	Keyword string
	re      *regexp.Regexp
}

// Matches reports whether the keyword occurs in text.
func (p Pattern) Matches(text string) bool {
	return p.re.MatchString(text)
}

// Compile turns raw keyword strings into matchers. Keywords are trimmed,
// empty entries dropped, and duplicates removed case-insensitively keeping
// the first occurrence. A keyword containing whitespace becomes a
// case-insensitive substring matcher; a single token becomes a
// case-insensitive whole-word matcher.
func Compile(keywords []string) []Pattern {
	patterns := make([]Pattern, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		expr := "(?i)" + regexp.QuoteMeta(kw)
		if !strings.ContainsAny(kw, " \t") {
			expr = `(?i)\b` + regexp.QuoteMeta(kw) + `\b`
		}
		patterns = append(patterns, Pattern{Keyword: kw, re: regexp.MustCompile(expr)})
	}
	return patterns
}
