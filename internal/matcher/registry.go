package matcher

import (
	"strings"
	"sync"
)

// Registry holds the active keyword list and its compiled matchers behind a
// single read/write critical section. It is safe for concurrent use by the
// stream workers and the refresh paths.
type Registry struct {
	mu       sync.RWMutex
	keywords []string
	patterns []Pattern
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Set atomically replaces the keyword list and matchers. The replacement is
// skipped when the de-duplicated set is empty or identical to the current
// one, so matchers are not recompiled needlessly. It reports whether the
// registry changed.
func (r *Registry) Set(keywords []string) bool {
	patterns := Compile(keywords)
	if len(patterns) == 0 {
		return false
	}

	cleaned := make([]string, len(patterns))
	for i, p := range patterns {
		cleaned[i] = p.Keyword
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if equalFold(r.keywords, cleaned) {
		return false
	}
	r.keywords = cleaned
	r.patterns = patterns
	return true
}

// Keywords returns a copy of the active keyword list.
func (r *Registry) Keywords() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.keywords))
	copy(out, r.keywords)
	return out
}

// MatchHits evaluates all matchers against text under a consistent snapshot
// and returns the keywords that occur in it, preserving registry order.
func (r *Registry) MatchHits(text string) []string {
	r.mu.RLock()
	patterns := r.patterns
	r.mu.RUnlock()

	var hits []string
	for _, p := range patterns {
		if p.Matches(text) {
			hits = append(hits, p.Keyword)
		}
	}
	return hits
}

func equalFold(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
