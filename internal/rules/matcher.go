package rules

import (
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// matchCacheSize bounds the URL verdict cache. Browsing sessions revisit the
// same handful of URLs between ticks, so a small cache absorbs most lookups.
const matchCacheSize = 512

type verdict struct {
	pattern string
	matched bool
}

// Matcher wraps a Set with an LRU cache of URL verdicts. The cache is
// dropped whenever the entries change, so a stale rule set never answers.
// Safe for concurrent use by the tracker and projector.
type Matcher struct {
	mu    sync.RWMutex
	set   *Set
	cache *lru.Cache[string, verdict]
}

// NewMatcher builds a matcher over the given entries.
func NewMatcher(entries []string) (*Matcher, error) {
	cache, err := lru.New[string, verdict](matchCacheSize)
	if err != nil {
		return nil, err
	}

	return &Matcher{
		set:   NewSet(entries),
		cache: cache,
	}, nil
}

// Update replaces the rule set and invalidates all cached verdicts. Called
// with an unchanged set it keeps the cache, so refreshing from storage every
// tick is cheap.
func (m *Matcher) Update(entries []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if slices.Equal(m.set.entries, NewSet(entries).entries) {
		return
	}

	m.set = NewSet(entries)
	m.cache.Purge()
}

// Match reports whether url matches any pattern, returning the first match
// in insertion order.
func (m *Matcher) Match(url string) (string, bool) {
	if url == "" {
		return "", false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if v, ok := m.cache.Get(url); ok {
		return v.pattern, v.matched
	}

	pattern, matched := m.set.Match(url)
	m.cache.Add(url, verdict{pattern: pattern, matched: matched})

	return pattern, matched
}

// Entries returns the patterns in insertion order.
func (m *Matcher) Entries() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.set.Entries()
}
