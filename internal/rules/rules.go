package rules

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyPattern is returned when an entry is blank after trimming.
	ErrEmptyPattern = errors.New("rules: empty pattern")

	// ErrDuplicatePattern is returned when an entry already exists
	// (comparison is case-insensitive).
	ErrDuplicatePattern = errors.New("rules: duplicate pattern")
)

// Set is an ordered collection of case-insensitive substring patterns.
// A URL matches the set iff it contains any pattern as a substring,
// regardless of case. Insertion order is preserved for display; entries are
// unique under case folding.
type Set struct {
	entries []string // original casing, insertion order
	lowered []string // parallel slice, folded once at insert time
}

// NewSet builds a set from entries, trimming whitespace and silently
// dropping blanks and case-insensitive duplicates. Used when loading from
// storage, where the invariants already held at write time.
func NewSet(entries []string) *Set {
	s := &Set{}
	for _, e := range entries {
		_ = s.Add(e)
	}
	return s
}

// NewStrictSet builds a set from entries, rejecting blanks and
// case-insensitive duplicates. Used on the write path, where invalid input
// must surface to the caller instead of being dropped.
func NewStrictSet(entries []string) (*Set, error) {
	s := &Set{}
	for _, e := range entries {
		if err := s.Add(e); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends a pattern. Returns ErrEmptyPattern or ErrDuplicatePattern
// when the entry cannot be accepted.
func (s *Set) Add(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return ErrEmptyPattern
	}

	lowered := strings.ToLower(pattern)
	for _, existing := range s.lowered {
		if existing == lowered {
			return ErrDuplicatePattern
		}
	}

	s.entries = append(s.entries, pattern)
	s.lowered = append(s.lowered, lowered)
	return nil
}

// Remove deletes a pattern (case-insensitive). Reports whether it existed.
func (s *Set) Remove(pattern string) bool {
	lowered := strings.ToLower(strings.TrimSpace(pattern))
	for i, existing := range s.lowered {
		if existing == lowered {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			s.lowered = append(s.lowered[:i], s.lowered[i+1:]...)
			return true
		}
	}
	return false
}

// Match reports whether url contains any pattern as a case-insensitive
// substring, returning the first matching pattern in insertion order.
func (s *Set) Match(url string) (string, bool) {
	if url == "" || len(s.lowered) == 0 {
		return "", false
	}

	folded := strings.ToLower(url)
	for i, pattern := range s.lowered {
		if strings.Contains(folded, pattern) {
			return s.entries[i], true
		}
	}
	return "", false
}

// Entries returns the patterns in insertion order.
func (s *Set) Entries() []string {
	out := make([]string, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of patterns.
func (s *Set) Len() int {
	return len(s.entries)
}
