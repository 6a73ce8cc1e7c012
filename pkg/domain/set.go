package domain

import (
	"slices"
	"strings"
)

// Set stores normalized domain names.
type Set struct {
	names map[string]struct{}
}

// NewSet creates a Set holding the normalized form of every non-empty name.
func NewSet(names ...string) *Set {
	s := &Set{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		s.Add(name)
	}
	return s
}

// Add inserts name and reports whether it was new.
func (s *Set) Add(name string) bool {
	normalized := Normalize(name)
	if normalized == "" {
		return false
	}
	if _, ok := s.names[normalized]; ok {
		return false
	}
	s.names[normalized] = struct{}{}
	return true
}

// Remove deletes name from the set.
func (s *Set) Remove(name string) {
	delete(s.names, Normalize(name))
}

// Has checks for the normalized form of name.
func (s *Set) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.names[Normalize(name)]
	return ok
}

// Covers reports whether name or one of its parent domains is in the set.
func (s *Set) Covers(name string) bool {
	if s == nil {
		return false
	}
	normalized := Normalize(name)
	if normalized == "" {
		return false
	}
	labels := strings.Split(normalized, ".")
	for i := range labels {
		if _, ok := s.names[strings.Join(labels[i:], ".")]; ok {
			return true
		}
	}
	return false
}

// Merge adds every entry of other.
func (s *Set) Merge(other *Set) {
	if other == nil {
		return
	}
	for name := range other.names {
		s.names[name] = struct{}{}
	}
}

// Len returns the number of entries.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Sorted returns the entries in lexical order.
func (s *Set) Sorted() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.names))
	for name := range s.names {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
