package domain

import "sort"

// Set is a set of domain keys, used for the allow list and the ignore list.
// The zero value is an empty set ready for lookups.
type Set map[string]struct{}

// NewSet builds a set from list entries, normalizing each one.
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Contains reports whether the domain key is in the set.
func (s Set) Contains(domain string) bool {
	if s == nil {
		return false
	}
	_, ok := s[domain]
	return ok
}

// Add normalizes and inserts an entry. Empty entries are ignored.
func (s Set) Add(entry string) {
	if key := Normalize(entry); key != "" {
		s[key] = struct{}{}
	}
}

// Remove deletes an entry from the set.
func (s Set) Remove(entry string) {
	delete(s, Normalize(entry))
}

// Slice returns the keys in sorted order.
func (s Set) Slice() []string {
	out := make([]string, 0, len(s))
	for key := range s {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
