// Package capability handles the space-separated capability strings
// exchanged between host and client during session negotiation.  A
// capability is a single whitespace-free token naming an optional
// protocol feature.
package capability

import "strings"

// Set is an unordered set of capability tokens.
type Set map[string]struct{}

// Parse splits caps on whitespace into a Set.  An empty or blank
// string yields an empty set.
func Parse(caps string) Set {
	fields := strings.Fields(caps)
	s := make(Set, len(fields))
	for _, f := range fields {
		s[f] = struct{}{}
	}
	return s
}

// Has reports whether c is in the set.  The empty capability is never
// a member.
func (s Set) Has(c string) bool {
	if c == "" {
		return false
	}
	_, ok := s[c]
	return ok
}

// Intersect returns the tokens of a that also appear in b, in a's
// order, without duplicates.
func Intersect(a, b string) string {
	other := Parse(b)
	seen := make(Set)
	var out []string
	for _, c := range strings.Fields(a) {
		if !other.Has(c) || seen.Has(c) {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return Join(out)
}

// Join concatenates non-empty tokens with single spaces, preserving
// order.
func Join(tokens []string) string {
	var b strings.Builder
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t)
	}
	return b.String()
}

// Valid reports whether c is usable as a required capability: either
// empty (always eligible) or a single token with no whitespace.
func Valid(c string) bool {
	return c == "" || (len(strings.Fields(c)) == 1 && strings.TrimSpace(c) == c)
}
