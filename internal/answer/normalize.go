// Package answer implements the fuzzy matching rules used to decide whether a
// chat message answers a trivia question.
package answer

import "strings"

// articles are dropped when they appear as whole words.
var articles = map[string]struct{}{
	"a":   {},
	"an":  {},
	"the": {},
}

// Normalize lower-cases text, strips everything outside [a-z0-9 ], drops the
// articles "a", "an" and "the", and collapses whitespace.
func Normalize(text string) string {
	lowered := strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(lowered))
	for i := 0; i < len(lowered); i++ {
		c := lowered[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == ' ' {
			b.WriteByte(c)
		}
	}

	// Splitting on spaces after filtering gives word-boundary semantics for
	// the article check and collapses runs of whitespace in one pass.
	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if _, ok := articles[w]; ok {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// Matches reports whether candidate answers expected: the normalized forms are
// equal, or either one contains the other. An empty normalized candidate never
// matches.
func Matches(candidate, expected string) bool {
	c := Normalize(candidate)
	e := Normalize(expected)
	if c == "" || e == "" {
		return false
	}
	return c == e || strings.Contains(e, c) || strings.Contains(c, e)
}
