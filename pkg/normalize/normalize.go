// Package normalize reduces course codes and names to comparable canonical
// forms. All functions are pure and idempotent; matching and validation both
// depend on every comparison going through the same normal form.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// folder performs Unicode case folding, which is stable under repeated
// application (unlike ToLower for some locales).
var folder = cases.Fold()

// separators are the punctuation runes stripped from course codes so that
// "CS-101", "cs 101", "CS.101" and "CS101" compare equal.
const separators = "-._/:"

// Code reduces a course code to its canonical comparable form: case-folded
// with all whitespace and separator punctuation removed.
func Code(s string) string {
	folded := folder.String(s)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) || strings.ContainsRune(separators, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Text reduces freeform text (course names, descriptions) to a comparable
// form: case-folded, with whitespace runs collapsed to single spaces and
// leading/trailing space trimmed. Punctuation is kept; it carries meaning in
// names ("Calculus I/II").
func Text(s string) string {
	folded := folder.String(s)
	return strings.Join(strings.Fields(folded), " ")
}

// Tokens splits freeform text into normalized word tokens. Used for
// similarity checks between course names.
func Tokens(s string) []string {
	return strings.FieldsFunc(folder.String(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
