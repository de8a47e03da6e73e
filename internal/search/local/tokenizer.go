package local

import (
	"strings"
	"unicode"
)

// tokenize lower-cases text and splits on non-alphanumeric boundaries.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// termSet returns the distinct terms of a text.
func termSet(text string) map[string]struct{} {
	terms := tokenize(text)
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	return set
}
