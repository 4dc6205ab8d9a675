// Package match provides the text primitives used by verse verification:
// punctuation normalization, verse splitting, rune-level edit distance,
// positional difference location, and the phonetic-key contract used for
// homophone comparison.
//
// All functions in this package operate on runes, never bytes — classical
// Chinese text is multi-byte throughout and every "character" in the game's
// rules means one code point.
package match

import (
	"strings"
	"unicode"
)

// stripSet contains the punctuation removed by [Normalize]: the full-width
// comma, period, exclamation mark, question mark, semicolon, colon, and the
// ideographic (enumeration) comma.
const stripSet = "，。！？；：、"

// verseSet contains the punctuation marks that delimit verses inside a poem's
// content. It is deliberately narrower than [stripSet]: the colon and the
// enumeration comma appear inside verses and must not split them.
const verseSet = "，。！？；"

// Normalize returns text with all verse punctuation and whitespace removed.
// It is pure and idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if unicode.IsSpace(r) || strings.ContainsRune(stripSet, r) {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// SplitVerses splits a poem's content into its verses on the punctuation in
// [verseSet]. Empty fragments are discarded, so every returned verse is
// non-empty by construction.
func SplitVerses(content string) []string {
	parts := strings.FieldsFunc(content, func(r rune) bool {
		return strings.ContainsRune(verseSet, r)
	})
	verses := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			verses = append(verses, p)
		}
	}
	return verses
}
