package match

import "github.com/antzucaro/matchr"

// EditDistance returns the exact Levenshtein distance between a and b,
// counted in runes with unit cost for insert, delete, and substitute.
//
// Callers must pass normalized strings; the fuzzy tier treats exactly
// distance 1 as a match, so the result has to be exact, not approximate.
// Distance 0 means the strings are equal — that case belongs to the exact
// tier and must never be classified as fuzzy.
func EditDistance(a, b string) int {
	return matchr.Levenshtein(a, b)
}
