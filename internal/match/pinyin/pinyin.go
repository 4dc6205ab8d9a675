// Package pinyin implements the [match.Transcriber] interface on top of the
// go-pinyin pronunciation table.
//
// Keys are built from tone-free (Normal style) syllables so that 明/鸣 or
// 晓/小 compare equal. Heteronyms resolve to the table's primary reading —
// for the homophone comparison contract a consistent reading matters more
// than a contextually perfect one, since both sides of the comparison go
// through the same table.
package pinyin

import (
	"strings"

	gopinyin "github.com/mozillazg/go-pinyin"

	"github.com/MrWong99/feihua/internal/match"
)

// Transcriber converts Chinese text to concatenated tone-free pinyin.
// It is read-only after construction and safe for concurrent use.
type Transcriber struct {
	args gopinyin.Args
}

// Compile-time interface check.
var _ match.Transcriber = (*Transcriber)(nil)

// New returns a [Transcriber] using tone-free syllables. Runes outside the
// pronunciation table (Latin letters, digits, stray punctuation) are kept
// verbatim in the key.
func New() *Transcriber {
	args := gopinyin.NewArgs()
	args.Fallback = func(r rune, _ gopinyin.Args) []string {
		return []string{string(r)}
	}
	return &Transcriber{args: args}
}

// Key implements [match.Transcriber].
func (t *Transcriber) Key(text string) string {
	var sb strings.Builder
	for _, readings := range gopinyin.Pinyin(text, t.args) {
		if len(readings) > 0 {
			sb.WriteString(readings[0])
		}
	}
	return sb.String()
}
