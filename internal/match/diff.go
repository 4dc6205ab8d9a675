package match

// CharDiff reports a single positional mismatch between a submitted string
// and the canonical verse it was matched against.
type CharDiff struct {
	// Position is the rune index of the mismatch, counted from 0.
	Position int `json:"position"`

	// Input is the submitted rune at Position, or "" when the submission is
	// shorter than the canonical verse.
	Input string `json:"input"`

	// Correct is the canonical rune at Position, or "" when the canonical
	// verse is shorter than the submission.
	Correct string `json:"correct"`
}

// Diff aligns input and correct position by position up to the length of the
// longer string and returns every mismatch. A missing rune past one string's
// end is reported as an empty string.
//
// The result is user-facing explanation only — classification decisions are
// made by the verification tiers, never by Diff.
func Diff(input, correct string) []CharDiff {
	in := []rune(input)
	cr := []rune(correct)

	maxLen := len(in)
	if len(cr) > maxLen {
		maxLen = len(cr)
	}

	var diffs []CharDiff
	for i := 0; i < maxLen; i++ {
		var ic, cc string
		if i < len(in) {
			ic = string(in[i])
		}
		if i < len(cr) {
			cc = string(cr[i])
		}
		if ic != cc {
			diffs = append(diffs, CharDiff{Position: i, Input: ic, Correct: cc})
		}
	}
	return diffs
}
