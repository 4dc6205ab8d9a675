package match

// Transcriber converts text to a tone-free phonetic key. Two normalized
// strings are homophones iff their keys are equal — that comparison is the
// only contract the verification engine relies on.
//
// The pronunciation table behind a Transcriber is an external linguistic
// resource; the engine treats the Transcriber as an injected capability and
// never inspects individual syllables. Implementations must be safe for
// concurrent use.
type Transcriber interface {
	// Key maps each rune of text to its tone-free romanized syllable and
	// concatenates the syllables with no separator. Runes without a known
	// pronunciation pass through unchanged so that mixed input still yields
	// a stable, comparable key.
	Key(text string) string
}
