// Package asr defines the Recognizer interface for sentence-level speech
// recognition backends.
//
// The game accepts spoken verses; a recognizer turns one recorded utterance
// into text that is then verified like any typed submission. Only the call
// contract is modeled here — one bounded audio clip in, one transcript out,
// matching the cloud sentence-recognition APIs the product integrates with.
// The concrete vendor client lives outside this repository.
//
// Implementations must be safe for concurrent use and must respect context
// cancellation.
package asr

import "context"

// Format identifies the encoding of a submitted audio clip.
type Format string

const (
	// FormatPCM16K is 16 kHz mono 16-bit little-endian PCM.
	FormatPCM16K Format = "pcm16k"

	// FormatWAV is a RIFF/WAV container.
	FormatWAV Format = "wav"

	// FormatSpeex is Speex-compressed audio as produced by the web client.
	FormatSpeex Format = "speex"
)

// Transcript is the recognition result for one utterance.
type Transcript struct {
	// Text is the recognized sentence.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// provider does not report confidence.
	Confidence float64
}

// Recognizer is the abstraction over any sentence-recognition backend.
type Recognizer interface {
	// Recognize transcribes a single recorded utterance. audio holds the
	// complete clip in the given format; recognizers do not stream.
	// A clip with no recognizable speech yields an empty Text, not an error.
	Recognize(ctx context.Context, audio []byte, format Format) (Transcript, error)
}
