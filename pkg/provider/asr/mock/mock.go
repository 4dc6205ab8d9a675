// Package mock provides a scripted asr.Recognizer for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/feihua/pkg/provider/asr"
)

// Recognizer is a test double for asr.Recognizer. It returns the configured
// transcript (or error) for every call and records the audio it received.
type Recognizer struct {
	mu         sync.Mutex
	transcript asr.Transcript
	err        error
	calls      int
}

// Compile-time interface check.
var _ asr.Recognizer = (*Recognizer)(nil)

// New creates a Recognizer that always returns the given text.
func New(text string) *Recognizer {
	return &Recognizer{transcript: asr.Transcript{Text: text, Confidence: 1}}
}

// NewError creates a Recognizer that always fails with err.
func NewError(err error) *Recognizer {
	return &Recognizer{err: err}
}

// Recognize implements asr.Recognizer.
func (r *Recognizer) Recognize(ctx context.Context, _ []byte, _ asr.Format) (asr.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return asr.Transcript{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return asr.Transcript{}, r.err
	}
	return r.transcript, nil
}

// CallCount returns the number of Recognize invocations.
func (r *Recognizer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
