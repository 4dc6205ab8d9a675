// Package llm defines the Provider interface for the generative judge's
// transport backend.
//
// A provider wraps a remote or local model API (OpenAI, DeepSeek, Ollama, ...)
// and exposes a single blocking completion call. The lenient judge needs no
// streaming and no tool calling — one prompt in, one structured reply out —
// so the interface is deliberately minimal.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly: a cancelled or expired ctx has to surface as an
// error rather than a hung call.
package llm

import "context"

// Provider is the abstraction over any LLM backend used by the judge.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled or expires
	// before the completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
