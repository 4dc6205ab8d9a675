// Package mock provides a scripted llm.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/feihua/pkg/provider/llm"
)

// Provider is a test double for llm.Provider. Replies are consumed in order;
// when the script runs out, the last entry repeats. Safe for concurrent use.
type Provider struct {
	mu      sync.Mutex
	replies []Reply
	calls   []llm.CompletionRequest
}

// Reply is one scripted response. When Err is non-nil it is returned instead
// of the content.
type Reply struct {
	Content string
	Err     error
}

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// New creates a Provider that plays back the given replies.
func New(replies ...Reply) *Provider {
	return &Provider{replies: replies}
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, req)

	if len(p.replies) == 0 {
		return &llm.CompletionResponse{}, nil
	}
	idx := len(p.calls) - 1
	if idx >= len(p.replies) {
		idx = len(p.replies) - 1
	}
	r := p.replies[idx]
	if r.Err != nil {
		return nil, r.Err
	}
	return &llm.CompletionResponse{Content: r.Content}, nil
}

// Calls returns a copy of all requests received so far.
func (p *Provider) Calls() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.CompletionRequest, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns the number of Complete invocations.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
