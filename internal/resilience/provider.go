package resilience

import (
	"context"

	"github.com/MrWong99/feihua/pkg/provider/llm"
)

// Provider wraps an llm.Provider with a [Breaker]. Completion errors count
// against the breaker; while it is open, Complete fails fast with [ErrOpen]
// wrapped in the breaker's name.
type Provider struct {
	inner   llm.Provider
	breaker *Breaker
}

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// Guard wraps provider with a breaker. A nil breaker gets defaults under the
// given name.
func Guard(provider llm.Provider, breaker *Breaker) *Provider {
	if breaker == nil {
		breaker = NewBreaker("llm")
	}
	return &Provider{inner: provider, breaker: breaker}
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var resp *llm.CompletionResponse
	err := p.breaker.Do(func() error {
		var err error
		resp, err = p.inner.Complete(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Breaker returns the guarding breaker, for health reporting.
func (p *Provider) Breaker() *Breaker {
	return p.breaker
}
