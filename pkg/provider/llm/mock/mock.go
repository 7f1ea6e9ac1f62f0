// Package mock provides a scripted llm.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/flux/pkg/provider/llm"
)

// Call is one recorded Complete invocation.
type Call struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Provider returns CompleteResponse and CompleteErr from every Complete call
// and records the requests it saw. Configure it before use.
type Provider struct {
	CompleteResponse *llm.CompletionResponse
	CompleteErr      error

	// Block, when non-nil, holds Complete until it is closed or the context
	// ends.
	Block chan struct{}

	mu    sync.Mutex
	calls []Call
}

var _ llm.Provider = (*Provider)(nil)

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Ctx: ctx, Req: req})
	p.mu.Unlock()

	if p.Block != nil {
		select {
		case <-p.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.CompleteResponse, p.CompleteErr
}

// Calls returns the recorded calls in order.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}
