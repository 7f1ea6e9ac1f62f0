package resilience

import (
	"context"
	"errors"
	"strings"

	"github.com/MrWong99/flux/pkg/provider/llm"
)

var (
	// ErrNoMessages is returned for a request without messages. It is
	// rejected before any backend is called.
	ErrNoMessages = errors.New("resilience: completion request has no messages")

	// ErrBlankCompletion marks a backend that answered with only whitespace.
	// A blank rewrite is useless for dictation, so the next backend is tried.
	ErrBlankCompletion = errors.New("resilience: blank completion")
)

// LLMFallback implements [llm.Provider] across several language model
// backends, each behind its own circuit breaker.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var (
	_ llm.Provider = (*LLMFallback)(nil)
	_ Reporter     = (*LLMFallback)(nil)
)

// NewLLMFallback returns an [LLMFallback] that prefers primary.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// States reports the breaker state of every backend.
func (f *LLMFallback) States() map[string]State { return f.group.States() }

// AddFallback registers provider after the ones already added.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete returns the first non-blank completion.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, ErrNoMessages
	}
	return ExecuteWithResult(ctx, f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		resp, err := p.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil || strings.TrimSpace(resp.Content) == "" {
			return nil, ErrBlankCompletion
		}
		return resp, nil
	})
}
