// Package openai implements llm.Provider on top of the OpenAI chat completions
// API. Any OpenAI-compatible server (llama.cpp, vLLM, LM Studio) works when a
// base URL is configured; such local servers usually need no API key.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/flux/pkg/provider/llm"
	"github.com/MrWong99/flux/pkg/types"
)

// ErrTruncated is returned when the model stopped at its token limit. A cut
// off rewrite would silently drop dictated words, so it is never delivered.
var ErrTruncated = errors.New("openai: completion truncated at token limit")

// Provider polishes dictations through a chat completion endpoint.
type Provider struct {
	client oai.Client
	model  string
}

var _ llm.Provider = (*Provider)(nil)

type settings struct {
	baseURL string
	org     string
	timeout time.Duration
	http    *http.Client
}

// Option configures a Provider.
type Option func(*settings)

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.baseURL = url }
}

// WithOrganization sends the given organization ID with every request.
func WithOrganization(org string) Option {
	return func(s *settings) { s.org = org }
}

// WithTimeout bounds each HTTP round trip. Ignored when WithHTTPClient is set.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.http = c }
}

// New returns a Provider for model. apiKey may only be empty when a base URL
// is given.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	var s settings
	for _, o := range opts {
		o(&s)
	}
	switch {
	case model == "":
		return nil, errors.New("openai: model is required")
	case apiKey == "" && s.baseURL == "":
		return nil, errors.New("openai: an api key is required for the hosted API")
	}

	ro := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		ro = append(ro, option.WithAPIKey(apiKey))
	}
	if s.baseURL != "" {
		ro = append(ro, option.WithBaseURL(s.baseURL))
	}
	if s.org != "" {
		ro = append(ro, option.WithOrganization(s.org))
	}
	switch {
	case s.http != nil:
		ro = append(ro, option.WithHTTPClient(s.http))
	case s.timeout > 0:
		ro = append(ro, option.WithHTTPClient(&http.Client{Timeout: s.timeout}))
	}
	return &Provider{client: oai.NewClient(ro...), model: model}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: complete: response has no choices")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "length" {
		return nil, ErrTruncated
	}
	return &llm.CompletionResponse{
		Content: choice.Message.Content,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (p *Provider) buildParams(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	msgs := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, oai.SystemMessage(req.SystemPrompt))
	}
	for i, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, fmt.Errorf("openai: message %d: %w", i, err)
		}
		msgs = append(msgs, msg)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: msgs,
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params, nil
}

func convertMessage(m types.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case "user":
		return oai.UserMessage(m.Content), nil
	case "assistant":
		return oai.AssistantMessage(m.Content), nil
	case "system":
		return oai.SystemMessage(m.Content), nil
	}
	return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported role %q", m.Role)
}
