package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/flux/pkg/provider/llm"
	"github.com/MrWong99/flux/pkg/types"
)

func TestConvertMessage(t *testing.T) {
	for _, role := range []string{"system", "user", "assistant"} {
		got := convertMessage(types.Message{Role: role, Content: "hi"})
		if got.Role != role {
			t.Errorf("role = %q, want %q", got.Role, role)
		}
		if got.ContentString() != "hi" {
			t.Errorf("content = %q, want hi", got.ContentString())
		}
	}
}

func TestBuildParams(t *testing.T) {
	p := &Provider{model: "llama3.2"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "Polish the text.",
		Messages:     []types.Message{{Role: "user", Content: "hello world"}},
		Temperature:  0.3,
		MaxTokens:    128,
	})
	if params.Model != "llama3.2" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first role = %q, want system", params.Messages[0].Role)
	}
	if params.Temperature == nil || *params.Temperature != 0.3 {
		t.Errorf("temperature = %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 128 {
		t.Errorf("max tokens = %v", params.MaxTokens)
	}
}

func TestBuildParams_ZeroValuesOmitted(t *testing.T) {
	p := &Provider{model: "m"}
	params := p.buildParams(llm.CompletionRequest{Messages: []types.Message{{Role: "user", Content: "x"}}})
	if params.Temperature != nil || params.MaxTokens != nil {
		t.Error("zero temperature/max tokens should stay nil")
	}
	if len(params.Messages) != 1 {
		t.Errorf("messages = %d, want 1 without system prompt", len(params.Messages))
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		backend, model string
		wantErr        bool
	}{
		{backend: "", model: "gpt-4o", wantErr: true},
		{backend: "openai", model: "", wantErr: true},
		{backend: "fakecloud", model: "some-model", wantErr: true},
		{backend: "ollama", model: "llama3.2"},
		{backend: " Ollama ", model: "llama3.2"},
	}
	for _, tt := range tests {
		p, err := New(tt.backend, tt.model, anyllmlib.WithAPIKey("dummy"))
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%q, %q) err = %v, wantErr %v", tt.backend, tt.model, err, tt.wantErr)
			continue
		}
		if err == nil && p.name != "ollama" {
			t.Errorf("New(%q) name = %q, want ollama", tt.backend, p.name)
		}
	}
}

func TestBackends_AllHaveFactories(t *testing.T) {
	if len(Backends) != len(factories) {
		t.Fatalf("Backends lists %d names, factories has %d", len(Backends), len(factories))
	}
	for _, b := range Backends {
		if _, ok := factories[b]; !ok {
			t.Errorf("backend %q has no factory", b)
		}
	}
}

func TestNew_OpenAI_WithAPIKey(t *testing.T) {
	p, err := New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.model != "gpt-4o-mini" {
		t.Errorf("model = %q", p.model)
	}
}
