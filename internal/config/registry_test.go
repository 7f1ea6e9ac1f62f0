package config_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/flux/internal/config"
	"github.com/MrWong99/flux/pkg/provider/llm"
	llmmock "github.com/MrWong99/flux/pkg/provider/llm/mock"
	"github.com/MrWong99/flux/pkg/provider/stt"
	sttmock "github.com/MrWong99/flux/pkg/provider/stt/mock"
	"github.com/MrWong99/flux/pkg/types"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	reg.RegisterSTT("fake", func(e config.ProviderEntry) (stt.Transcriber, error) {
		return &sttmock.Transcriber{Result: stt.Transcript{Text: e.Model}}, nil
	})
	reg.RegisterLLM("fake", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})
	reg.RegisterLLM("broken", func(config.ProviderEntry) (llm.Provider, error) {
		return nil, errors.New("bad key")
	})

	tr, err := reg.CreateSTT(config.ProviderEntry{Name: "fake", Model: "tiny"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	res, err := tr.Transcribe(context.Background(), types.AudioClip{PCM: []byte{1, 0}, SampleRate: 16000, Channels: 1})
	if err != nil || res.Text != "tiny" {
		t.Errorf("factory did not receive the entry: %q %v", res.Text, err)
	}

	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "fake"}); err != nil {
		t.Errorf("CreateLLM: %v", err)
	}
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "broken"}); err == nil {
		t.Error("factory error not returned")
	}
	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSTT(nope) = %v, want ErrProviderNotRegistered", err)
	}
	if got := reg.Names("llm"); !slices.Equal(got, []string{"broken", "fake"}) {
		t.Errorf("Names(llm) = %v", got)
	}
}
