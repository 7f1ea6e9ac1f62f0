package app

import (
	"context"
	"sync/atomic"

	"github.com/MrWong99/flux/internal/capture"
	"github.com/MrWong99/flux/internal/config"
	"github.com/MrWong99/flux/internal/enhance"
	"github.com/MrWong99/flux/internal/transcript"
	"github.com/MrWong99/flux/internal/transcript/phonetic"
	"github.com/MrWong99/flux/pkg/provider/llm"
	"github.com/MrWong99/flux/pkg/types"
)

func buildPipeline(pc config.PipelineConfig) *transcript.Pipeline {
	entries := make([]transcript.DictionaryEntry, 0, len(pc.Dictionary))
	for _, e := range pc.Dictionary {
		entries = append(entries, transcript.DictionaryEntry{From: e.From, To: e.To, Phonetic: e.Phonetic})
	}
	var matcherOpts []phonetic.Option
	if pc.PhoneticThreshold > 0 {
		matcherOpts = append(matcherOpts, phonetic.WithPhoneticThreshold(pc.PhoneticThreshold))
	}
	return transcript.NewPipeline(
		transcript.WithFillerRemoval(pc.FillersEnabled()),
		transcript.WithFillers(pc.Fillers...),
		transcript.WithIntentTriggers(pc.IntentTriggers...),
		transcript.WithDictionary(entries...),
		transcript.WithPhoneticMatcher(phonetic.New(matcherOpts...)),
	)
}

func buildGateway(ec config.EnhancementConfig, provider llm.Provider) *enhance.Gateway {
	opts := []enhance.Option{
		enhance.WithMode(ec.Mode),
		enhance.WithTimeout(ec.Timeout),
		enhance.WithAppStyles(ec.AppStyles),
	}
	if ec.MinOverlap > 0 {
		opts = append(opts, enhance.WithMinOverlap(ec.MinOverlap))
	}
	return enhance.New(provider, opts...)
}

// swapPipeline lets a reload replace the pipeline under running controllers.
// An attempt already in flight finishes with the pipeline it started with.
type swapPipeline struct {
	p atomic.Pointer[transcript.Pipeline]
}

var _ capture.Corrector = (*swapPipeline)(nil)

func newSwapPipeline(p *transcript.Pipeline) *swapPipeline {
	s := &swapPipeline{}
	s.p.Store(p)
	return s
}

func (s *swapPipeline) store(p *transcript.Pipeline) { s.p.Store(p) }

func (s *swapPipeline) Correct(raw string) transcript.Result { return s.p.Load().Correct(raw) }

type swapEnhancer struct {
	g atomic.Pointer[enhance.Gateway]
}

var _ capture.Enhancer = (*swapEnhancer)(nil)

func newSwapEnhancer(g *enhance.Gateway) *swapEnhancer {
	s := &swapEnhancer{}
	s.g.Store(g)
	return s
}

func (s *swapEnhancer) store(g *enhance.Gateway) { s.g.Store(g) }

func (s *swapEnhancer) Enhance(ctx context.Context, text string, app types.AppContext) (string, error) {
	return s.g.Load().Enhance(ctx, text, app)
}

// Enabled reports whether the current gateway would call the model.
func (s *swapEnhancer) Enabled() bool { return s.g.Load().Enabled() }
