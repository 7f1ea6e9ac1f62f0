// Package transcript turns a raw speech-to-text result into clean,
// delivery-ready text.
//
// The [Pipeline] applies a fixed sequence of pure [Stage] rewrites:
//
//  1. [FillerRemover]: drops configured filler words ("um", "uh").
//  2. [FragmentRepairer]: collapses stutters such as "I wan- I want".
//  3. [IntentCorrector]: honours spoken self-corrections ("scratch that",
//     "no,", "I mean") by keeping only the final phrasing.
//  4. [Dictionary]: user-defined phrase substitutions, optionally phonetic.
//  5. [Normalizer]: whitespace cleanup and first-letter capitalisation.
//
// The order is significant: fragment repair must run before intent
// correction so that a truncated word is never mistaken for a trigger
// phrase. Every stage is a total function, so the pipeline never fails and
// the same input always yields the same output.
//
// A Pipeline is immutable after construction and safe for concurrent use.
package transcript

// Stage is a single pure rewrite step.
type Stage interface {
	// Name identifies the stage in the correction audit trail.
	Name() string

	// Apply rewrites text. It must accept any input, including the empty
	// string, and must not keep state between calls.
	Apply(text string) string
}

// Correction records one stage that changed the text.
type Correction struct {
	// Stage is the [Stage.Name] of the stage that made the change.
	Stage string

	// Before is the text as the stage received it.
	Before string

	// After is the text the stage produced.
	After string
}

// Result is the output of [Pipeline.Correct].
type Result struct {
	// Raw is the transcript exactly as received.
	Raw string

	// Corrected is the text after every stage has run.
	Corrected string

	// Corrections lists, in order, every stage that changed the text. Empty
	// when no stage made a change.
	Corrections []Correction
}

// Changed reports whether any stage rewrote the text.
func (r Result) Changed() bool { return len(r.Corrections) > 0 }

// Pipeline runs the correction stages in their fixed order.
type Pipeline struct {
	stages []Stage
}

// NewPipeline builds the standard five-stage pipeline. Without options it
// removes the default fillers, uses the default intent triggers, and applies
// no dictionary substitutions.
func NewPipeline(opts ...Option) *Pipeline {
	s := defaultSettings()
	for _, o := range opts {
		o(&s)
	}

	stages := make([]Stage, 0, 5)
	if s.removeFillers {
		stages = append(stages, NewFillerRemover(s.fillers))
	}
	stages = append(stages,
		NewFragmentRepairer(),
		NewIntentCorrector(s.triggers),
		NewDictionary(s.dictionary, s.matcher),
		NewNormalizer(),
	)
	return &Pipeline{stages: stages}
}

// Stages returns the names of the configured stages in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, st := range p.stages {
		names[i] = st.Name()
	}
	return names
}

// Correct runs raw through every stage.
func (p *Pipeline) Correct(raw string) Result {
	res := Result{Raw: raw, Corrections: []Correction{}}
	text := raw
	for _, st := range p.stages {
		out := st.Apply(text)
		if out != text {
			res.Corrections = append(res.Corrections, Correction{
				Stage:  st.Name(),
				Before: text,
				After:  out,
			})
		}
		text = out
	}
	res.Corrected = text
	return res
}
