package transcript

import "github.com/MrWong99/flux/internal/transcript/phonetic"

// DefaultFillers is the filler vocabulary used when none is configured.
var DefaultFillers = []string{"um", "umm", "uh", "uhm", "erm", "er", "ah", "hmm", "mm"}

// DefaultIntentTriggers are the self-correction phrases recognised when none
// are configured.
var DefaultIntentTriggers = []string{
	"scratch that",
	"actually",
	"wait",
	"no,",
	"correction",
	"never mind",
	"sorry",
	"I mean",
}

type settings struct {
	removeFillers bool
	fillers       []string
	triggers      []string
	dictionary    []DictionaryEntry
	matcher       *phonetic.Matcher
}

func defaultSettings() settings {
	return settings{
		removeFillers: true,
		fillers:       DefaultFillers,
		triggers:      DefaultIntentTriggers,
	}
}

// Option is a functional option for [NewPipeline].
type Option func(*settings)

// WithFillers replaces the filler vocabulary. An empty list keeps the
// defaults.
func WithFillers(words ...string) Option {
	return func(s *settings) {
		if len(words) > 0 {
			s.fillers = words
		}
	}
}

// WithFillerRemoval enables or disables the filler stage. Enabled by default.
func WithFillerRemoval(enabled bool) Option {
	return func(s *settings) {
		s.removeFillers = enabled
	}
}

// WithIntentTriggers replaces the self-correction phrases. An empty list
// keeps the defaults.
func WithIntentTriggers(phrases ...string) Option {
	return func(s *settings) {
		if len(phrases) > 0 {
			s.triggers = phrases
		}
	}
}

// WithDictionary sets the substitution table.
func WithDictionary(entries ...DictionaryEntry) Option {
	return func(s *settings) {
		s.dictionary = entries
	}
}

// WithPhoneticMatcher sets the matcher used for dictionary entries flagged
// as phonetic. When nil a default [phonetic.Matcher] is used.
func WithPhoneticMatcher(m *phonetic.Matcher) Option {
	return func(s *settings) {
		s.matcher = m
	}
}
