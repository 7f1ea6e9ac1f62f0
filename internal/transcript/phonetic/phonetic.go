// Package phonetic finds dictionary terms that a speech-to-text engine has
// spelled the way they sound rather than the way the user writes them.
//
// A candidate phrase matches a term when the two share a Double Metaphone
// code and their Jaro-Winkler similarity reaches the phonetic threshold.
// Without a shared code the similarity must reach the stricter fuzzy
// threshold instead. For multi-word phrases similarity is the better of the
// spaced and the space-stripped comparison.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.92
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum similarity for a candidate that
// shares a phonetic code with the term. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum similarity for a candidate with no
// phonetic overlap. Default: 0.92.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher scores phrases against prepared terms. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with opts.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Term is a dictionary term with its phonetic codes computed once.
type Term struct {
	// Text is the canonical spelling returned on a match.
	Text string

	lower  string
	concat string
	words  int
	codes  map[string]struct{}
}

// Words returns the number of whitespace-separated words in the term.
func (t Term) Words() int { return t.words }

// Prepare computes codes for each non-blank term. Order is preserved so
// that ties resolve to the earlier term.
func Prepare(terms []string) []Term {
	out := make([]Term, 0, len(terms))
	for _, raw := range terms {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		out = append(out, newTerm(text))
	}
	return out
}

func newTerm(text string) Term {
	lower := strings.ToLower(text)
	tokens := strings.Fields(lower)
	concat := strings.Join(tokens, "")
	return Term{
		Text:   text,
		lower:  strings.Join(tokens, " "),
		concat: concat,
		words:  len(tokens),
		codes:  codes(append(tokens, concat)),
	}
}

// Match returns the term that phrase most plausibly represents. When
// nothing reaches a threshold, matched is false, corrected equals phrase
// and confidence is 0.
func (m *Matcher) Match(phrase string, terms []Term) (corrected string, confidence float64, matched bool) {
	if len(terms) == 0 || strings.TrimSpace(phrase) == "" {
		return phrase, 0, false
	}

	in := newTerm(phrase)

	var (
		best         Term
		bestScore    float64
		bestPhonetic bool
	)
	for _, t := range terms {
		score := similarity(in, t)
		if overlaps(in.codes, t.codes) {
			if score >= m.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = t, score, true
			}
			continue
		}
		if !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore {
			best, bestScore = t, score
		}
	}

	if best.Text == "" {
		return phrase, 0, false
	}
	return best.Text, bestScore, true
}

func similarity(a, b Term) float64 {
	score := matchr.JaroWinkler(a.lower, b.lower, false)
	if a.words > 1 || b.words > 1 {
		if s := matchr.JaroWinkler(a.concat, b.concat, false); s > score {
			score = s
		}
	}
	return score
}

// codes returns the union of the Double Metaphone codes of tokens. Empty
// codes are skipped.
func codes(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			set[p] = struct{}{}
		}
		if s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}
