package transcript

import "strings"

// Normalizer collapses whitespace runs, trims the ends, and capitalises the
// first letter.
type Normalizer struct{}

var _ Stage = (*Normalizer)(nil)

// NewNormalizer returns a [Normalizer].
func NewNormalizer() *Normalizer { return &Normalizer{} }

// Name implements [Stage].
func (*Normalizer) Name() string { return "normalize" }

// Apply implements [Stage].
func (*Normalizer) Apply(text string) string {
	return upperFirst(strings.Join(strings.Fields(text), " "))
}
