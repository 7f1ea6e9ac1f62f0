package transcript

import (
	"strings"
)

// trailingPunct is stripped from a token before comparing it with the
// filler vocabulary.
const trailingPunct = ",.!?;:"

// FillerRemover drops standalone filler words. Comparison is
// case-insensitive and ignores trailing punctuation. A filler followed by a
// comma disappears together with the comma; any other terminal punctuation
// is moved onto the preceding word so sentence boundaries survive.
//
// Fillers are matched as whole tokens, so "um" never touches "umbrella".
type FillerRemover struct {
	words map[string]struct{}
}

var _ Stage = (*FillerRemover)(nil)

// NewFillerRemover builds a remover for words. Blank entries are ignored.
func NewFillerRemover(words []string) *FillerRemover {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return &FillerRemover{words: set}
}

// Name implements [Stage].
func (f *FillerRemover) Name() string { return "filler" }

// Apply implements [Stage].
func (f *FillerRemover) Apply(text string) string {
	if len(f.words) == 0 || text == "" {
		return text
	}
	tokens := strings.Fields(text)
	out := make([]string, 0, len(tokens))
	removed := false
	for _, tok := range tokens {
		core := strings.TrimRight(tok, trailingPunct)
		if _, ok := f.words[strings.ToLower(core)]; !ok || core == "" {
			out = append(out, tok)
			continue
		}
		removed = true
		tail := strings.Trim(tok[len(core):], ",")
		if tail != "" && len(out) > 0 {
			prev := strings.TrimRight(out[len(out)-1], ",")
			out[len(out)-1] = prev + tail
		}
	}
	if !removed {
		return text
	}
	return strings.Join(out, " ")
}
