package transcript

import (
	"strings"
	"unicode"
)

const (
	// fragmentLookahead is how many following tokens are searched for the
	// completed form of a truncated word.
	fragmentLookahead = 4

	// orphanMaxLen is the longest hyphen-terminated fragment dropped even
	// when no completion follows.
	orphanMaxLen = 3
)

// FragmentRepairer removes stutters and false starts.
//
// A token ending in a hyphen whose letters are a prefix of a nearby word is
// a truncated attempt. When the speaker restarts a phrase before completing
// the word ("I wan- I want"), the repeated lead-in is removed as well. Short
// leftover fragments ("th-") are dropped. Hyphenated compounds such as
// "cross-platform" are not fragments and pass through untouched.
type FragmentRepairer struct{}

var _ Stage = (*FragmentRepairer)(nil)

// NewFragmentRepairer returns a [FragmentRepairer].
func NewFragmentRepairer() *FragmentRepairer { return &FragmentRepairer{} }

// Name implements [Stage].
func (*FragmentRepairer) Name() string { return "fragment" }

// Apply implements [Stage].
func (*FragmentRepairer) Apply(text string) string {
	if !strings.Contains(text, "-") {
		return text
	}
	tokens := strings.Fields(text)
	out := make([]string, 0, len(tokens))
	changed := false

	for i, tok := range tokens {
		frag, ok := fragmentStem(tok)
		if !ok {
			out = append(out, tok)
			continue
		}

		j := completionIndex(tokens, i, frag)
		switch {
		case j < 0:
			if len([]rune(frag)) <= orphanMaxLen {
				changed = true
				continue
			}
			out = append(out, tok)
		case j == i+1:
			changed = true
		default:
			leadIn := tokens[i+1 : j]
			if n := len(leadIn); n <= len(out) && sameWords(out[len(out)-n:], leadIn) {
				out = out[:len(out)-n]
				changed = true
				continue
			}
			// The word was restarted without repeating its lead-in.
			changed = true
		}
	}
	if !changed {
		return text
	}
	return strings.Join(out, " ")
}

// fragmentStem reports whether tok is a truncated word ("wan-") and returns
// the lowercased letters before the hyphen.
func fragmentStem(tok string) (string, bool) {
	if !strings.HasSuffix(tok, "-") {
		return "", false
	}
	stem := strings.TrimSuffix(tok, "-")
	if stem == "" {
		return "", false
	}
	for _, r := range stem {
		if !unicode.IsLetter(r) && r != '\'' {
			return "", false
		}
	}
	return strings.ToLower(stem), true
}

// completionIndex returns the index of the first token after i that starts
// with frag, or -1.
func completionIndex(tokens []string, i int, frag string) int {
	end := min(i+1+fragmentLookahead, len(tokens))
	for j := i + 1; j < end; j++ {
		if _, isFrag := fragmentStem(tokens[j]); isFrag {
			continue
		}
		if strings.HasPrefix(bareWord(tokens[j]), frag) {
			return j
		}
	}
	return -1
}

func sameWords(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if bareWord(a[i]) != bareWord(b[i]) {
			return false
		}
	}
	return true
}

// bareWord lowercases tok and strips surrounding punctuation.
func bareWord(tok string) string {
	return strings.ToLower(strings.TrimFunc(tok, func(r rune) bool {
		return unicode.IsPunct(r) && r != '\'' && r != '-'
	}))
}
