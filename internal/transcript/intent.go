package transcript

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxIntentRounds bounds the rewrite loop. Every round removes a trigger,
// so real input never gets close.
const maxIntentRounds = 64

// leadingJunk is trimmed from the text that follows a trigger.
const leadingJunk = " \t\r\n,.;:!?-–—…"

// trailingJunk is trimmed from a kept prefix when a trigger ends the text.
const trailingJunk = " \t\r\n,;:-–—"

// IntentCorrector keeps only the speaker's final phrasing when they correct
// themselves mid-utterance.
//
// The last trigger phrase in the text splits it into the retracted part and
// the replacement. Only the unfinished sentence the trigger interrupts is
// discarded: completed sentences before it are kept and the replacement
// starts a new sentence. A trigger that ends the text retracts nothing and is simply
// dropped. A trigger at the very start of the text is not treated as a
// correction at all.
type IntentCorrector struct {
	re *regexp.Regexp
}

var _ Stage = (*IntentCorrector)(nil)

// NewIntentCorrector compiles the trigger phrases. Matching is
// case-insensitive, respects word boundaries, and tolerates any run of
// whitespace between the words of a phrase.
func NewIntentCorrector(triggers []string) *IntentCorrector {
	phrases := make([]string, 0, len(triggers))
	for _, t := range triggers {
		if t = strings.TrimSpace(t); t != "" {
			phrases = append(phrases, t)
		}
	}
	if len(phrases) == 0 {
		return &IntentCorrector{}
	}
	// Longer phrases first so that a phrase wins over any trigger it contains.
	slices.SortStableFunc(phrases, func(a, b string) int { return len(b) - len(a) })

	alts := make([]string, len(phrases))
	for i, p := range phrases {
		alts[i] = phrasePattern(p)
	}
	return &IntentCorrector{re: regexp.MustCompile(`(?i)(?:` + strings.Join(alts, "|") + `)`)}
}

// Name implements [Stage].
func (*IntentCorrector) Name() string { return "intent" }

// Apply implements [Stage].
func (c *IntentCorrector) Apply(text string) string {
	if c.re == nil || text == "" {
		return text
	}

	var kept []string
	work := text
	for range maxIntentRounds {
		locs := c.re.FindAllStringIndex(work, -1)
		if len(locs) == 0 {
			break
		}
		loc := locs[len(locs)-1]
		before := strings.TrimSpace(work[:loc[0]])
		after := strings.TrimLeft(work[loc[1]:], leadingJunk)
		after = strings.TrimSpace(after)

		if before == "" {
			break
		}
		if after == "" {
			work = strings.TrimRight(before, trailingJunk)
			continue
		}
		if end := lastSentenceEnd(before); end > 0 {
			kept = append(kept, c.Apply(before[:end]))
			work = upperFirst(after)
			continue
		}
		work = after
	}

	if len(kept) == 0 {
		if work == strings.TrimSpace(text) {
			return text
		}
		return work
	}
	if work != "" {
		kept = append(kept, work)
	}
	return strings.Join(kept, " ")
}

// phrasePattern turns a literal phrase into a regexp fragment with word
// boundaries at its alphanumeric edges.
func phrasePattern(phrase string) string {
	words := strings.Fields(phrase)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	pat := strings.Join(words, `\s+`)
	if first, _ := utf8.DecodeRuneInString(phrase); isWordRune(first) {
		pat = `\b` + pat
	}
	if last, _ := utf8.DecodeLastRuneInString(phrase); isWordRune(last) {
		pat += `\b`
	}
	return pat
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// lastSentenceEnd returns the length of the longest prefix of s that ends
// in a sentence terminator followed by whitespace or the end of s, or 0.
func lastSentenceEnd(s string) int {
	next := utf8.RuneError
	for i := len(s); i > 0; {
		r, size := utf8.DecodeLastRuneInString(s[:i])
		if (r == '.' || r == '!' || r == '?') && (i == len(s) || unicode.IsSpace(next)) {
			return i
		}
		next = r
		i -= size
	}
	return 0
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
