package transcript

import (
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/MrWong99/flux/internal/transcript/phonetic"
)

// DictionaryEntry is one user-defined substitution.
type DictionaryEntry struct {
	// From is the phrase as the speech engine writes it. Matched
	// case-insensitively on word boundaries.
	From string

	// To is the replacement, inserted verbatim.
	To string

	// Phonetic additionally replaces phrases that sound like To.
	Phonetic bool
}

// Dictionary applies user substitutions. Exact phrases are replaced in a
// single pass, so a replacement is never matched again; where phrases
// overlap the longest wins. Phonetic terms are then matched over sliding
// word windows.
type Dictionary struct {
	exact    *regexp.Regexp
	to       map[string]string // keyed by phraseKey(From)
	terms    map[int][]phonetic.Term // keyed by word count
	maxWords int
	matcher  *phonetic.Matcher
}

var _ Stage = (*Dictionary)(nil)

// NewDictionary compiles entries. Entries with an empty From are skipped.
// When matcher is nil and some entry is phonetic, a default matcher is used.
func NewDictionary(entries []DictionaryEntry, matcher *phonetic.Matcher) *Dictionary {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b DictionaryEntry) int {
		return len(strings.TrimSpace(b.From)) - len(strings.TrimSpace(a.From))
	})

	d := &Dictionary{matcher: matcher, to: make(map[string]string)}
	var alts, phoneticTerms []string
	for _, e := range sorted {
		from := strings.TrimSpace(e.From)
		if from == "" {
			slog.Warn("transcript: dictionary entry with empty phrase skipped", "to", e.To)
			continue
		}
		if _, dup := d.to[phraseKey(from)]; !dup {
			d.to[phraseKey(from)] = e.To
			alts = append(alts, phrasePattern(from))
		}
		if e.Phonetic && strings.TrimSpace(e.To) != "" {
			phoneticTerms = append(phoneticTerms, e.To)
		}
	}
	if len(alts) > 0 {
		d.exact = regexp.MustCompile(`(?i)(?:` + strings.Join(alts, "|") + `)`)
	}
	d.terms = make(map[int][]phonetic.Term)
	for _, t := range phonetic.Prepare(phoneticTerms) {
		d.terms[t.Words()] = append(d.terms[t.Words()], t)
		d.maxWords = max(d.maxWords, t.Words())
	}
	if len(d.terms) > 0 && d.matcher == nil {
		d.matcher = phonetic.New()
	}
	return d
}

// Name implements [Stage].
func (*Dictionary) Name() string { return "dictionary" }

// Apply implements [Stage].
func (d *Dictionary) Apply(text string) string {
	if text == "" {
		return text
	}
	if d.exact != nil {
		text = d.exact.ReplaceAllStringFunc(text, func(m string) string {
			if to, ok := d.to[phraseKey(m)]; ok {
				return to
			}
			return m
		})
	}
	if len(d.terms) > 0 {
		text = d.applyPhonetic(text)
	}
	return text
}

// phraseKey folds case and whitespace runs so that a match can be looked up
// by the phrase it came from.
func phraseKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// applyPhonetic compares word windows against terms with the same number of
// words, widest first, and replaces the first window that matches. Replaced
// words are not considered again.
func (d *Dictionary) applyPhonetic(text string) string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text
	}
	out := make([]string, 0, len(tokens))
	changed := false

	for i := 0; i < len(tokens); {
		consumed := 0
		for n := min(d.maxWords, len(tokens)-i); n >= 1; n-- {
			terms := d.terms[n]
			if len(terms) == 0 {
				continue
			}
			window := tokens[i : i+n]
			lead, core, trail := splitWindow(window)
			if core == "" {
				continue
			}
			term, _, ok := d.matcher.Match(core, terms)
			if !ok {
				continue
			}
			if term != core {
				out = append(out, lead+term+trail)
				changed = true
			} else {
				out = append(out, window...)
			}
			consumed = n
			break
		}
		if consumed == 0 {
			out = append(out, tokens[i])
			consumed = 1
		}
		i += consumed
	}
	if !changed {
		return text
	}
	return strings.Join(out, " ")
}

// splitWindow joins window and separates leading and trailing punctuation
// from the words being matched.
func splitWindow(window []string) (lead, core, trail string) {
	joined := strings.Join(window, " ")
	core = strings.TrimLeftFunc(joined, unicode.IsPunct)
	lead = joined[:len(joined)-len(core)]
	trimmed := strings.TrimRightFunc(core, unicode.IsPunct)
	trail = core[len(trimmed):]
	return lead, trimmed, trail
}
