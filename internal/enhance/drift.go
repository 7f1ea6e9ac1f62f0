package enhance

import "strings"

// overlap returns the share of original's words that survive, in order, in
// rewritten. It is the length of the longest common word subsequence divided
// by the original word count. Comparison ignores case and surrounding
// punctuation so that polishing alone does not lower the score.
func overlap(original, rewritten string) float64 {
	a := words(original)
	b := words(rewritten)
	if len(a) == 0 {
		return 1
	}
	if len(b) == 0 {
		return 0
	}

	// Two rolling rows of the classic LCS table.
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return float64(prev[len(b)]) / float64(len(a))
}

func words(s string) []string {
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		f = strings.ToLower(strings.Trim(f, ".,;:!?\"'()"))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// refusalPrefixes open the stock replies of a model that declined the text
// or answered it instead of cleaning it up.
var refusalPrefixes = []string{
	"i can't",
	"i cannot",
	"i can not",
	"i won't",
	"i'm sorry",
	"i am sorry",
	"sorry, i",
	"i'm unable",
	"i am unable",
	"as an ai",
	"as a language model",
}

// refused reports whether rewritten opens like a refusal that original did
// not start with. Dictating "I'm sorry I missed you" is not a refusal.
func refused(original, rewritten string) bool {
	in, out := foldQuotes(original), foldQuotes(rewritten)
	for _, p := range refusalPrefixes {
		if strings.HasPrefix(out, p) && !strings.HasPrefix(in, p) {
			return true
		}
	}
	return false
}

func foldQuotes(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "’", "'"))
}
