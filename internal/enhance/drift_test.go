package enhance

import "testing"

func TestOverlap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		original  string
		rewritten string
		want      float64
	}{
		{name: "identical", original: "a b c d", rewritten: "a b c d", want: 1},
		{name: "punctuation and case ignored", original: "send it to sarah", rewritten: "Send it to Sarah.", want: 1},
		{name: "half kept", original: "one two three four", rewritten: "one three five", want: 0.5},
		{name: "empty original", original: "", rewritten: "anything", want: 1},
		{name: "empty rewrite", original: "one", rewritten: "", want: 0},
	}
	for _, tt := range tests {
		if got := overlap(tt.original, tt.rewritten); got != tt.want {
			t.Errorf("%s: overlap = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRefused(t *testing.T) {
	t.Parallel()

	tests := []struct {
		original, rewritten string
		want                bool
	}{
		{"send the invoice", "I can't help with that.", true},
		{"send the invoice", "As an AI, I cannot send emails.", true},
		{"send the invoice", "  i’m unable to do that", true},
		{"i'm sorry i missed your call", "I'm sorry I missed your call.", false},
		{"I’m sorry about that", "I'm sorry about that.", false},
		{"send the invoice", "Send the invoice.", false},
		{"cancel it", "I cannot wait.", true},
	}
	for _, tt := range tests {
		if got := refused(tt.original, tt.rewritten); got != tt.want {
			t.Errorf("refused(%q, %q) = %v, want %v", tt.original, tt.rewritten, got, tt.want)
		}
	}
}
