package phonetic_test

import (
	"testing"

	"github.com/MrWong99/flux/internal/transcript/phonetic"
)

func TestPrepare_SkipsBlank(t *testing.T) {
	t.Parallel()

	terms := phonetic.Prepare([]string{"Sarah", "  ", "", "Tower of London"})
	if len(terms) != 2 {
		t.Fatalf("Prepare: got %d terms, want 2", len(terms))
	}
	if terms[0].Text != "Sarah" || terms[0].Words() != 1 {
		t.Errorf("terms[0] = %q (%d words), want Sarah (1 word)", terms[0].Text, terms[0].Words())
	}
	if terms[1].Words() != 3 {
		t.Errorf("terms[1].Words() = %d, want 3", terms[1].Words())
	}
}

func TestMatcher_Match(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	terms := phonetic.Prepare([]string{"Sarah", "Postgres", "Tower of Whispers"})

	tests := []struct {
		name    string
		phrase  string
		want    string
		matched bool
	}{
		{name: "phonetic spelling", phrase: "Sara", want: "Sarah", matched: true},
		{name: "case insensitive", phrase: "POSTGRES", want: "Postgres", matched: true},
		{name: "multi word", phrase: "tower of wispers", want: "Tower of Whispers", matched: true},
		{name: "unrelated word", phrase: "hello", want: "hello", matched: false},
		{name: "blank", phrase: "   ", want: "   ", matched: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, conf, ok := m.Match(tt.phrase, terms)
			if ok != tt.matched {
				t.Fatalf("Match(%q): matched=%v, want %v", tt.phrase, ok, tt.matched)
			}
			if got != tt.want {
				t.Errorf("Match(%q) = %q, want %q", tt.phrase, got, tt.want)
			}
			if !ok && conf != 0 {
				t.Errorf("Match(%q): confidence=%f on miss, want 0", tt.phrase, conf)
			}
			if ok && conf < 0.8 {
				t.Errorf("Match(%q): confidence=%f, want >= 0.8", tt.phrase, conf)
			}
		})
	}
}

func TestMatcher_NoTerms(t *testing.T) {
	t.Parallel()

	got, _, ok := phonetic.New().Match("anything", nil)
	if ok || got != "anything" {
		t.Errorf("Match with no terms = (%q, %v), want (%q, false)", got, ok, "anything")
	}
}

func TestMatcher_StricterThresholdRejects(t *testing.T) {
	t.Parallel()

	m := phonetic.New(phonetic.WithPhoneticThreshold(0.999), phonetic.WithFuzzyThreshold(0.999))
	if _, _, ok := m.Match("Sara", phonetic.Prepare([]string{"Sarah"})); ok {
		t.Error("Match with 0.999 thresholds: matched=true, want false")
	}
}
