package trigger

import (
	"errors"
	"slices"
	"testing"
)

func TestParseCombo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "ctrl+space", want: "ctrl+space"},
		{in: "Space + Control", want: "ctrl+space"},
		{in: "command+shift+d", want: "shift+cmd+d"},
		{in: "rshift+alt+ctrl", want: "ctrl+alt+shift"},
		{in: "f13", want: "f13"},
		{in: "ctrl+ctrl+k", want: "ctrl+k"},
		{in: "", wantErr: true},
		{in: "ctrl++k", wantErr: true},
		{in: "ctrl+", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			c, err := ParseCombo(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseCombo(%q) = %v, want error", tc.in, c)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCombo(%q): %v", tc.in, err)
			}
			if got := c.String(); got != tc.want {
				t.Errorf("ParseCombo(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}

	if _, err := ParseCombo("  "); !errors.Is(err, ErrEmptyCombo) {
		t.Errorf("blank combo error = %v, want ErrEmptyCombo", err)
	}
}

func drain(w *Watch) []bool {
	var got []bool
	for {
		select {
		case e := <-w.Edges():
			got = append(got, e)
		default:
			return got
		}
	}
}

func TestTracker_Edges(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	w := tr.Watch(MustParseCombo("ctrl+space"))

	tr.KeyDown("ctrl")
	if w.IsComboHeldNow() {
		t.Fatal("held with only ctrl pressed")
	}
	tr.KeyDown("space")
	tr.KeyDown("space") // auto-repeat
	if !w.IsComboHeldNow() {
		t.Fatal("not held with ctrl+space pressed")
	}
	tr.KeyDown("a") // extra keys do not release the combo
	tr.KeyUp("rctrl")
	tr.KeyUp("space")

	if got, want := drain(w), []bool{true, false}; !slices.Equal(got, want) {
		t.Errorf("edges = %v, want %v", got, want)
	}
}

func TestTracker_ModifiersMatchExactly(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	dictate := tr.Watch(MustParseCombo("ctrl+alt+space"))
	clip := tr.Watch(MustParseCombo("ctrl+alt+shift+space"))

	for _, k := range []string{"ctrl", "alt", "shift", "space"} {
		tr.KeyDown(k)
	}
	if dictate.IsComboHeldNow() {
		t.Error("dictate held while ctrl+alt+shift+space is pressed")
	}
	if got := drain(dictate); len(got) != 0 {
		t.Errorf("dictate edges = %v, want none", got)
	}
	if got := drain(clip); !slices.Equal(got, []bool{true}) {
		t.Errorf("clip edges = %v", got)
	}

	tr.KeyUp("shift")
	if got := drain(clip); !slices.Equal(got, []bool{false}) {
		t.Errorf("clip edges after shift up = %v", got)
	}
	if got := drain(dictate); !slices.Equal(got, []bool{true}) {
		t.Errorf("dictate edges after shift up = %v", got)
	}

	tr.KeyDown("lshift")
	if got := drain(dictate); !slices.Equal(got, []bool{false}) {
		t.Errorf("dictate edges after extra modifier = %v", got)
	}
}

func TestTracker_Reset(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	w := tr.Watch(MustParseCombo("alt+d"))
	tr.KeyDown("alt")
	tr.KeyDown("d")
	tr.Reset()

	if w.IsComboHeldNow() {
		t.Error("held after Reset")
	}
	if got, want := drain(w), []bool{true, false}; !slices.Equal(got, want) {
		t.Errorf("edges = %v, want %v", got, want)
	}
}

func TestTracker_DropsWhenConsumerBehind(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	w := tr.Watch(MustParseCombo("f13"))
	for range edgeBuffer + 4 {
		tr.KeyDown("f13")
		tr.KeyUp("f13")
	}
	if got := len(drain(w)); got != edgeBuffer {
		t.Errorf("buffered %d edges, want %d", got, edgeBuffer)
	}
	if w.IsComboHeldNow() {
		t.Error("held after final release")
	}
}
