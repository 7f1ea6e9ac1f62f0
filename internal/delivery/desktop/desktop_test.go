package desktop

import (
	"context"
	"errors"
	"slices"
	"testing"
)

type fakeClipboard struct {
	contents string
	readErr  error
	writeErr error
	writes   []string
}

func (f *fakeClipboard) Read() (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.contents, nil
}

func (f *fakeClipboard) Write(text string) error {
	f.writes = append(f.writes, text)
	if f.writeErr != nil {
		return f.writeErr
	}
	f.contents = text
	return nil
}

func TestSwapPaste(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		clip       *fakeClipboard
		keyErr     error
		wantWrites []string
		wantErr    bool
	}{
		{
			name:       "restores previous contents",
			clip:       &fakeClipboard{contents: "copied earlier"},
			wantWrites: []string{"dictated", "copied earlier"},
		},
		{
			name:       "unreadable clipboard is not cleared",
			clip:       &fakeClipboard{readErr: errors.New("no owner")},
			wantWrites: []string{"dictated"},
		},
		{
			name:       "failed write stops before the keystroke",
			clip:       &fakeClipboard{writeErr: errors.New("locked")},
			wantWrites: []string{"dictated"},
			wantErr:    true,
		},
		{
			name:       "failed keystroke leaves the text in place",
			clip:       &fakeClipboard{contents: "copied earlier"},
			keyErr:     errors.New("no accessibility access"),
			wantWrites: []string{"dictated"},
			wantErr:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := swapPaste(context.Background(), tt.clip, "dictated", func() error { return tt.keyErr })
			if (err != nil) != tt.wantErr {
				t.Fatalf("swapPaste error = %v, want error %v", err, tt.wantErr)
			}
			if !slices.Equal(tt.clip.writes, tt.wantWrites) {
				t.Errorf("writes = %q, want %q", tt.clip.writes, tt.wantWrites)
			}
		})
	}
}
