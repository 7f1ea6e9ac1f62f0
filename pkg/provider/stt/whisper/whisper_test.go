package whisper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/flux/pkg/audio"
	"github.com/MrWong99/flux/pkg/provider/stt"
	"github.com/MrWong99/flux/pkg/types"
)

func TestNew_RequiresURL(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty server URL")
	}
}

func TestTranscribe_PostsMultipartWAV(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path = %q, want /inference", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("language"); got != "de" {
			t.Errorf("language = %q, want de", got)
		}
		if got := r.FormValue("model"); got != "small" {
			t.Errorf("model = %q, want small", got)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" hallo welt\n"}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL, WithLanguage("de"), WithModel("small"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clip := types.AudioClip{PCM: audio.Int16ToBytes(nil, []int16{1, 2, 3}), SampleRate: 16000, Channels: 1}
	tr, err := p.Transcribe(context.Background(), clip)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "hallo welt" {
		t.Errorf("Text = %q, want %q", tr.Text, "hallo welt")
	}
}

func TestTranscribe_HTTPError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	clip := types.AudioClip{PCM: []byte{1, 0}, SampleRate: 16000, Channels: 1}
	if _, err := p.Transcribe(context.Background(), clip); err == nil {
		t.Fatal("expected error on HTTP 502")
	}
}

func TestTranscribe_EmptyClip(t *testing.T) {
	t.Parallel()
	p, _ := New("http://localhost:1")
	if _, err := p.Transcribe(context.Background(), types.AudioClip{}); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Errorf("err = %v, want ErrEmptyAudio", err)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	if err := p.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}
