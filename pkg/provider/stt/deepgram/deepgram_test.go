package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/flux/pkg/types"
)

func assertEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: want %q, got %q", field, want, got)
	}
}

func TestBuildURL_Defaults(t *testing.T) {
	t.Parallel()
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(types.AudioClip{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "en", q.Get("language"))
	assertEqual(t, "encoding", "linear16", q.Get("encoding"))
	assertEqual(t, "sample_rate", "16000", q.Get("sample_rate"))
	assertEqual(t, "channels", "1", q.Get("channels"))
}

func TestBuildURL_Keywords(t *testing.T) {
	t.Parallel()
	p, _ := New("key", WithModel("base"), WithLanguage("de"), WithKeywords("Kubernetes", "gRPC"))
	rawURL, err := p.buildURL(types.AudioClip{SampleRate: 48000})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, _ := url.Parse(rawURL)
	q := u.Query()
	assertEqual(t, "model", "base", q.Get("model"))
	assertEqual(t, "language", "de", q.Get("language"))
	assertEqual(t, "channels", "1", q.Get("channels"))
	if got := q["keyterm"]; len(got) != 2 {
		t.Errorf("keyterm = %v, want 2 values", got)
	}
}

func TestParseDeepgramResponse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		msg     string
		ok      bool
		final   bool
		meta    bool
		text    string
	}{
		{"final", `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello","confidence":0.9}]}}`, true, true, false, "hello"},
		{"interim", `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"hel"}]}}`, true, false, false, "hel"},
		{"metadata", `{"type":"Metadata"}`, true, false, true, ""},
		{"no alternatives", `{"type":"Results","channel":{"alternatives":[]}}`, false, false, false, ""},
		{"other type", `{"type":"SpeechStarted"}`, false, false, false, ""},
		{"garbage", `not json`, false, false, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev, ok := parseDeepgramResponse([]byte(tt.msg))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if ev.isFinal != tt.final || ev.metadata != tt.meta || ev.text != tt.text {
				t.Errorf("got %+v", ev)
			}
		})
	}
}

func TestTranscribe_CollectsFinals(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token secret" {
			t.Errorf("Authorization = %q", got)
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		received := 0
		for {
			typ, msg, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageBinary {
				received += len(msg)
				continue
			}
			if strings.Contains(string(msg), "CloseStream") {
				break
			}
		}
		if received != 20000 {
			t.Errorf("server received %d bytes, want 20000", received)
		}
		for _, m := range []string{
			`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"send it"}]}}`,
			`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"send it to","confidence":0.8}]}}`,
			`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"Sarah.","confidence":1.0}]}}`,
			`{"type":"Metadata"}`,
		} {
			if err := conn.Write(ctx, websocket.MessageText, []byte(m)); err != nil {
				return
			}
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	p, _ := New("secret", WithEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := p.Transcribe(ctx, types.AudioClip{PCM: make([]byte, 20000), SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "send it to Sarah." {
		t.Errorf("Text = %q", tr.Text)
	}
	if tr.Confidence < 0.89 || tr.Confidence > 0.91 {
		t.Errorf("Confidence = %f, want 0.9", tr.Confidence)
	}
}
