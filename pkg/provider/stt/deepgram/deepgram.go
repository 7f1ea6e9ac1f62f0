// Package deepgram provides a Deepgram-backed Transcriber that streams a
// finished recording over the Deepgram live WebSocket API and collects the
// final results once the stream is closed.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/flux/pkg/provider/stt"
	"github.com/MrWong99/flux/pkg/types"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"

	// chunkBytes is the size of each binary frame sent to Deepgram
	// (250 ms of 16 kHz mono audio).
	chunkBytes = 8000
)

// Compile-time assertion that Provider satisfies stt.Transcriber.
var _ stt.Transcriber = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithKeywords boosts recognition of the given terms (e.g., names from the
// user dictionary).
func WithKeywords(keywords ...string) Option {
	return func(p *Provider) {
		p.keywords = append(p.keywords, keywords...)
	}
}

// WithEndpoint overrides the WebSocket endpoint.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Transcriber backed by the Deepgram streaming API.
type Provider struct {
	apiKey   string
	endpoint string
	model    string
	language string
	keywords []string
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		endpoint: deepgramEndpoint,
		model:    defaultModel,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe opens a session, sends the whole clip, asks Deepgram to flush
// with CloseStream and joins every final result in order.
func (p *Provider) Transcribe(ctx context.Context, clip types.AudioClip) (stt.Transcript, error) {
	if clip.Empty() {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}
	wsURL, err := p.buildURL(clip)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()

	for off := 0; off < len(clip.PCM); off += chunkBytes {
		end := min(off+chunkBytes, len(clip.PCM))
		if err := conn.Write(ctx, websocket.MessageBinary, clip.PCM[off:end]); err != nil {
			return stt.Transcript{}, fmt.Errorf("deepgram: send audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: close stream: %w", err)
	}

	var (
		parts []string
		conf  float64
		n     int
	)
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			if ctx.Err() != nil {
				return stt.Transcript{}, fmt.Errorf("deepgram: %w", ctx.Err())
			}
			// Deepgram closes the socket after the final Metadata frame; any
			// results already collected are still valid.
			if len(parts) > 0 {
				break
			}
			return stt.Transcript{}, fmt.Errorf("deepgram: read: %w", err)
		}
		ev, ok := parseDeepgramResponse(msg)
		if !ok {
			continue
		}
		if ev.metadata {
			break
		}
		if ev.isFinal && ev.text != "" {
			parts = append(parts, ev.text)
			conf += ev.confidence
			n++
		}
	}
	conn.Close(websocket.StatusNormalClosure, "done")

	tr := stt.Transcript{Text: strings.Join(parts, " ")}
	if n > 0 {
		tr.Confidence = conf / float64(n)
	}
	return tr, nil
}

// buildURL constructs the Deepgram streaming endpoint URL for the clip.
func (p *Provider) buildURL(clip types.AudioClip) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", p.language)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(clip.SampleRate))
	q.Set("channels", strconv.Itoa(max(clip.Channels, 1)))
	for _, kw := range p.keywords {
		q.Add("keyterm", kw)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the JSON structure returned by Deepgram.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type event struct {
	text       string
	confidence float64
	isFinal    bool
	metadata   bool
}

// parseDeepgramResponse parses a raw Deepgram message. Returns false for
// messages that should be ignored.
func parseDeepgramResponse(data []byte) (event, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return event{}, false
	}
	switch resp.Type {
	case "Metadata":
		return event{metadata: true}, true
	case "Results":
	default:
		return event{}, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return event{}, false
	}
	alt := resp.Channel.Alternatives[0]
	return event{
		text:       strings.TrimSpace(alt.Transcript),
		confidence: alt.Confidence,
		isFinal:    resp.IsFinal,
	}, true
}
