// Package flux provides a Transcriber backed by the local Flux transcription
// server.
//
// The server listens on http://127.0.0.1:7848 by default and exposes two
// endpoints:
//
//	GET  /health      -> 200 {"status":"ready"}
//	POST /transcribe  -> body is a complete WAV file; 200 {"text":"..."} or
//	                     500 {"error":"..."}
//
// Usage:
//
//	p, err := flux.New("", flux.WithTimeout(20*time.Second))
//	tr, err := p.Transcribe(ctx, clip)
package flux

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/flux/pkg/audio"
	"github.com/MrWong99/flux/pkg/provider/stt"
	"github.com/MrWong99/flux/pkg/types"
)

// DefaultBaseURL is the address the local transcription server binds to.
const DefaultBaseURL = "http://127.0.0.1:7848"

const (
	defaultTimeout = 30 * time.Second

	// maxResponseBytes bounds the JSON body read from the server.
	maxResponseBytes = 1 << 20
)

// ErrNotReady is returned by Health when the server answers but does not
// report status "ready".
var ErrNotReady = errors.New("flux: transcription server not ready")

// Compile-time interface assertions.
var (
	_ stt.Transcriber   = (*Provider)(nil)
	_ stt.HealthChecker = (*Provider)(nil)
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider talks to a running Flux transcription server.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Provider for the server at baseURL. An empty baseURL selects
// [DefaultBaseURL].
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("flux: base URL %q must start with http:// or https://", baseURL)
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// response covers both the success and the error body of /transcribe.
type response struct {
	Text   string `json:"text"`
	Error  string `json:"error"`
	Status string `json:"status"`
}

// Transcribe encodes clip as WAV and posts it to /transcribe.
func (p *Provider) Transcribe(ctx context.Context, clip types.AudioClip) (stt.Transcript, error) {
	if clip.Empty() {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}
	wav := audio.EncodeWAV(clip.PCM, clip.SampleRate, clip.Channels)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transcribe", bytes.NewReader(wav))
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("flux: create request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("flux: transcribe: %w", err)
	}
	defer resp.Body.Close()

	body, err := decode(resp.Body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("flux: transcribe: HTTP %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if body.Error != "" {
			return stt.Transcript{}, fmt.Errorf("flux: transcribe: HTTP %d: %s", resp.StatusCode, body.Error)
		}
		return stt.Transcript{}, fmt.Errorf("flux: transcribe: HTTP %d", resp.StatusCode)
	}
	return stt.Transcript{Text: strings.TrimSpace(body.Text)}, nil
}

// Health reports whether the server is up and has its model loaded.
func (p *Provider) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("flux: create health request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("flux: health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrNotReady, resp.StatusCode)
	}
	body, err := decode(resp.Body)
	if err != nil {
		return fmt.Errorf("flux: health: %w", err)
	}
	if body.Status != "ready" {
		return fmt.Errorf("%w: status %q", ErrNotReady, body.Status)
	}
	return nil
}

func decode(r io.Reader) (response, error) {
	var out response
	data, err := io.ReadAll(io.LimitReader(r, maxResponseBytes))
	if err != nil {
		return out, fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("parse JSON: %w", err)
	}
	return out, nil
}
