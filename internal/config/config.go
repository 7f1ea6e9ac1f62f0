// Package config provides the configuration schema, loader, hot-reload
// watcher, and provider registry for the Flux dictation daemon.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/flux/internal/delivery"
	"github.com/MrWong99/flux/internal/enhance"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l onto a [slog.Level]. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InsertMethod selects how text reaches the focused window.
type InsertMethod string

const (
	// InsertType sends the text as synthetic key presses.
	InsertType InsertMethod = "type"

	// InsertPaste puts the text on the clipboard, sends the paste shortcut,
	// and restores the previous clipboard contents.
	InsertPaste InsertMethod = "paste"
)

// IsValid reports whether m is a recognised insert method.
func (m InsertMethod) IsValid() bool {
	return m == InsertType || m == InsertPaste
}

// Config is the root configuration. Load it with [Load] or
// [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Flows       []FlowConfig      `yaml:"flows"`
	Capture     CaptureConfig     `yaml:"capture"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Enhancement EnhancementConfig `yaml:"enhancement"`
	Delivery    DeliveryConfig    `yaml:"delivery"`
	History     HistoryConfig     `yaml:"history"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`

	// StatusAddr is the listen address of the local status server serving
	// /healthz, /readyz, /status and /metrics. Empty disables it.
	StatusAddr string `yaml:"status_addr"`
}

// ProvidersConfig selects the backends. Each entry is resolved through the
// [Registry].
type ProvidersConfig struct {
	// STT is the primary transcriber. Required.
	STT ProviderEntry `yaml:"stt"`

	// STTFallback lists transcribers tried in order when the primary fails.
	STTFallback []ProviderEntry `yaml:"stt_fallback"`

	// LLM backs enhancement. Optional when enhancement is off.
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallback lists language models tried in order when LLM fails.
	LLMFallback []ProviderEntry `yaml:"llm_fallback"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
type ProviderEntry struct {
	// Name selects the registered implementation (e.g. "flux", "whisper",
	// "openai").
	Name string `yaml:"name"`

	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	Model string `yaml:"model"`

	// Options holds provider-specific values such as "language" or
	// "model_path".
	Options map[string]any `yaml:"options"`
}

// FlowConfig describes one push-to-talk flow. Each flow has its own hotkey
// and delivery target; flows never record at the same time.
type FlowConfig struct {
	Name string `yaml:"name"`

	// Hotkey is a "+"-separated key combination, e.g. "ctrl+alt+space".
	Hotkey string `yaml:"hotkey"`

	// Target is "focus" (insert with clipboard fallback) or "clipboard".
	Target delivery.Target `yaml:"target"`

	// MinDuration discards shorter holds. Default 500ms.
	MinDuration time.Duration `yaml:"min_duration"`

	// MaxDuration stops the recording after this long. Default 120s.
	MaxDuration time.Duration `yaml:"max_duration"`
}

// CaptureConfig tunes trigger handling and attempt timeouts for all flows.
type CaptureConfig struct {
	// Debounce is how long the hotkey must be held before recording starts.
	// Default 80ms.
	Debounce time.Duration `yaml:"debounce"`

	// PollInterval is the failsafe "still held" poll cadence. Default 40ms.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Watchdog bounds the wait for a transcript after recording stops.
	// Default 15s.
	Watchdog time.Duration `yaml:"watchdog"`

	// PermissionTimeout bounds the microphone permission check. Default 10s.
	PermissionTimeout time.Duration `yaml:"permission_timeout"`

	// SampleRate of the microphone stream in Hz. Default 16000.
	SampleRate int `yaml:"sample_rate"`
}

// PipelineConfig configures the deterministic correction stages.
// Hot-reloadable.
type PipelineConfig struct {
	// RemoveFillers toggles the filler stage. Default true.
	RemoveFillers *bool `yaml:"remove_fillers"`

	// Fillers replaces the default filler word list when non-empty.
	Fillers []string `yaml:"fillers"`

	// IntentTriggers replaces the default self-correction phrases when
	// non-empty.
	IntentTriggers []string `yaml:"intent_triggers"`

	Dictionary []DictionaryEntry `yaml:"dictionary"`

	// PhoneticThreshold is the minimum similarity for a phonetic dictionary
	// match, in (0, 1]. Zero keeps the default.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`
}

// DictionaryEntry is one user substitution.
type DictionaryEntry struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Phonetic bool   `yaml:"phonetic"`
}

// EnhancementConfig configures the optional language-model rewrite.
// Hot-reloadable.
type EnhancementConfig struct {
	// Mode is off, polish or styled. Unknown values load as off.
	Mode enhance.Mode `yaml:"mode"`

	// Timeout bounds one rewrite. Default 4s.
	Timeout time.Duration `yaml:"timeout"`

	// AppStyles maps an application name to a style instruction used in
	// styled mode. Keys are matched case-insensitively.
	AppStyles map[string]string `yaml:"app_styles"`

	// MinOverlap is the minimum word overlap between input and output in
	// polish mode, in [0, 1]. Zero keeps the default.
	MinOverlap float64 `yaml:"min_overlap"`
}

// DeliveryConfig configures how text reaches its target.
type DeliveryConfig struct {
	// Method is type or paste. Default type.
	Method InsertMethod `yaml:"method"`

	// Notify enables desktop notifications for failures. Default true.
	Notify *bool `yaml:"notify"`
}

// HistoryConfig configures attempt history persistence.
type HistoryConfig struct {
	// Disabled turns history off entirely.
	Disabled bool `yaml:"disabled"`

	// Path of the JSON lines file. Default is history.jsonl in the user
	// config directory.
	Path string `yaml:"path"`

	// PostgresDSN additionally stores history in PostgreSQL when set.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// FillersEnabled resolves RemoveFillers.
func (p PipelineConfig) FillersEnabled() bool {
	return p.RemoveFillers == nil || *p.RemoveFillers
}

// NotifyEnabled resolves Notify.
func (d DeliveryConfig) NotifyEnabled() bool {
	return d.Notify == nil || *d.Notify
}
