package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/flux/internal/capture"
	"github.com/MrWong99/flux/internal/delivery"
	"github.com/MrWong99/flux/internal/enhance"
	"github.com/MrWong99/flux/internal/trigger"
	"github.com/MrWong99/flux/pkg/provider/llm/anyllm"
)

// ValidProviderNames lists the built-in provider names per kind. [Validate]
// warns about names outside this list; they may still be registered by the
// embedding program.
var ValidProviderNames = map[string][]string{
	"stt": {"flux", "whisper", "whisper-native", "deepgram"},
	"llm": anyllm.Backends,
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultFlowName   = "dictate"
	DefaultHotkey     = "ctrl+alt+space"
	DefaultSampleRate = 16000
	DefaultSTT        = "flux"
)

const (
	minMaxDuration = time.Second
	maxMaxDuration = 10 * time.Minute
)

// Load reads, defaults and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: load %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r, rejecting unknown fields, then applies
// defaults and validates. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields in place. It also normalises the
// enhancement mode, so an unknown mode becomes [enhance.ModeOff].
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Providers.STT.Name == "" {
		cfg.Providers.STT.Name = DefaultSTT
	}
	if len(cfg.Flows) == 0 {
		cfg.Flows = []FlowConfig{{Name: DefaultFlowName, Hotkey: DefaultHotkey}}
	}
	for i := range cfg.Flows {
		f := &cfg.Flows[i]
		if f.Target == "" {
			f.Target = delivery.TargetFocus
		}
		if f.MinDuration == 0 {
			f.MinDuration = capture.DefaultMinDuration
		}
		if f.MaxDuration == 0 {
			f.MaxDuration = capture.DefaultMaxDuration
		}
	}

	c := &cfg.Capture
	if c.Debounce == 0 {
		c.Debounce = capture.DefaultDebounce
	}
	if c.PollInterval == 0 {
		c.PollInterval = capture.DefaultPollInterval
	}
	if c.Watchdog == 0 {
		c.Watchdog = capture.DefaultWatchdog
	}
	if c.PermissionTimeout == 0 {
		c.PermissionTimeout = capture.DefaultPermissionTimeout
	}
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}

	cfg.Enhancement.Mode = enhance.ParseMode(string(cfg.Enhancement.Mode))
	if cfg.Delivery.Method == "" {
		cfg.Delivery.Method = InsertType
	}
}

// Validate checks cfg and returns every problem found, joined.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	for i, e := range cfg.Providers.STTFallback {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallback[%d].name is required", i))
		}
		validateProviderName("stt", e.Name)
	}
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, e := range cfg.Providers.LLMFallback {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallback[%d].name is required", i))
		}
		validateProviderName("llm", e.Name)
	}
	if len(cfg.Providers.LLMFallback) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallback is set but providers.llm is not configured"))
	}

	errs = append(errs, validateFlows(cfg.Flows)...)

	c := cfg.Capture
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"capture.debounce", c.Debounce},
		{"capture.poll_interval", c.PollInterval},
		{"capture.watchdog", c.Watchdog},
		{"capture.permission_timeout", c.PermissionTimeout},
	} {
		if d.v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %s", d.name, d.v))
		}
	}
	if c.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate must not be negative, got %d", c.SampleRate))
	}

	p := cfg.Pipeline
	if p.PhoneticThreshold < 0 || p.PhoneticThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.phonetic_threshold %.2f is out of range [0, 1]", p.PhoneticThreshold))
	}
	for i, e := range p.Dictionary {
		if strings.TrimSpace(e.From) == "" {
			slog.Warn("config: dictionary entry without 'from' will be ignored", "index", i, "to", e.To)
		}
	}

	en := cfg.Enhancement
	if en.Mode != "" && !en.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("enhancement.mode %q is invalid; valid values: off, polish, styled", en.Mode))
	}
	if en.Mode != "" && en.Mode != enhance.ModeOff && cfg.Providers.LLM.Name == "" {
		errs = append(errs, fmt.Errorf("enhancement.mode %q requires providers.llm", en.Mode))
	}
	if en.Timeout < 0 {
		errs = append(errs, fmt.Errorf("enhancement.timeout must not be negative, got %s", en.Timeout))
	}
	if en.MinOverlap < 0 || en.MinOverlap > 1 {
		errs = append(errs, fmt.Errorf("enhancement.min_overlap %.2f is out of range [0, 1]", en.MinOverlap))
	}

	if cfg.Delivery.Method != "" && !cfg.Delivery.Method.IsValid() {
		errs = append(errs, fmt.Errorf("delivery.method %q is invalid; valid values: type, paste", cfg.Delivery.Method))
	}

	if cfg.History.Disabled && cfg.History.PostgresDSN != "" {
		slog.Warn("config: history.postgres_dsn is ignored because history is disabled")
	}

	return errors.Join(errs...)
}

func validateFlows(flows []FlowConfig) []error {
	var errs []error
	names := make(map[string]int, len(flows))
	hotkeys := make(map[string]int, len(flows))
	for i, f := range flows {
		prefix := fmt.Sprintf("flows[%d]", i)
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := names[f.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of flows[%d]", prefix, f.Name, prev))
			}
			names[f.Name] = i
		}

		combo, err := trigger.ParseCombo(f.Hotkey)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.hotkey: %w", prefix, err))
		} else {
			key := combo.String()
			if prev, ok := hotkeys[key]; ok {
				errs = append(errs, fmt.Errorf("%s.hotkey %q is already used by flows[%d]", prefix, f.Hotkey, prev))
			}
			hotkeys[key] = i
		}

		if f.Target != "" && !f.Target.IsValid() {
			errs = append(errs, fmt.Errorf("%s.target %q is invalid; valid values: focus, clipboard", prefix, f.Target))
		}
		if f.MinDuration < 0 {
			errs = append(errs, fmt.Errorf("%s.min_duration must not be negative, got %s", prefix, f.MinDuration))
		}
		if f.MaxDuration != 0 && (f.MaxDuration < minMaxDuration || f.MaxDuration > maxMaxDuration) {
			errs = append(errs, fmt.Errorf("%s.max_duration %s is out of range [%s, %s]", prefix, f.MaxDuration, minMaxDuration, maxMaxDuration))
		}
		if f.MaxDuration != 0 && f.MinDuration >= f.MaxDuration {
			errs = append(errs, fmt.Errorf("%s.min_duration %s must be below max_duration %s", prefix, f.MinDuration, f.MaxDuration))
		}
	}
	return errs
}

func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known := ValidProviderNames[kind]
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("config: unknown provider name, it must be registered by the caller",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
