// Command flux is the push-to-talk dictation daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/flux/internal/app"
	"github.com/MrWong99/flux/internal/config"
	"github.com/MrWong99/flux/internal/observe"
	"github.com/MrWong99/flux/pkg/provider/llm"
	"github.com/MrWong99/flux/pkg/provider/llm/anyllm"
	"github.com/MrWong99/flux/pkg/provider/llm/openai"
	"github.com/MrWong99/flux/pkg/provider/stt"
	"github.com/MrWong99/flux/pkg/provider/stt/deepgram"
	"github.com/MrWong99/flux/pkg/provider/stt/flux"
	"github.com/MrWong99/flux/pkg/provider/stt/whisper"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "flux.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level starts at info and follows server.log_level, including on
	// reload.
	level := new(slog.LevelVar)
	slog.SetDefault(newLogger(level))

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Load configuration ────────────────────────────────────────────────────
	// The watcher performs the initial load; its callback is bound to the app
	// once that exists.
	var application *app.App
	watcher, err := config.NewWatcher(*configPath, func(prev, next *config.Config) {
		if application != nil {
			application.Reload(prev, next)
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "flux: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "flux: %v\n", err)
		}
		return 1
	}
	cfg := watcher.Current()
	level.Set(cfg.Server.LogLevel.Level())

	slog.Info("flux starting",
		"version", version,
		"config", *configPath,
		"flows", len(cfg.Flows),
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := app.BuildProviders(cfg.Providers, reg, tel.Metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	logProviders(cfg)

	application, err = app.New(ctx, cfg, providers,
		app.WithMetrics(tel.Metrics),
		app.WithMetricsHandler(tel.Handler()),
		app.WithLevel(level),
		app.WithWatcher(watcher),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("ready; hold a hotkey to dictate, press Ctrl+C to quit")

	code := 0
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return code
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai gets the native client; every other backend goes through
	// any-llm with an optional API key and base URL.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptString("organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if d, ok := optDuration(entry, "timeout"); ok {
			opts = append(opts, openai.WithTimeout(d))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, backend := range anyllm.Backends {
		if backend == "openai" {
			continue
		}
		reg.RegisterLLM(backend, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("flux", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []flux.Option
		if d, ok := optDuration(entry, "timeout"); ok {
			opts = append(opts, flux.WithTimeout(d))
		}
		return flux.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if d, ok := optDuration(entry, "timeout"); ok {
			opts = append(opts, whisper.WithTimeout(d))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptString("model_path")
		}
		var opts []whisper.NativeOption
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if kw := optStrings(entry, "keywords"); len(kw) > 0 {
			opts = append(opts, deepgram.WithKeywords(kw...))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	for _, kind := range []string{"llm", "stt"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

func logProviders(cfg *config.Config) {
	p := cfg.Providers
	names := func(entries []config.ProviderEntry) []string {
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.Name)
		}
		return out
	}
	slog.Info("provider created", "kind", "stt", "name", p.STT.Name, "model", p.STT.Model, "fallbacks", names(p.STTFallback))
	if p.LLM.Name != "" {
		slog.Info("provider created", "kind", "llm", "name", p.LLM.Name, "model", p.LLM.Model, "fallbacks", names(p.LLMFallback))
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optDuration parses a Go duration string from entry.Options.
func optDuration(entry config.ProviderEntry, key string) (time.Duration, bool) {
	s := entry.OptString(key)
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		slog.Warn("ignoring invalid provider option", "provider", entry.Name, "key", key, "value", s)
		return 0, false
	}
	return d, true
}

// optStrings extracts a list of strings from entry.Options. Non-string items
// are skipped.
func optStrings(entry config.ProviderEntry, key string) []string {
	items, _ := entry.Options[key].([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
