// Package app wires the capture flows, their providers, and the desktop
// integrations into a running daemon.
//
// New builds every subsystem from the config, Run blocks until the context
// is cancelled, and Shutdown releases what New opened.
//
// For testing, inject fakes via functional options (WithPlatform,
// WithHistory, WithMetrics). When an option is not provided, New uses the
// real desktop integrations.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/flux/internal/capture"
	"github.com/MrWong99/flux/internal/config"
	"github.com/MrWong99/flux/internal/delivery"
	"github.com/MrWong99/flux/internal/delivery/desktop"
	"github.com/MrWong99/flux/internal/health"
	"github.com/MrWong99/flux/internal/history"
	"github.com/MrWong99/flux/internal/notify"
	"github.com/MrWong99/flux/internal/observe"
	"github.com/MrWong99/flux/internal/recording"
	"github.com/MrWong99/flux/internal/recording/portaudio"
	"github.com/MrWong99/flux/internal/resilience"
	"github.com/MrWong99/flux/internal/trigger"
	"github.com/MrWong99/flux/internal/trigger/gohook"
	"github.com/MrWong99/flux/pkg/provider/stt"
)

// Platform bundles the operating system integrations. Nil fields are filled
// with the desktop defaults.
type Platform struct {
	Source     recording.Source
	Permission capture.Permission
	Inserter   delivery.Inserter
	Clipboard  delivery.Clipboard
	Apps       capture.AppDetector
	Notifier   capture.Notifier

	// Hook feeds global key events into the tracker until ctx is done.
	Hook func(ctx context.Context, t *trigger.Tracker) error
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	platform  Platform

	met            *observe.Metrics
	level          *slog.LevelVar
	watcher        *config.Watcher
	metricsHandler http.Handler

	tracker  *trigger.Tracker
	lock     *capture.Lock
	pipeline *swapPipeline
	enhancer *swapEnhancer
	history  capture.HistorySink
	pool     *pgxpool.Pool
	flows    []*flow

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

type flow struct {
	cfg   config.FlowConfig
	watch *trigger.Watch
	rec   *recording.Session
	ctrl  *capture.Controller
	deb   *capture.Debouncer
}

// Option is a functional option for New.
type Option func(*App)

// WithPlatform replaces the desktop integrations named by the non-nil fields
// of p.
func WithPlatform(p Platform) Option {
	return func(a *App) { a.platform = p }
}

// WithHistory injects a history sink instead of creating one from config.
func WithHistory(h capture.HistorySink) Option {
	return func(a *App) { a.history = h }
}

// WithMetrics records into m instead of the global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.met = m }
}

// WithLevel lets configuration reloads adjust the log level.
func WithLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithWatcher runs w alongside the flows. Its change callback should call
// [App.Reload].
func WithWatcher(w *config.Watcher) Option {
	return func(a *App) { a.watcher = w }
}

// WithMetricsHandler serves h under /metrics on the status address.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg, which must already be validated. providers
// comes from [BuildProviders] or a test.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.STT == nil {
		return nil, errors.New("app: a transcriber is required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		tracker:   trigger.NewTracker(),
		lock:      &capture.Lock{},
	}
	for _, o := range opts {
		o(a)
	}
	if a.met == nil {
		a.met = observe.DefaultMetrics()
	}
	a.initPlatform()

	a.pipeline = newSwapPipeline(buildPipeline(cfg.Pipeline))
	a.enhancer = newSwapEnhancer(buildGateway(cfg.Enhancement, providers.LLM))

	if err := a.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}
	if err := a.initFlows(); err != nil {
		return nil, fmt.Errorf("app: init flows: %w", err)
	}
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initPlatform() {
	p := &a.platform
	if p.Source == nil {
		p.Source = &portaudio.Source{}
	}
	if p.Permission == nil {
		p.Permission = portaudio.Permission{}
	}
	if p.Clipboard == nil || p.Inserter == nil {
		clip := desktop.NewClipboard(&delivery.Guard{})
		if p.Clipboard == nil {
			p.Clipboard = clip
		}
		if p.Inserter == nil {
			p.Inserter = desktop.NewInserter(string(a.cfg.Delivery.Method), clip)
		}
	}
	if p.Apps == nil {
		p.Apps = desktop.Apps{}
	}
	if p.Notifier == nil {
		if a.cfg.Delivery.NotifyEnabled() {
			p.Notifier = notify.Fallback{Primary: &notify.Desktop{}}
		} else {
			p.Notifier = notify.Log{}
		}
	}
	if p.Hook == nil {
		p.Hook = gohook.Run
	}
}

// initHistory opens the JSONL file and, when configured, the PostgreSQL
// store. Records fan out to both.
func (a *App) initHistory(ctx context.Context) error {
	if a.history != nil || a.cfg.History.Disabled {
		return nil
	}

	path := a.cfg.History.Path
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("resolve history path: %w", err)
		}
		path = filepath.Join(dir, "flux", "history.jsonl")
	}
	sinks := history.Multi{history.NewFileStore(path)}

	if dsn := a.cfg.History.PostgresDSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		store := history.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("migrate postgres: %w", err)
		}
		a.pool = pool
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		sinks = append(sinks, store)
	}

	a.history = sinks
	slog.Info("history enabled", "path", path, "postgres", a.pool != nil)
	return nil
}

// initFlows builds one recorder, controller, and debouncer per flow. Every
// flow owns its recorder so that stopping an orphaned capture in one flow
// never touches another; the shared lock keeps them from recording at once.
func (a *App) initFlows() error {
	c := a.cfg.Capture
	format := recording.Format{SampleRate: c.SampleRate, Channels: 1}

	for i, fc := range a.cfg.Flows {
		combo, err := trigger.ParseCombo(fc.Hotkey)
		if err != nil {
			return fmt.Errorf("flow %q (index %d): %w", fc.Name, i, err)
		}
		watch := a.tracker.Watch(combo)
		rec := recording.New(a.platform.Source, a.providers.STT, recording.WithFormat(format))

		ctrl, err := capture.New(capture.Config{
			Flow:              fc.Name,
			MinDuration:       fc.MinDuration,
			MaxDuration:       fc.MaxDuration,
			Watchdog:          c.Watchdog,
			PollInterval:      c.PollInterval,
			PermissionTimeout: c.PermissionTimeout,
		}, capture.Deps{
			Recorder:   rec,
			Pipeline:   a.pipeline,
			Deliverer:  delivery.NewRouter(fc.Target, a.platform.Inserter, a.platform.Clipboard),
			Lock:       a.lock,
			Permission: a.platform.Permission,
			Held:       watch,
			Enhancer:   a.enhancer,
			History:    a.history,
			Notifier:   a.platform.Notifier,
			Apps:       a.platform.Apps,
			Metrics:    a.met,
		})
		if err != nil {
			return fmt.Errorf("flow %q (index %d): %w", fc.Name, i, err)
		}

		deb := capture.NewDebouncer(ctrl,
			capture.WithDebounce(c.Debounce),
			capture.WithHeldPoll(watch, c.PollInterval),
		)
		a.flows = append(a.flows, &flow{cfg: fc, watch: watch, rec: rec, ctrl: ctrl, deb: deb})
		slog.Info("flow ready", "flow", fc.Name, "hotkey", combo.String(), "target", fc.Target)
	}
	return nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the key hook, every flow, the config watcher, and the status
// server, and blocks until ctx is cancelled or one of them fails. Live
// attempts are aborted on the way out.
func (a *App) Run(ctx context.Context) error {
	// Listen first so that a taken port fails before anything else starts.
	var ln net.Listener
	if addr := a.cfg.Server.StatusAddr; addr != "" {
		var err error
		if ln, err = net.Listen("tcp", addr); err != nil {
			return fmt.Errorf("app: listen on %s: %w", addr, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, f := range a.flows {
		g.Go(func() error { return f.ctrl.Run(ctx) })
		g.Go(func() error { return f.deb.Run(ctx, f.watch.Edges()) })
	}

	g.Go(func() error {
		err := a.platform.Hook(ctx, a.tracker)
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("app: key hook: %w", err)
		}
		return nil
	})

	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(ctx) })
	}

	if ln != nil {
		srv := &http.Server{
			Handler:           a.StatusHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
		slog.Info("status server listening", "addr", ln.Addr().String())
	}

	slog.Info("flux running", "flows", len(a.flows))
	return g.Wait()
}

// historyLimit is the default and maximum page of GET /history.
const historyLimit = 200

// StatusHandler serves /healthz, /readyz, /status, /history when the history
// sink can be read, and /metrics when configured.
func (a *App) StatusHandler() http.Handler {
	var checks []health.Checker
	if hc, ok := a.providers.STT.(stt.HealthChecker); ok {
		checks = append(checks, health.Checker{Name: "stt", Check: hc.Health})
	}
	if a.pool != nil {
		checks = append(checks, health.Checker{Name: "history", Check: a.pool.Ping})
	}

	mux := http.NewServeMux()
	health.New(func() any { return a.Status() }, checks...).Register(mux)
	if r, ok := a.history.(history.Reader); ok {
		mux.HandleFunc("GET /history", historyHandler(r))
	}
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}
	return observe.Middleware(a.met)(mux)
}

// historyHandler serves the newest records, newest first. The optional limit
// query parameter is capped at historyLimit.
func historyHandler(r history.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		limit := historyLimit
		if v := req.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = min(n, historyLimit)
		}
		recs, err := r.Recent(req.Context(), limit)
		if err != nil {
			slog.Warn("history read failed", "err", err)
			http.Error(w, "history unavailable", http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []history.Record{}
		}
		health.WriteJSON(w, http.StatusOK, recs)
	}
}

// FlowStatus is the live view of one flow.
type FlowStatus struct {
	Name   string          `json:"name"`
	Hotkey string          `json:"hotkey"`
	Target delivery.Target `json:"target"`
	State  string          `json:"state"`
	Token  capture.Token   `json:"token,omitempty"`

	// Level is the input level of a running capture, in [0, 1].
	Level float64 `json:"level"`
}

// Status is the body of GET /status.
type Status struct {
	LockHolder string       `json:"lock_holder,omitempty"`
	Flows      []FlowStatus `json:"flows"`

	// Breakers maps each backend behind a fallback group to its circuit
	// breaker state.
	Breakers map[string]string `json:"breakers,omitempty"`

	// ClipboardSuppressed is set while a self-originated clipboard write is
	// in progress. It staying set with every flow idle means a leaked guard.
	ClipboardSuppressed bool `json:"clipboard_suppressed,omitempty"`
}

// Status reports the state of every flow.
func (a *App) Status() Status {
	s := Status{LockHolder: a.lock.Holder(), Flows: make([]FlowStatus, 0, len(a.flows))}
	for _, f := range a.flows {
		s.Flows = append(s.Flows, FlowStatus{
			Name:   f.cfg.Name,
			Hotkey: f.watch.Combo().String(),
			Target: f.cfg.Target,
			State:  f.ctrl.State().String(),
			Token:  f.ctrl.LiveToken(),
			Level:  f.rec.Level(),
		})
	}
	if g, ok := a.platform.Clipboard.(interface{ Suppressed() bool }); ok {
		s.ClipboardSuppressed = g.Suppressed()
	}
	for _, p := range []any{a.providers.STT, a.providers.LLM} {
		r, ok := p.(resilience.Reporter)
		if !ok {
			continue
		}
		if s.Breakers == nil {
			s.Breakers = make(map[string]string)
		}
		for name, st := range r.States() {
			s.Breakers[name] = st.String()
		}
	}
	return s
}

// Tracker returns the key tracker fed by the platform hook.
func (a *App) Tracker() *trigger.Tracker { return a.tracker }

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies the hot-reloadable parts of next: the log level, the
// correction pipeline, and the enhancement settings. Everything else is
// logged and takes effect after a restart.
func (a *App) Reload(prev, next *config.Config) {
	d := config.Compare(prev, next)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.PipelineChanged {
		a.pipeline.store(buildPipeline(next.Pipeline))
		slog.Info("correction pipeline reloaded", "dictionary", len(next.Pipeline.Dictionary))
	}
	if d.EnhancementChanged {
		g := buildGateway(next.Enhancement, a.providers.LLM)
		a.enhancer.store(g)
		slog.Info("enhancement reloaded", "mode", g.Mode())
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes take effect after restart", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases what New opened. It respects the context deadline: if ctx
// expires before all closers finish, remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
