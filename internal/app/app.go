// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package app wires configuration, the signal registry and the plugin
// directory into a runnable application.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/holomush/plugkit/internal/config"
	"github.com/holomush/plugkit/internal/logging"
	"github.com/holomush/plugkit/internal/observability"
	"github.com/holomush/plugkit/internal/plugin"
	"github.com/holomush/plugkit/internal/plugin/lua"
	"github.com/holomush/plugkit/internal/signal"
	"github.com/holomush/plugkit/pkg/errutil"
)

// CodeState marks Start/Stop calls made in the wrong order.
const CodeState = "APP_STATE"

var tracer = otel.Tracer("github.com/holomush/plugkit/internal/app")

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger instead of building one from the config.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.log = l
	}
}

// WithVersion sets the version reported in log records.
func WithVersion(v string) Option {
	return func(a *App) {
		a.version = v
	}
}

// WithClasses registers plugin classes. Classes with a factory are
// instantiated on Start.
func WithClasses(classes ...*plugin.Class) Option {
	return func(a *App) {
		a.classes = append(a.classes, classes...)
	}
}

// WithPlugins loads ready-made plugin values on Start, before classes are
// instantiated.
func WithPlugins(plugins ...plugin.Plugin) Option {
	return func(a *App) {
		a.plugins = append(a.plugins, plugins...)
	}
}

// App is the plugin host. It owns the built-in lifecycle signals.
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	version string
	classes []*plugin.Class
	plugins []plugin.Plugin

	signals *signal.Registry
	dir     *plugin.Directory

	mu      sync.Mutex
	loaded  bool
	started bool
	ready   atomic.Bool
}

// New builds an App from cfg. It registers the lifecycle signals and the
// classes given with WithClasses.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, version: "dev"}
	for _, opt := range opts {
		opt(a)
	}

	if a.log == nil {
		level, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		a.log = logging.Setup("plugkit", a.version, cfg.Log.Format, level, os.Stderr)
	}
	a.log = a.log.With("app", cfg.App.Name)

	a.signals = signal.NewRegistry(signal.WithLogger(a.log))
	a.dir = plugin.NewDirectory(a.signals, plugin.WithLogger(a.log))

	if err := plugin.RegisterLifecycleSignals(a.signals, a); err != nil {
		return nil, oops.In("app").Wrapf(err, "register lifecycle signals")
	}
	for _, c := range a.classes {
		if err := a.dir.RegisterClass(c); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// RegistrantName implements signal.Registrant.
func (a *App) RegistrantName() string {
	return a.cfg.App.Name
}

// Config returns the configuration the App was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.log
}

// Signals returns the signal registry.
func (a *App) Signals() *signal.Registry {
	return a.signals
}

// Directory returns the plugin directory.
func (a *App) Directory() *plugin.Directory {
	return a.dir
}

// Ready reports whether Start completed and Stop has not begun.
func (a *App) Ready() bool {
	return a.ready.Load()
}

// Start loads script plugins and the plugins given with WithPlugins,
// instantiates the registered classes and activates every plugin matching
// plugins.activate. With plugins.strict set the first plugin error aborts
// Start; otherwise failing plugins are logged and skipped.
func (a *App) Start(ctx context.Context) (err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return oops.Code(CodeState).In("app").Errorf("application already started")
	}

	ctx, span := tracer.Start(ctx, "app.start")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	strict := a.cfg.Plugins.Strict

	if !a.loaded {
		a.loaded = true
		if err := a.load(strict); err != nil {
			return err
		}
	}

	activated, err := a.dir.ActivateMatching(ctx, a.cfg.Plugins.Activate, strict)
	if err != nil {
		// Undo what did activate so a failed Start needs no Stop.
		if stopErr := a.shutdown(ctx, false); stopErr != nil {
			err = errors.Join(err, stopErr)
		}
		return err
	}

	span.SetAttributes(
		attribute.Int("plugins.loaded", len(a.dir.Instances())),
		attribute.Int("plugins.activated", len(activated)),
	)

	a.started = true
	a.ready.Store(true)
	a.log.InfoContext(ctx, "application started",
		"plugins", len(a.dir.Instances()),
		"active", len(activated))
	return nil
}

// Stop deactivates all active plugins in reverse activation order and
// releases script plugin resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}
	a.ready.Store(false)

	ctx, span := tracer.Start(ctx, "app.stop")
	defer span.End()

	err := a.shutdown(ctx, a.cfg.Plugins.Strict)

	a.started = false
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	a.log.InfoContext(ctx, "application stopped")
	return nil
}

// load runs once per App: script plugins and WithPlugins values keep their
// instances across restarts.
func (a *App) load(strict bool) error {
	if err := a.loadAll(a.plugins, strict); err != nil {
		return err
	}

	scripts, err := a.discover()
	if err != nil {
		return err
	}
	if err := a.loadAll(scripts, strict); err != nil {
		return err
	}

	if _, err := a.dir.InstantiateAll(); err != nil {
		if strict {
			return err
		}
		observability.RecordPluginFailure("instantiate")
		errutil.LogError(a.log, "plugin instantiation failed, continuing", err)
	}
	return nil
}

func (a *App) shutdown(ctx context.Context, strict bool) error {
	err := a.dir.DeactivateAll(ctx, strict)

	for _, inst := range a.dir.Instances() {
		c, ok := inst.Plugin().(io.Closer)
		if !ok {
			continue
		}
		if closeErr := c.Close(); closeErr != nil {
			err = errors.Join(err, oops.In("app").With("plugin", inst.Name()).Wrapf(closeErr, "close plugin"))
		}
	}
	return err
}

func (a *App) discover() ([]plugin.Plugin, error) {
	if a.cfg.Plugins.Dir == "" {
		return nil, nil
	}

	found, err := lua.Discover(a.cfg.Plugins.Dir, lua.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	observability.RecordPluginsDiscovered(len(found))

	out := make([]plugin.Plugin, len(found))
	for i, p := range found {
		out[i] = p
	}
	return out, nil
}

func (a *App) loadAll(plugins []plugin.Plugin, strict bool) error {
	for _, p := range plugins {
		if _, err := a.dir.Load(p); err != nil {
			if strict {
				return err
			}
			observability.RecordPluginFailure("load")
			errutil.LogError(a.log, "plugin load failed, skipping", err)
		}
	}
	return nil
}
