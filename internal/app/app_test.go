// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/plugkit/internal/app"
	"github.com/holomush/plugkit/internal/config"
	"github.com/holomush/plugkit/internal/plugin"
	"github.com/holomush/plugkit/internal/signal"
	"github.com/holomush/plugkit/pkg/errutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// calls records lifecycle bodies across plugins.
type calls struct {
	mu  sync.Mutex
	log []string
}

func (c *calls) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, s)
}

func (c *calls) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

type recorder struct {
	name  string
	calls *calls
	fail  error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Activate(_ context.Context, h *plugin.Handle) error {
	if r.fail != nil {
		return r.fail
	}
	r.calls.add("activate " + r.name)
	_, err := h.Register(r.name+"_ready", "")
	return err
}

func (r *recorder) Deactivate(context.Context, *plugin.Handle) error {
	r.calls.add("deactivate " + r.name)
	return nil
}

// builtin is instantiated from its class on Start.
type builtin struct{}

func (*builtin) Name() string { return "builtin" }

func newConfig(mutate func(*config.Config)) *config.Config {
	cfg := config.Default()
	cfg.App.Name = "Test App"
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func newApp(t *testing.T, cfg *config.Config, opts ...app.Option) *app.App {
	t.Helper()
	a, err := app.New(cfg, append([]app.Option{app.WithLogger(discard)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })
	return a
}

func writeScript(t *testing.T, root, name, script string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	manifest := "name: " + name + "\nversion: 1.0.0\ntype: lua\nlua-plugin:\n  entry: main.lua\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte(manifest), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.lua"), []byte(script), 0o600))
}

func TestNew_RegistersLifecycleSignals(t *testing.T) {
	a := newApp(t, newConfig(nil))

	assert.Equal(t, "Test App", a.RegistrantName())

	var names []string
	for _, s := range a.Signals().Signals(a) {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		plugin.SignalActivatePre,
		plugin.SignalActivatePost,
		plugin.SignalDeactivatePre,
		plugin.SignalDeactivatePost,
	}, names)
	assert.False(t, a.Ready())
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	a := newApp(t, nil)
	assert.Equal(t, "NoName App", a.RegistrantName())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := newConfig(func(c *config.Config) { c.Log.Level = "chatty" })

	_, err := app.New(cfg, app.WithLogger(discard))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, config.CodeInvalid)
}

func TestNew_BuildsLoggerFromConfig(t *testing.T) {
	cfg := newConfig(func(c *config.Config) { c.Log.Format = "text" })

	a, err := app.New(cfg, app.WithVersion("1.0.0"))
	require.NoError(t, err)
	assert.NotNil(t, a.Logger())
}

func TestNew_DuplicateClass(t *testing.T) {
	class := plugin.NewClass(func() *builtin { return &builtin{} }, "")

	_, err := app.New(newConfig(nil), app.WithLogger(discard), app.WithClasses(class, class))
	require.Error(t, err)
	assert.ErrorIs(t, err, plugin.ErrDuplicateClass)
}

func TestApp_StartStop(t *testing.T) {
	c := &calls{}
	a := newApp(t, newConfig(nil),
		app.WithClasses(plugin.NewClass(func() *builtin { return &builtin{} }, "built in")),
		app.WithPlugins(&recorder{name: "alpha", calls: c}, &recorder{name: "beta", calls: c}),
	)

	require.NoError(t, a.Start(context.Background()))
	assert.True(t, a.Ready())

	active := a.Directory().Active()
	require.Len(t, active, 3)
	assert.Equal(t, "alpha", active[0].Name())
	assert.Equal(t, "beta", active[1].Name())
	assert.Equal(t, "builtin", active[2].Name())

	_, ok := a.Signals().Signal("alpha_ready")
	assert.True(t, ok)

	require.NoError(t, a.Stop(context.Background()))
	assert.False(t, a.Ready())
	assert.Empty(t, a.Directory().Active())
	assert.Equal(t, []string{
		"activate alpha", "activate beta",
		"deactivate beta", "deactivate alpha",
	}, c.all())

	_, ok = a.Signals().Signal("alpha_ready")
	assert.False(t, ok, "stopping sweeps plugin signals")
	assert.Len(t, a.Signals().Signals(a), 4, "built-in signals survive Stop")
}

func TestApp_StartTwice(t *testing.T) {
	a := newApp(t, newConfig(nil))
	require.NoError(t, a.Start(context.Background()))

	err := a.Start(context.Background())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, app.CodeState)
}

func TestApp_StopWithoutStart(t *testing.T) {
	a := newApp(t, newConfig(nil))
	assert.NoError(t, a.Stop(context.Background()))
}

func TestApp_Restart(t *testing.T) {
	c := &calls{}
	a := newApp(t, newConfig(nil), app.WithPlugins(&recorder{name: "alpha", calls: c}))

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Stop(context.Background()))
	require.NoError(t, a.Start(context.Background()))

	assert.True(t, a.Ready())
	assert.Len(t, a.Directory().Instances(), 1)
	assert.Equal(t, []string{"activate alpha", "deactivate alpha", "activate alpha"}, c.all())
}

func TestApp_ActivatePatterns(t *testing.T) {
	c := &calls{}
	cfg := newConfig(func(c *config.Config) { c.Plugins.Activate = []string{"a*"} })
	a := newApp(t, cfg, app.WithPlugins(&recorder{name: "alpha", calls: c}, &recorder{name: "beta", calls: c}))

	require.NoError(t, a.Start(context.Background()))

	beta, ok := a.Directory().Instance("beta")
	require.True(t, ok)
	assert.Equal(t, plugin.StateRegistered, beta.State())
	assert.Equal(t, []string{"activate alpha"}, c.all())
}

func TestApp_LenientSkipsFailingPlugins(t *testing.T) {
	c := &calls{}
	a := newApp(t, newConfig(nil), app.WithPlugins(
		&recorder{name: "alpha", calls: c},
		&recorder{name: "broken", calls: c, fail: errors.New("boom")},
		&recorder{name: "alpha", calls: c},
	))

	require.NoError(t, a.Start(context.Background()))
	assert.True(t, a.Ready())

	broken, ok := a.Directory().Instance("broken")
	require.True(t, ok)
	assert.False(t, broken.Active())
	assert.Len(t, a.Directory().Active(), 1)
}

func TestApp_StrictFailsAndRollsBack(t *testing.T) {
	c := &calls{}
	cfg := newConfig(func(c *config.Config) { c.Plugins.Strict = true })
	a := newApp(t, cfg, app.WithPlugins(
		&recorder{name: "alpha", calls: c},
		&recorder{name: "zulu", calls: c, fail: errors.New("boom")},
	))

	err := a.Start(context.Background())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, plugin.CodeBodyFailed)

	assert.False(t, a.Ready())
	assert.Empty(t, a.Directory().Active())
	assert.Equal(t, []string{"activate alpha", "deactivate alpha"}, c.all())
}

func TestApp_StrictDuplicatePlugin(t *testing.T) {
	c := &calls{}
	cfg := newConfig(func(c *config.Config) { c.Plugins.Strict = true })
	a := newApp(t, cfg, app.WithPlugins(&recorder{name: "alpha", calls: c}, &recorder{name: "alpha", calls: c}))

	err := a.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, plugin.ErrDuplicatePlugin)
}

func TestApp_ScriptPlugins(t *testing.T) {
	root := t.TempDir()
	writeScript(t, root, "greeter", `
function activate()
  signals.register("greet", "Says hello")
  signals.connect("greeter_hello", "greet", function(sig, sender, payload)
    return "hello " .. payload.who
  end)
end
`)
	writeScript(t, root, "broken", `this is not lua`)

	cfg := newConfig(func(c *config.Config) { c.Plugins.Dir = root })
	a := newApp(t, cfg)

	require.NoError(t, a.Start(context.Background()))

	inst, ok := a.Directory().Instance("greeter")
	require.True(t, ok)
	assert.True(t, inst.Active())
	_, ok = a.Directory().Instance("broken")
	assert.False(t, ok, "invalid scripts are skipped")

	results, err := a.Signals().Send(context.Background(), "greet", a, signal.Payload{"who": "world"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hello world", results[0].Value)

	require.NoError(t, a.Stop(context.Background()))

	_, ok = a.Signals().Signal("greet")
	assert.False(t, ok)
}

func TestApp_MissingPluginsDir(t *testing.T) {
	cfg := newConfig(func(c *config.Config) { c.Plugins.Dir = filepath.Join(t.TempDir(), "absent") })
	a := newApp(t, cfg)

	require.NoError(t, a.Start(context.Background()))
	assert.Empty(t, a.Directory().Instances())
}
