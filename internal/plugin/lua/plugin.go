// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/plugkit/internal/plugin"
	"github.com/holomush/plugkit/internal/signal"
)

// CodeScriptFailed marks errors raised while loading or running a script.
const CodeScriptFailed = "SCRIPT_FAILED"

// ErrNotActive is returned when a script receiver fires after its state closed.
var ErrNotActive = errors.New("script plugin not active")

var (
	_ plugin.Plugin      = (*Plugin)(nil)
	_ plugin.Activator   = (*Plugin)(nil)
	_ plugin.Deactivator = (*Plugin)(nil)
	_ io.Closer          = (*Plugin)(nil)
)

type options struct {
	log     *slog.Logger
	sandbox *Sandbox
}

// Option configures script plugins.
type Option func(*options)

// WithLogger sets the logger used for plugin and script output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithSandbox overrides the sandbox that builds Lua states.
func WithSandbox(s *Sandbox) Option {
	return func(o *options) {
		if s != nil {
			o.sandbox = s
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{log: slog.Default(), sandbox: NewSandbox()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Plugin is a plugin implemented by a Lua script.
//
// The script runs top to bottom on activation, then its global activate()
// is called if defined. deactivate() is called on deactivation. The Lua
// state stays open until the next activation or Close, so receivers the
// script connected to plugin_deactivate_post still run.
type Plugin struct {
	manifest *plugin.Manifest
	dir      string
	code     string
	sandbox  *Sandbox
	log      *slog.Logger

	mu      sync.Mutex
	current atomic.Pointer[activeChain] // innermost running call
	state   *lua.LState
	handle  *plugin.Handle
	ctx     context.Context // context of the innermost running call
}

// New creates a script plugin from a validated manifest and its entry
// source. The source is compiled once to reject syntax errors early.
func New(m *plugin.Manifest, dir, code string, opts ...Option) (*Plugin, error) {
	o := buildOptions(opts)

	L, err := o.sandbox.NewState()
	if err != nil {
		return nil, err
	}
	defer L.Close()

	if _, err := L.LoadString(code); err != nil {
		return nil, errScript(m.Name, "compile", err)
	}

	return &Plugin{
		manifest: m,
		dir:      dir,
		code:     code,
		sandbox:  o.sandbox,
		log:      o.log.With("plugin", m.Name, "runtime", "lua"),
	}, nil
}

// Load reads plugin.yaml and the entry script from dir.
func Load(dir string, opts ...Option) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, plugin.ManifestFile)) //nolint:gosec // dir comes from configuration
	if err != nil {
		return nil, oops.Code(plugin.CodeManifestInvalid).
			In("lua").
			With("dir", dir).
			Wrapf(err, "read manifest")
	}

	m, err := plugin.ParseManifest(data)
	if err != nil {
		return nil, err
	}

	if !filepath.IsLocal(m.LuaPlugin.Entry) {
		return nil, oops.Code(plugin.CodeManifestInvalid).
			In("lua").
			With("plugin", m.Name).
			With("entry", m.LuaPlugin.Entry).
			Errorf("entry must be a path inside the plugin directory")
	}

	code, err := os.ReadFile(filepath.Join(dir, m.LuaPlugin.Entry)) //nolint:gosec // entry is checked to be local
	if err != nil {
		return nil, errScript(m.Name, "load", err)
	}

	return New(m, dir, string(code), opts...)
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string {
	return p.manifest.Name
}

// Manifest returns the plugin's manifest.
func (p *Plugin) Manifest() *plugin.Manifest {
	return p.manifest
}

// Dir returns the directory the plugin was loaded from.
func (p *Plugin) Dir() string {
	return p.dir
}

// Activate starts a fresh Lua state, runs the script and its activate().
// Whatever a previous run registered is swept first, so activating again
// restarts the script. A failed run closes its state and sweeps what it
// registered before failing.
func (p *Plugin) Activate(ctx context.Context, h *plugin.Handle) error {
	_, leave := p.enter(ctx)
	defer leave()

	if err := h.Sweep(); err != nil {
		return err
	}
	p.closeState()

	L, err := p.sandbox.NewState()
	if err != nil {
		return err
	}
	p.state = L
	p.handle = h
	p.install(L)

	if err := L.DoString(p.code); err != nil {
		return p.abort(h, errScript(p.Name(), "run", err))
	}
	if err := p.callGlobal(L, "activate"); err != nil {
		return p.abort(h, err)
	}
	return nil
}

// abort drops the state of a failed activation and the registrations it
// made. Receivers left behind would only fail with ErrNotActive.
func (p *Plugin) abort(h *plugin.Handle, cause error) error {
	p.closeState()
	if err := h.Sweep(); err != nil {
		p.log.Warn("sweep after failed activation", "error", err)
	}
	return cause
}

// Deactivate calls the script's deactivate() if defined.
func (p *Plugin) Deactivate(ctx context.Context, _ *plugin.Handle) error {
	_, leave := p.enter(ctx)
	defer leave()

	if p.state == nil {
		return nil
	}
	return p.callGlobal(p.state, "deactivate")
}

// Close releases the Lua state. Receivers still connected afterwards fail
// with ErrNotActive.
func (p *Plugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeState()
	return nil
}

func (p *Plugin) closeState() {
	if p.state != nil {
		p.state.Close()
		p.state = nil
	}
}

type activeKey struct{}

// activeChain lists the script plugins running on the current call path.
type activeChain struct {
	p    *Plugin
	next *activeChain
}

// enter serializes access to the Lua state. A call made from inside the
// running call of p (a script sending a signal its own receiver handles)
// re-enters without locking. Calls with the context of a finished call lock
// as usual. The context passed to a receiver must not be used from another
// goroutine while that receiver runs.
func (p *Plugin) enter(ctx context.Context) (context.Context, func()) {
	chain, _ := ctx.Value(activeKey{}).(*activeChain)
	reentrant := false
	if cur := p.current.Load(); cur != nil {
		for c := chain; c != nil; c = c.next {
			if c == cur {
				reentrant = true
				break
			}
		}
	}
	if !reentrant {
		p.mu.Lock()
	}

	node := &activeChain{p: p, next: chain}
	prevNode := p.current.Load()
	prevCtx := p.ctx
	ctx = context.WithValue(ctx, activeKey{}, node)
	p.ctx = ctx
	p.current.Store(node)

	return ctx, func() {
		p.ctx = prevCtx
		p.current.Store(prevNode)
		if !reentrant {
			p.mu.Unlock()
		}
	}
}

func (p *Plugin) callGlobal(L *lua.LState, name string) error {
	fn := L.GetGlobal(name)
	switch fn.Type() {
	case lua.LTNil:
		return nil
	case lua.LTFunction:
	default:
		return errScript(p.Name(), name, oops.Errorf("global %s is a %s, not a function", name, fn.Type()))
	}

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
		return errScript(p.Name(), name, err)
	}
	return nil
}

// receiver adapts a script function to a signal receiver. The function is
// called as fn(signal, sender, payload) and its first result is returned.
func (p *Plugin) receiver(name string, fn *lua.LFunction) signal.ReceiverFunc {
	return func(ctx context.Context, ev signal.Event) (any, error) {
		_, leave := p.enter(ctx)
		defer leave()

		L := p.state
		if L == nil {
			return nil, errScript(p.Name(), "receive", ErrNotActive)
		}

		sender := ""
		if ev.Sender != nil {
			sender = ev.Sender.RegistrantName()
		}
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true},
			lua.LString(ev.Signal), lua.LString(sender), toLua(L, ev.Payload)); err != nil {
			return nil, oops.Code(CodeScriptFailed).
				In("lua").
				With("plugin", p.Name()).
				With("receiver", name).
				Wrap(err)
		}
		ret := L.Get(-1)
		L.Pop(1)
		return fromLua(ret), nil
	}
}

func errScript(name, operation string, cause error) error {
	return oops.Code(CodeScriptFailed).
		In("lua").
		With("plugin", name).
		With("operation", operation).
		Wrapf(cause, "%s script plugin %q", operation, name)
}
