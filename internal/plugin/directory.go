// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"cmp"
	"context"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/holomush/plugkit/internal/signal"
	"github.com/holomush/plugkit/pkg/errutil"
)

// Directory tracks all plugin instances of an application and their
// declaring classes. It is safe for concurrent use.
type Directory struct {
	signals *signal.Registry
	log     *slog.Logger

	mu        sync.RWMutex
	classes   map[reflect.Type]*Class
	names     map[string]*Class
	instances map[string]*Instance

	activations atomic.Uint64
}

// DirectoryOption configures the Directory.
type DirectoryOption func(*Directory)

// WithLogger sets the logger for the directory and its instances.
func WithLogger(l *slog.Logger) DirectoryOption {
	return func(d *Directory) {
		if l != nil {
			d.log = l
		}
	}
}

// NewDirectory creates a plugin directory whose instances use reg for signals.
func NewDirectory(reg *signal.Registry, opts ...DirectoryOption) *Directory {
	d := &Directory{
		signals:   reg,
		log:       slog.Default(),
		classes:   make(map[reflect.Type]*Class),
		names:     make(map[string]*Class),
		instances: make(map[string]*Instance),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With("component", "plugins")
	return d
}

// Signals returns the registry shared by all instances.
func (d *Directory) Signals() *signal.Registry {
	return d.signals
}

// RegisterClass adds a plugin class. Returns an error wrapping
// ErrDuplicateClass if the type or the class name is already known.
func (d *Directory) RegisterClass(c *Class) error {
	if c == nil || c.Type == nil {
		return errInvalidClass("class has no type")
	}
	if c.Type.Kind() == reflect.Interface {
		return errInvalidClass("class type must be concrete, got interface " + c.Type.String())
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.classes[c.Type]; ok {
		return errDuplicateClass(c.Name)
	}
	if _, ok := d.names[c.Name]; ok {
		return errDuplicateClass(c.Name)
	}
	d.classes[c.Type] = c
	d.names[c.Name] = c

	d.log.Debug("plugin class registered", "class", c.Name, "factory", c.HasFactory())
	return nil
}

// EnsureClass returns the class of p, registering a late-bound class if the
// type is not yet known. The bool reports whether a class was inserted. A
// late-bound class whose short name is taken is named by its package path.
func (d *Directory) EnsureClass(p Plugin) (*Class, bool) {
	t := reflect.TypeOf(p)

	d.mu.RLock()
	c, ok := d.classes[t]
	d.mu.RUnlock()
	if ok {
		return c, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.classes[t]; ok {
		return c, false
	}
	c = lateBoundClass(p)
	if _, taken := d.names[c.Name]; taken {
		c.Name = qualifiedName(t)
	}
	d.classes[t] = c
	d.names[c.Name] = c
	return c, true
}

// ClassOf returns the registered class of p without inserting one.
func (d *Directory) ClassOf(p Plugin) (*Class, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.classes[reflect.TypeOf(p)]
	return c, ok
}

// Class looks up a class by name.
func (d *Directory) Class(name string) (*Class, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.names[name]
	return c, ok
}

// Classes returns all known classes sorted by name.
func (d *Directory) Classes() []*Class {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Class, 0, len(d.classes))
	for _, c := range d.classes {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *Class) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// Load wraps p in a lifecycle Instance and tracks it. The instance starts in
// StateRegistered. Fails if p has no name or the name is already loaded.
func (d *Directory) Load(p Plugin) (*Instance, error) {
	if p == nil {
		return nil, errMissingName(p)
	}
	name := p.Name()
	if name == "" {
		return nil, errMissingName(p)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.instances[name]; ok {
		return nil, errDuplicatePlugin(name)
	}

	inst := newInstance(d, p, name)
	d.instances[name] = inst

	inst.log.Info("plugin loaded", "type", typeName(p))
	return inst, nil
}

// Instantiate constructs a plugin from a registered class and loads it.
func (d *Directory) Instantiate(className string) (*Instance, error) {
	c, ok := d.Class(className)
	if !ok {
		return nil, errUnknownClass(className)
	}
	if !c.HasFactory() {
		return nil, errNoFactory(className)
	}
	return d.Load(c.factory())
}

// InstantiateAll constructs one instance of every class that has a factory
// and no loaded instance yet.
func (d *Directory) InstantiateAll() ([]*Instance, error) {
	var out []*Instance
	for _, c := range d.Classes() {
		if !c.HasFactory() || d.hasInstanceOf(c.Type) {
			continue
		}
		inst, err := d.Load(c.factory())
		if err != nil {
			return out, oops.With("class", c.Name).Wrap(err)
		}
		out = append(out, inst)
	}
	return out, nil
}

// Instance returns a loaded instance by plugin name.
func (d *Directory) Instance(name string) (*Instance, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	inst, ok := d.instances[name]
	return inst, ok
}

// Instances returns all loaded instances sorted by name.
func (d *Directory) Instances() []*Instance {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Instance, 0, len(d.instances))
	for _, inst := range d.instances {
		out = append(out, inst)
	}
	slices.SortFunc(out, func(a, b *Instance) int { return cmp.Compare(a.name, b.name) })
	return out
}

// Active returns active instances in activation order.
func (d *Directory) Active() []*Instance {
	var out []*Instance
	for _, inst := range d.Instances() {
		if inst.Active() {
			out = append(out, inst)
		}
	}
	slices.SortFunc(out, func(a, b *Instance) int { return cmp.Compare(a.activatedAt(), b.activatedAt()) })
	return out
}

// ActivateMatching activates every loaded, not yet active instance whose
// name matches one of the glob patterns, in name order.
//
// In strict mode the first failure is returned and no further plugins are
// activated. Otherwise failures are logged and skipped.
func (d *Directory) ActivateMatching(ctx context.Context, patterns []string, strict bool) ([]*Instance, error) {
	globs := make([]glob.Glob, len(patterns))
	for i, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, oops.Code(CodeInvalidPattern).
				In("plugin").
				With("pattern", p).
				Wrapf(err, "compile activation pattern %d", i)
		}
		globs[i] = g
	}

	var activated []*Instance
	for _, inst := range d.Instances() {
		if inst.Active() || !matchAny(globs, inst.name) {
			continue
		}
		if err := inst.Activate(ctx); err != nil {
			if strict {
				return activated, err
			}
			errutil.LogError(d.log, "plugin activation failed, skipping", err, "plugin", inst.name)
			continue
		}
		activated = append(activated, inst)
	}
	return activated, nil
}

// DeactivateAll deactivates active instances in reverse activation order.
// In strict mode the first failure is returned; otherwise failures are logged.
func (d *Directory) DeactivateAll(ctx context.Context, strict bool) error {
	active := d.Active()
	for i := len(active) - 1; i >= 0; i-- {
		inst := active[i]
		if err := inst.Deactivate(ctx); err != nil {
			if strict {
				return err
			}
			errutil.LogError(d.log, "plugin deactivation failed", err, "plugin", inst.name)
		}
	}
	return nil
}

func (d *Directory) hasInstanceOf(t reflect.Type) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, inst := range d.instances {
		if reflect.TypeOf(inst.plugin) == t {
			return true
		}
	}
	return false
}

func (d *Directory) nextActivation() uint64 {
	return d.activations.Add(1)
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
