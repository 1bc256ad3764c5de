// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"reflect"
)

// Factory constructs a new plugin value.
type Factory func() Plugin

// Class is the declaring type of a plugin. Identity is the Go type of the
// plugin value; Name is that type's string form, e.g. "*echo.Plugin".
type Class struct {
	Name        string
	Type        reflect.Type
	Description string

	factory Factory
}

// NewClass describes the plugin type T with a factory used by
// Directory.Instantiate. T must be the concrete type the factory returns.
func NewClass[T Plugin](factory func() T, description string) *Class {
	t := reflect.TypeFor[T]()
	c := &Class{
		Name:        t.String(),
		Type:        t,
		Description: description,
	}
	if factory != nil {
		c.factory = func() Plugin { return factory() }
	}
	return c
}

// HasFactory reports whether the class can construct plugins.
func (c *Class) HasFactory() bool {
	return c.factory != nil
}

// lateBoundClass describes the type of a plugin constructed outside the
// directory's factory path.
func lateBoundClass(p Plugin) *Class {
	t := reflect.TypeOf(p)
	return &Class{
		Name:        t.String(),
		Type:        t,
		Description: "registered on first activation",
	}
}

// qualifiedName is the type's name with its full package path, e.g.
// "*github.com/acme/echo.Plugin".
func qualifiedName(t reflect.Type) string {
	prefix := ""
	for t.Kind() == reflect.Pointer {
		prefix += "*"
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return prefix + t.String()
	}
	return prefix + t.PkgPath() + "." + t.Name()
}

func typeName(p Plugin) string {
	if p == nil {
		return "<nil>"
	}
	return reflect.TypeOf(p).String()
}
