// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package lua runs script plugins in sandboxed gopher-lua states.
package lua

import (
	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// library is a Lua standard library safe to open in a sandbox.
type library struct {
	name string
	fn   lua.LGFunction
}

// safeLibraries are opened in every sandbox: base, table, string, math.
// os, io, debug and package stay closed.
func safeLibraries() []library {
	return []library{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
}

// blockedGlobals are base library functions that reach the filesystem or
// compile arbitrary chunks.
var blockedGlobals = []string{"dofile", "loadfile", "loadstring", "load", "require"}

// Sandbox builds fresh Lua states with only safe libraries loaded.
type Sandbox struct {
	libraries     []library
	callStackSize int
}

// NewSandbox creates a sandbox with the default library set.
func NewSandbox() *Sandbox {
	return &Sandbox{
		libraries:     safeLibraries(),
		callStackSize: 256,
	}
}

// NewState returns a new sandboxed state. The caller owns it and must Close it.
func (s *Sandbox) NewState() (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		CallStackSize:       s.callStackSize,
		IncludeGoStackTrace: false,
	})

	for _, lib := range s.libraries {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, oops.Code(CodeScriptFailed).
				In("lua").
				With("library", lib.name).
				Wrapf(err, "open library %s", lib.name)
		}
	}

	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	return L, nil
}
