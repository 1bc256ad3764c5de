// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"fmt"
	"log/slog"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/plugkit/internal/signal"
)

// install exposes the script API in L:
//
//	signals.register(name [, description])
//	signals.unregister(name)
//	signals.connect(receiver, signal, fn [, description])
//	signals.disconnect(receiver)
//	signals.send(signal [, payload]) -> { {receiver=..., value=...}, ... }
//	log(level, message)
//
// Registry failures are raised as Lua errors so scripts can pcall them.
func (p *Plugin) install(L *lua.LState) {
	signals := L.NewTable()
	L.SetFuncs(signals, map[string]lua.LGFunction{
		"register":   p.luaRegister,
		"unregister": p.luaUnregister,
		"connect":    p.luaConnect,
		"disconnect": p.luaDisconnect,
		"send":       p.luaSend,
	})
	L.SetGlobal("signals", signals)
	L.SetGlobal("log", L.NewFunction(p.luaLog))
}

func (p *Plugin) luaRegister(L *lua.LState) int {
	name := L.CheckString(1)
	description := L.OptString(2, "")
	if _, err := p.handle.Register(name, description); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (p *Plugin) luaUnregister(L *lua.LState) int {
	if err := p.handle.Unregister(L.CheckString(1)); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (p *Plugin) luaConnect(L *lua.LState) int {
	name := L.CheckString(1)
	target := L.CheckString(2)
	fn := L.CheckFunction(3)
	description := L.OptString(4, "")
	if _, err := p.handle.Connect(name, target, p.receiver(name, fn), description); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (p *Plugin) luaDisconnect(L *lua.LState) int {
	if err := p.handle.Disconnect(L.CheckString(1)); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (p *Plugin) luaSend(L *lua.LState) int {
	name := L.CheckString(1)
	var payload signal.Payload
	if t := L.OptTable(2, nil); t != nil {
		payload = signal.Payload(tableToMap(t))
	}

	results, err := p.handle.Send(p.ctx, name, payload)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}

	out := L.CreateTable(len(results), 0)
	for i, r := range results {
		entry := L.CreateTable(0, 2)
		entry.RawSetString("receiver", lua.LString(r.Receiver))
		entry.RawSetString("value", toLua(L, r.Value))
		out.RawSetInt(i+1, entry)
	}
	L.Push(out)
	return 1
}

func (p *Plugin) luaLog(L *lua.LState) int {
	level := parseLevel(L.CheckString(1))
	msg := L.CheckString(2)
	p.log.Log(p.ctx, level, msg, "source", "script")
	return 0
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// toLua converts a Go value into a Lua value. Registrants become their
// names; unknown types their fmt representation.
func toLua(L *lua.LState, v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return v
	case bool:
		return lua.LBool(v)
	case string:
		return lua.LString(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case signal.Registrant:
		return lua.LString(v.RegistrantName())
	case signal.Payload:
		return mapToTable(L, v)
	case map[string]any:
		return mapToTable(L, v)
	case []any:
		t := L.CreateTable(len(v), 0)
		for i, e := range v {
			t.RawSetInt(i+1, toLua(L, e))
		}
		return t
	case []string:
		t := L.CreateTable(len(v), 0)
		for i, e := range v {
			t.RawSetInt(i+1, lua.LString(e))
		}
		return t
	case fmt.Stringer:
		return lua.LString(v.String())
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

func mapToTable(L *lua.LState, m map[string]any) *lua.LTable {
	t := L.CreateTable(0, len(m))
	for k, v := range m {
		t.RawSetString(k, toLua(L, v))
	}
	return t
}

// fromLua converts a Lua value into plain Go values. Sequences become
// []any, other tables map[string]any.
func fromLua(v lua.LValue) any {
	switch v.Type() {
	case lua.LTNil:
		return nil
	case lua.LTBool:
		return lua.LVAsBool(v)
	case lua.LTNumber:
		return float64(lua.LVAsNumber(v))
	case lua.LTString:
		return v.String()
	case lua.LTTable:
		t := v.(*lua.LTable)
		if isSequence(t) {
			out := make([]any, 0, t.Len())
			for i := 1; i <= t.Len(); i++ {
				out = append(out, fromLua(t.RawGetInt(i)))
			}
			return out
		}
		return tableToMap(t)
	default:
		return v.String()
	}
}

func tableToMap(t *lua.LTable) map[string]any {
	out := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		out[k.String()] = fromLua(v)
	})
	return out
}

func isSequence(t *lua.LTable) bool {
	n := t.Len()
	if n == 0 {
		return false
	}
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })
	return count == n
}
