package tagtransform

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/mjolnir-routing/mjolnir/internal/graph"
)

// LuaClassifier runs the node and way tag transforms in an embedded Lua
// interpreter. Each element type has its own script and entrypoint
// function, configured by path and name. The entrypoint receives a table
// of raw tags and returns a table of classified attributes; returning an
// empty table (or nil) rejects the element.
//
// A single interpreter handles both scripts; classification is called from
// the single-threaded parse phase only.
type LuaClassifier struct {
	state    *lua.LState
	nodeFunc lua.LValue
	wayFunc  lua.LValue
}

// ScriptConfig locates one transform script.
type ScriptConfig struct {
	Script   string // path to the Lua file
	Function string // entrypoint function name
}

// NewLuaClassifier loads both transform scripts and resolves their
// entrypoints.
func NewLuaClassifier(node, way ScriptConfig) (*LuaClassifier, error) {
	L := lua.NewState()

	c := &LuaClassifier{state: L}
	var err error
	if c.nodeFunc, err = loadEntrypoint(L, node); err != nil {
		L.Close()
		return nil, fmt.Errorf("node transform: %w", err)
	}
	if c.wayFunc, err = loadEntrypoint(L, way); err != nil {
		L.Close()
		return nil, fmt.Errorf("way transform: %w", err)
	}
	return c, nil
}

func loadEntrypoint(L *lua.LState, cfg ScriptConfig) (lua.LValue, error) {
	if err := L.DoFile(cfg.Script); err != nil {
		return lua.LNil, fmt.Errorf("%w: failed to load %s: %v",
			graph.ErrClassifierFailure, cfg.Script, err)
	}
	fn := L.GetGlobal(cfg.Function)
	if fn.Type() != lua.LTFunction {
		return lua.LNil, fmt.Errorf("%w: %s does not define function %q",
			graph.ErrClassifierFailure, cfg.Script, cfg.Function)
	}
	return fn, nil
}

// Classify calls the configured entrypoint for the element kind.
func (c *LuaClassifier) Classify(kind Kind, tags map[string]string) (map[string]string, error) {
	fn := c.wayFunc
	if kind == KindNode {
		fn = c.nodeFunc
	}

	in := c.state.NewTable()
	for k, v := range tags {
		in.RawSetString(k, lua.LString(v))
	}

	if err := c.state.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, in); err != nil {
		return nil, fmt.Errorf("%w: %v", graph.ErrClassifierFailure, err)
	}
	ret := c.state.Get(-1)
	c.state.Pop(1)

	out, ok := ret.(*lua.LTable)
	if !ok {
		// nil means rejected
		if ret == lua.LNil {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: transform returned %s, want table",
			graph.ErrClassifierFailure, ret.Type())
	}

	result := make(map[string]string)
	out.ForEach(func(k, v lua.LValue) {
		result[lua.LVAsString(k)] = lua.LVAsString(v)
	})
	return result, nil
}

// Close releases the interpreter.
func (c *LuaClassifier) Close() {
	if c.state != nil {
		c.state.Close()
		c.state = nil
	}
}
