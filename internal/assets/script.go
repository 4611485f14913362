package assets

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/afero"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/zjrosen/grae/internal/resource"
)

// Script is a Lua chunk parsed and compiled at load time. It can be run any
// number of times, each run in a fresh sandboxed state.
type Script struct {
	Name  string
	proto *lua.FunctionProto
}

func (s *Script) Load(l resource.Lookup, path string) error {
	src, err := afero.ReadFile(l.FS(), path)
	if err != nil {
		return err
	}
	proto, err := compileLua(src, path)
	if err != nil {
		return err
	}
	s.Name = path
	s.proto = proto
	return nil
}

// LoadDefault compiles an empty chunk, which runs and returns nothing.
func (s *Script) LoadDefault(resource.Lookup) {
	s.Name = "<default>"
	s.proto, _ = compileLua(nil, s.Name)
}

// Run executes the chunk and returns its results converted to Go values:
// string, float64, bool or nil. Other Lua types are returned as their
// string form.
func (s *Script) Run(ctx context.Context) ([]any, error) {
	if s.proto == nil {
		return nil, fmt.Errorf("script %s is not compiled", s.Name)
	}

	L := newSandboxedState()
	defer L.Close()
	L.SetContext(ctx)

	top := L.GetTop()
	L.Push(L.NewFunctionFromProto(s.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return nil, fmt.Errorf("running %s: %w", s.Name, err)
	}

	n := L.GetTop() - top
	out := make([]any, 0, n)
	for i := top + 1; i <= L.GetTop(); i++ {
		out = append(out, fromLua(L.Get(i)))
	}
	return out, nil
}

func (s *Script) String() string {
	return fmt.Sprintf("lua chunk %s", s.Name)
}

func compileLua(src []byte, name string) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(bytes.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", name, err)
	}
	return proto, nil
}

// newSandboxedState opens only the base, table, string and math libraries
// and removes the loaders from base.
func newSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func fromLua(v lua.LValue) any {
	switch v := v.(type) {
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return float64(v)
	case lua.LBool:
		return bool(v)
	default:
		if v == lua.LNil {
			return nil
		}
		return v.String()
	}
}
