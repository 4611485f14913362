// Package assets provides the built-in resource types: Gen configs, windows,
// textures, fonts, shaders and Lua scripts.
package assets

import (
	"fmt"
	"sort"

	"github.com/zjrosen/grae/internal/resource"
)

// Kind describes one built-in resource type by its short name, so the CLI
// can register and load types it only knows by name.
type Kind struct {
	Name string
	Dir  string

	register func(r *resource.Registry, dir string) error
	load     func(l resource.Lookup, id string, fromRoot bool) (any, bool)
}

func kind[T any, PT interface {
	*T
	resource.Resource
}](name, dir string) Kind {
	return Kind{
		Name: name,
		Dir:  dir,
		register: func(r *resource.Registry, dir string) error {
			return resource.Init[T, PT](r, dir)
		},
		load: func(l resource.Lookup, id string, fromRoot bool) (any, bool) {
			var p *T
			if fromRoot {
				p = resource.GetFromRoot[T, PT](l, id)
			} else {
				p = resource.Get[T, PT](l, id)
			}
			return p, resource.IsDefault(l, p)
		},
	}
}

var kinds = []Kind{
	kind[Config]("config", "config"),
	kind[Window]("window", "windows"),
	kind[Texture]("texture", "textures"),
	kind[Font]("font", "fonts"),
	kind[Shader]("shader", "shaders"),
	kind[Script]("script", "scripts"),
}

// Kinds returns the built-in kinds in registration order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// KindByName returns the built-in kind with the given short name.
func KindByName(name string) (Kind, bool) {
	for _, k := range kinds {
		if k.Name == name {
			return k, true
		}
	}
	return Kind{}, false
}

// Register initializes every built-in type on r. dirs overrides the
// subdirectory of a kind by short name; unknown names are an error.
func Register(r *resource.Registry, dirs map[string]string) error {
	for name := range dirs {
		if _, ok := KindByName(name); !ok {
			return fmt.Errorf("unknown resource type %q (known: %v)", name, names())
		}
	}
	for _, k := range kinds {
		dir := k.Dir
		if override, ok := dirs[k.Name]; ok {
			dir = override
		}
		if err := k.register(r, dir); err != nil {
			return err
		}
	}
	return nil
}

// Load fetches id through the registry and reports whether the result is
// the type's default.
func (k Kind) Load(l resource.Lookup, id string) (any, bool) {
	return k.load(l, id, false)
}

// LoadFromRoot is like Load but uses id as a root-relative path.
func (k Kind) LoadFromRoot(l resource.Lookup, id string) (any, bool) {
	return k.load(l, id, true)
}

func names() []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k.Name)
	}
	sort.Strings(out)
	return out
}
