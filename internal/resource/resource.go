// Package resource implements a typed resource registry: a cache that lazily
// constructs, type-indexes and owns heterogeneous named assets.
//
// Each resource type is registered once with a subdirectory:
//
//	reg := resource.New("assets", resource.WithLogger(logger))
//	resource.MustInit[assets.Texture](reg, "textures")
//
// and then looked up by id:
//
//	tex := resource.Get[assets.Texture](reg, "stone.png") // assets/textures/stone.png
//
// Lookups never fail at the call site. A missing type, a failed load or an
// empty id all yield the type's default instance, which is constructed once
// per registry. Returned pointers are owned by the registry and stay valid
// until Registry.Close; callers must not retain them past that point.
//
// A resource's Load method receives a Lookup, which it may use to request
// other resources. The Lookup remembers which resources are being built on
// the current call path, so a dependency cycle fails the construction with
// ErrCycle instead of recursing forever.
package resource

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/afero"

	"github.com/zjrosen/grae/internal/log"
)

var (
	// ErrAlreadyRegistered is returned by Init when the type already has a cache.
	ErrAlreadyRegistered = errors.New("resource type already registered")
	// ErrNotRegistered is logged when a lookup names a type that was never initialized.
	ErrNotRegistered = errors.New("resource type not registered")
	// ErrCycle fails a construction that depends on itself.
	ErrCycle = errors.New("resource dependency cycle")
	// ErrClosed is returned by Init and logged by lookups after Registry.Close.
	ErrClosed = errors.New("resource registry closed")
)

// Resource is implemented by the pointer type of every registered resource.
type Resource interface {
	// Load constructs the resource from path. A non-nil error discards the
	// instance and makes the registry fall back to the type's default.
	Load(l Lookup, path string) error
	// LoadDefault constructs the fallback instance. It cannot fail.
	LoadDefault(l Lookup)
}

// Releaser is optionally implemented by resources that hold something beyond
// memory. Release is called exactly once, at registry teardown or when a
// failed construction is discarded.
type Releaser interface {
	Release()
}

// Lookup is the capability handed to resource constructors. It exposes the
// registry's filesystem and lets a constructor request other resources
// through Get and GetFromRoot without owning the registry.
type Lookup interface {
	FS() afero.Fs
	Root() string
	Context() context.Context
	Logger() *log.Logger
	lookupScope() *scope
}

// key identifies one construction: a type and a resolved id. The empty id
// stands for the type's default.
type key struct {
	typ reflect.Type
	id  string
}

func (k key) String() string {
	if k.id == "" {
		return fmt.Sprintf("%s(default)", k.typ)
	}
	return fmt.Sprintf("%s(%s)", k.typ, k.id)
}

// scope is a Lookup bound to one call path.
type scope struct {
	reg   *Registry
	ctx   context.Context
	chain []key
}

func (s *scope) FS() afero.Fs             { return s.reg.fs }
func (s *scope) Root() string             { return s.reg.root }
func (s *scope) Context() context.Context { return s.ctx }
func (s *scope) Logger() *log.Logger      { return s.reg.logger }
func (s *scope) lookupScope() *scope      { return s }

func (s *scope) onChain(k key) bool {
	for _, c := range s.chain {
		if c == k {
			return true
		}
	}
	return false
}

// push returns a child scope with k appended to the chain.
func (s *scope) push(ctx context.Context, k key) *scope {
	chain := make([]key, len(s.chain), len(s.chain)+1)
	copy(chain, s.chain)
	return &scope{reg: s.reg, ctx: ctx, chain: append(chain, k)}
}

// describe renders the chain closed by k, e.g. "a -> b -> a".
func (s *scope) describe(k key) string {
	parts := make([]string, 0, len(s.chain)+1)
	for _, c := range s.chain {
		parts = append(parts, c.String())
	}
	parts = append(parts, k.String())
	return strings.Join(parts, " -> ")
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// joinPath joins the non-empty segments with "/".
func joinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}
