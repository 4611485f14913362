package resource

import (
	"sort"
	"sync"
	"sync/atomic"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// handler is the type-erased view of a cache[T] that the registry keeps in
// its handler map.
type handler interface {
	typeName() string
	dir() string
	len() int
	ids() []string
	release(fn func(id string))
}

// cache stores the loaded instances of one resource type, keyed by resolved
// path. Entries never expire; they are released together at teardown. Once
// released the cache refuses new entries.
type cache[T any] struct {
	name      string
	directory string
	items     *gocache.Cache
	flight    singleflight.Group

	mu     sync.Mutex
	closed bool
}

func newCache[T any](name, dir string) *cache[T] {
	// A zero cleanup interval means no janitor goroutine.
	return &cache[T]{
		name:      name,
		directory: dir,
		items:     gocache.New(gocache.NoExpiration, 0),
	}
}

func (c *cache[T]) typeName() string { return c.name }
func (c *cache[T]) dir() string      { return c.directory }
func (c *cache[T]) len() int         { return c.items.ItemCount() }

func (c *cache[T]) exists(id string) bool {
	_, ok := c.items.Get(id)
	return ok
}

func (c *cache[T]) get(id string) (*T, bool) {
	v, ok := c.items.Get(id)
	if !ok {
		return nil, false
	}
	p, ok := v.(*T)
	return p, ok && p != nil
}

// insert stores p under id unless another instance got there first, and
// returns whichever instance the cache now holds. It fails with ErrClosed
// after release; p is then still owned by the caller.
func (c *cache[T]) insert(id string, p *T) (*T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false, ErrClosed
	}
	if err := c.items.Add(id, p, gocache.NoExpiration); err != nil {
		if existing, ok := c.get(id); ok {
			return existing, false, nil
		}
		c.items.Set(id, p, gocache.NoExpiration)
	}
	return p, true, nil
}

func (c *cache[T]) ids() []string {
	items := c.items.Items()
	out := make([]string, 0, len(items))
	for id := range items {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// release frees every cached instance exactly once, empties the cache and
// closes it to further inserts.
func (c *cache[T]) release(fn func(id string)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for _, id := range c.ids() {
		if p, ok := c.get(id); ok {
			releaseInstance(p)
		}
		c.items.Delete(id)
		if fn != nil {
			fn(id)
		}
	}
}

// holder is the type-erased view of a defaultHolder[T].
type holder interface {
	typeName() string
	loaded() bool
	release() bool
}

// defaultHolder owns the lazily built fallback instance of one type. inst is
// published before construction finishes so that a re-entrant request on
// the constructing goroutine can be answered; ready flips once LoadDefault
// has returned.
type defaultHolder[T any] struct {
	name  string
	mu    sync.Mutex
	inst  atomic.Pointer[T]
	ready atomic.Bool
}

func newDefaultHolder[T any](name string) *defaultHolder[T] {
	return &defaultHolder[T]{name: name}
}

func (h *defaultHolder[T]) typeName() string { return h.name }
func (h *defaultHolder[T]) loaded() bool     { return h.ready.Load() }

// release frees the default instance if one was built.
func (h *defaultHolder[T]) release() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := h.inst.Swap(nil)
	h.ready.Store(false)
	if p == nil {
		return false
	}
	releaseInstance(p)
	return true
}

func releaseInstance(p any) {
	if r, ok := p.(Releaser); ok {
		r.Release()
	}
}
