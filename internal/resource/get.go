package resource

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Init registers a cache for T whose ids resolve under root/dir. Each type
// may be registered once per registry.
func Init[T any, PT interface {
	*T
	Resource
}](r *Registry, dir string) error {
	typ := typeOf[T]()
	name := typ.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if _, exists := r.handlers[typ]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.handlers[typ] = newCache[T](name, dir)
	r.debug("initialized resource type", "type", name, "dir", dir)
	return nil
}

// MustInit is like Init but panics on error.
func MustInit[T any, PT interface {
	*T
	Resource
}](r *Registry, dir string) {
	if err := Init[T, PT](r, dir); err != nil {
		panic(err)
	}
}

// Get returns the T identified by id, resolved as root/<dir of T>/id. An
// empty id returns the default. On a miss the resource is constructed and
// cached; if T is unregistered or construction fails the default is
// returned instead. Get never returns nil.
func Get[T any, PT interface {
	*T
	Resource
}](l Lookup, id string) *T {
	s := l.lookupScope()
	if id == "" {
		return lookupDefault[T, PT](s)
	}
	return getResolved[T, PT](s, Path[T](l, id))
}

// GetFromRoot is like Get but uses id verbatim as the path, ignoring both
// the registry root and the type directory.
func GetFromRoot[T any, PT interface {
	*T
	Resource
}](l Lookup, id string) *T {
	s := l.lookupScope()
	if id == "" {
		return lookupDefault[T, PT](s)
	}
	return getResolved[T, PT](s, id)
}

// Default returns the default instance of T, constructing it on first use.
func Default[T any, PT interface {
	*T
	Resource
}](l Lookup) *T {
	return lookupDefault[T, PT](l.lookupScope())
}

// Path resolves id the way Get does. Unregistered types resolve to root/id.
func Path[T any](l Lookup, id string) string {
	s := l.lookupScope()
	dir := ""
	if h, ok := handlerFor[T](s.reg); ok {
		dir = h.directory
	}
	return joinPath(s.reg.root, dir, id)
}

// Exists reports whether path is already cached for T. It never triggers a
// load.
func Exists[T any](l Lookup, path string) bool {
	h, ok := handlerFor[T](l.lookupScope().reg)
	return ok && h.exists(path)
}

// IsDefault reports whether p is the registry's default instance of T.
func IsDefault[T any](l Lookup, p *T) bool {
	if p == nil {
		return false
	}
	h, ok := holderFor[T](l.lookupScope().reg, false)
	return ok && h.inst.Load() == p
}

func handlerFor[T any](r *Registry) (*cache[T], bool) {
	r.mu.RLock()
	hv, ok := r.handlers[typeOf[T]()]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	h, ok := hv.(*cache[T])
	return h, ok
}

// holderFor returns the default holder for T, creating it when create is set.
func holderFor[T any](r *Registry, create bool) (*defaultHolder[T], bool) {
	typ := typeOf[T]()

	r.mu.RLock()
	hv, ok := r.defaults[typ]
	r.mu.RUnlock()
	if !ok {
		if !create {
			return nil, false
		}
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, false
		}
		hv, ok = r.defaults[typ]
		if !ok {
			hv = newDefaultHolder[T](typ.String())
			r.defaults[typ] = hv
		}
		r.mu.Unlock()
	}
	h, ok := hv.(*defaultHolder[T])
	return h, ok
}

func getResolved[T any, PT interface {
	*T
	Resource
}](s *scope, path string) *T {
	r := s.reg
	name := typeOf[T]().String()
	r.verbose("resource requested", "type", name, "id", path)

	if r.isClosed() {
		r.errorErr("lookup after close", ErrClosed, "type", name, "id", path)
		r.metrics.lookup(name, resultClosed)
		return new(T)
	}

	h, ok := handlerFor[T](r)
	if !ok {
		r.errorErr("resource type not initialized", ErrNotRegistered, "type", name, "id", path)
		r.metrics.lookup(name, resultUnregistered)
		p, _ := getDefault[T, PT](s)
		return p
	}

	if p, ok := h.get(path); ok {
		r.metrics.lookup(name, resultHit)
		return p
	}

	k := key{typ: typeOf[T](), id: path}
	if s.onChain(k) {
		err := fmt.Errorf("%w: %s", ErrCycle, s.describe(k))
		r.errorErr("failed to load resource", err, "type", name, "id", path)
		r.metrics.lookup(name, resultFailed)
		p, _ := getDefault[T, PT](s)
		return p
	}

	// Concurrent misses for the same path share one construction. Only the
	// caller that ran it has its lookup recorded by load.
	led := false
	v, _, _ := h.flight.Do(path, func() (any, error) {
		led = true
		if p, ok := h.get(path); ok {
			r.metrics.lookup(name, resultHit)
			return p, nil
		}
		return load[T, PT](s, h, k), nil
	})
	p, _ := v.(*T)
	closed := p == nil && r.isClosed()
	if !led {
		switch {
		case p != nil:
			r.metrics.lookup(name, resultHit)
		case closed:
			r.metrics.lookup(name, resultClosed)
		default:
			r.metrics.lookup(name, resultFailed)
		}
	}
	if p != nil {
		return p
	}
	if closed {
		return new(T)
	}
	p, _ = getDefault[T, PT](s)
	return p
}

// load constructs, caches and returns the resource at k.id, or nil if
// construction failed.
func load[T any, PT interface {
	*T
	Resource
}](s *scope, h *cache[T], k key) *T {
	r := s.reg
	name := h.name

	ctx, span := r.tracer.Start(s.ctx, "resource.load", trace.WithAttributes(
		attribute.String("resource.type", name),
		attribute.String("resource.path", k.id),
		attribute.String("registry.id", r.id),
	))
	defer span.End()

	r.info("loading resource", "type", name, "id", k.id)
	start := time.Now()

	p := new(T)
	if err := construct(PT(p), s.push(ctx, k), k.id); err != nil {
		releaseInstance(p)
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		r.errorErr("failed to load resource", err, "type", name, "id", k.id)
		r.metrics.lookup(name, resultFailed)
		return nil
	}

	stored, fresh, err := h.insert(k.id, p)
	if err != nil {
		// The registry closed while p was being built; nobody else will
		// release it.
		releaseInstance(p)
		span.RecordError(err)
		span.SetStatus(codes.Error, "registry closed")
		r.errorErr("resource loaded after close", err, "type", name, "id", k.id)
		r.metrics.lookup(name, resultClosed)
		return nil
	}
	if !fresh {
		releaseInstance(p)
	}
	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int64("resource.load_ms", elapsed.Milliseconds()))
	r.metrics.loaded(name, elapsed, h.len())
	r.metrics.lookup(name, resultLoaded)
	r.debug("loaded resource", "type", name, "id", k.id, "duration", elapsed)
	return stored
}

// construct runs Load, turning a panic into an error so that a broken
// resource cannot take the host down.
func construct(p Resource, l Lookup, path string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while loading %s: %v", path, rec)
		}
	}()
	return p.Load(l, path)
}

// lookupDefault serves a direct request for the default and records it.
func lookupDefault[T any, PT interface {
	*T
	Resource
}](s *scope) *T {
	p, ok := getDefault[T, PT](s)
	if ok {
		s.reg.metrics.lookup(typeOf[T]().String(), resultDefault)
	} else {
		s.reg.metrics.lookup(typeOf[T]().String(), resultClosed)
	}
	return p
}

// getDefault returns the default instance of T, building it on first use.
// After close it returns an unowned zero value and false.
func getDefault[T any, PT interface {
	*T
	Resource
}](s *scope) (*T, bool) {
	r := s.reg
	typ := typeOf[T]()
	name := typ.String()

	h, ok := holderFor[T](r, true)
	if !ok {
		r.errorErr("default requested after close", ErrClosed, "type", name)
		return new(T), false
	}

	if h.ready.Load() {
		if p := h.inst.Load(); p != nil {
			return p, true
		}
	}

	k := key{typ: typ}
	if s.onChain(k) {
		// Only the constructing goroutine can get here; inst is already set.
		r.errorErr("default requested during its own construction", fmt.Errorf("%w: %s", ErrCycle, s.describe(k)), "type", name)
		if p := h.inst.Load(); p != nil {
			return p, true
		}
		return new(T), true
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ready.Load() {
		if p := h.inst.Load(); p != nil {
			return p, true
		}
	}

	ctx, span := r.tracer.Start(s.ctx, "resource.default", trace.WithAttributes(
		attribute.String("resource.type", name),
		attribute.String("registry.id", r.id),
	))
	defer span.End()

	r.debug("loading default resource", "type", name)
	p := new(T)
	h.inst.Store(p)
	constructDefault(PT(p), s.push(ctx, k), r, name)
	h.ready.Store(true)
	r.metrics.defaultBuilt(name)
	return p, true
}

// constructDefault runs LoadDefault. A panic is logged and leaves the
// instance in whatever state LoadDefault reached.
func constructDefault(p Resource, l Lookup, r *Registry, name string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.errorErr("default construction panicked", fmt.Errorf("%v", rec), "type", name)
		}
	}()
	p.LoadDefault(l)
}
