package resource

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/grae/internal/log"
)

// Registry owns one cache per registered resource type and one default
// instance per requested type. Registries are independent: two registries
// never share caches or defaults.
//
// A Registry is safe for concurrent use. It is itself a Lookup rooted at a
// background context.
type Registry struct {
	id      string
	root    string
	fs      afero.Fs
	logger  *log.Logger
	tracer  trace.Tracer
	metrics *Metrics

	mu       sync.RWMutex
	handlers map[reflect.Type]handler
	defaults map[reflect.Type]holder
	closed   bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithFS sets the filesystem resources are read from. Defaults to the OS
// filesystem.
func WithFS(fs afero.Fs) Option {
	return func(r *Registry) {
		r.fs = fs
	}
}

// WithLogger sets the logger. Defaults to log.Default().
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithTracer sets the tracer used for construction spans. Defaults to a
// no-op tracer.
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) {
		r.tracer = t
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithID overrides the generated registry id that tags log entries.
func WithID(id string) Option {
	return func(r *Registry) {
		r.id = id
	}
}

// New creates an empty registry rooted at root. Ids passed to Get resolve to
// root/<type dir>/id.
func New(root string, opts ...Option) *Registry {
	r := &Registry{
		id:       uuid.NewString(),
		root:     root,
		fs:       afero.NewOsFs(),
		tracer:   noop.NewTracerProvider().Tracer("grae/resource"),
		handlers: make(map[reflect.Type]handler),
		defaults: make(map[reflect.Type]holder),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	r.info("initialized resources", "root", root)
	return r
}

// ID returns the registry's instance id.
func (r *Registry) ID() string { return r.id }

func (r *Registry) FS() afero.Fs             { return r.fs }
func (r *Registry) Root() string             { return r.root }
func (r *Registry) Context() context.Context { return context.Background() }
func (r *Registry) Logger() *log.Logger      { return r.logger }
func (r *Registry) lookupScope() *scope      { return &scope{reg: r, ctx: context.Background()} }

// WithContext returns a Lookup whose constructions run under ctx. Spans for
// resources loaded through it become children of the span in ctx.
func (r *Registry) WithContext(ctx context.Context) Lookup {
	return &scope{reg: r, ctx: ctx}
}

// TypeStats describes one registered or defaulted resource type.
type TypeStats struct {
	Type          string
	Dir           string
	Registered    bool
	Cached        int
	DefaultLoaded bool
}

// Stats reports every type the registry knows about, sorted by type name.
func (r *Registry) Stats() []TypeStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byType := make(map[reflect.Type]*TypeStats)
	for typ, h := range r.handlers {
		byType[typ] = &TypeStats{Type: h.typeName(), Dir: h.dir(), Registered: true, Cached: h.len()}
	}
	for typ, h := range r.defaults {
		st, ok := byType[typ]
		if !ok {
			st = &TypeStats{Type: h.typeName()}
			byType[typ] = st
		}
		st.DefaultLoaded = h.loaded()
	}

	out := make([]TypeStats, 0, len(byType))
	for _, st := range byType {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Types returns the names of the registered types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h.typeName())
	}
	sort.Strings(out)
	return out
}

// Cached returns the resolved ids currently cached for the type named
// typeName, or nil if no such type is registered.
func (r *Registry) Cached(typeName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.handlers {
		if h.typeName() == typeName {
			return h.ids()
		}
	}
	return nil
}

// Close releases every cached resource and every default exactly once.
// Pointers handed out by the registry are invalid afterwards. Later lookups
// log ErrClosed and return an unowned zero value. Close is idempotent.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	handlers := r.handlers
	defaults := r.defaults
	r.handlers = make(map[reflect.Type]handler)
	r.defaults = make(map[reflect.Type]holder)
	r.mu.Unlock()

	r.info("unloading resources")
	for _, h := range sortedHandlers(handlers) {
		name := h.typeName()
		h.release(func(id string) {
			r.verbose("resource unloaded", "type", name, "id", id)
		})
		r.metrics.released(name)
	}

	r.info("freeing defaults")
	for _, h := range sortedHolders(defaults) {
		if h.release() {
			r.verbose("default unloaded", "type", h.typeName())
		}
	}

	r.info("all resources freed")
	return nil
}

func (r *Registry) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func sortedHandlers(m map[reflect.Type]handler) []handler {
	out := make([]handler, 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].typeName() < out[j].typeName() })
	return out
}

func sortedHolders(m map[reflect.Type]holder) []holder {
	out := make([]holder, 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].typeName() < out[j].typeName() })
	return out
}

func (r *Registry) fields(fields []any) []any {
	return append(fields, "registry", r.id)
}

func (r *Registry) verbose(msg string, fields ...any) {
	r.logger.Verbose(log.CatResource, msg, r.fields(fields)...)
}

func (r *Registry) debug(msg string, fields ...any) {
	r.logger.Debug(log.CatResource, msg, r.fields(fields)...)
}

func (r *Registry) info(msg string, fields ...any) {
	r.logger.Info(log.CatResource, msg, r.fields(fields)...)
}

func (r *Registry) errorErr(msg string, err error, fields ...any) {
	r.logger.ErrorErr(log.CatResource, msg, err, r.fields(fields)...)
}
