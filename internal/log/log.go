// Package log provides structured, leveled logging for grae.
//
// A Logger is an explicit value: the resource registry and the CLI each hold
// their own, and tests inject a Recorder sink to observe events. Every entry
// is also published on a pub/sub broker so that long-running commands can
// stream log output to interested listeners.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/zjrosen/grae/internal/pubsub"
)

// Level represents log severity.
type Level int

const (
	LevelVerbose Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelVerbose:
		return "VERBOSE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name (case-insensitive) into a Level.
// "warning" and "err" are accepted as aliases.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verbose", "trace":
		return LevelVerbose, nil
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error", "err":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Category groups related log messages.
type Category string

const (
	CatResource Category = "resource" // registry lookups, construction and teardown
	CatGen      Category = "gen"      // Gen parsing and loading
	CatConfig   Category = "config"   // CLI configuration loading
	CatWatcher  Category = "watcher"  // File watcher events
	CatCLI      Category = "cli"      // command execution
	CatAssets   Category = "assets"   // built-in asset decoding
)

// Entry is a single structured log record.
type Entry struct {
	Time     time.Time
	Level    Level
	Category Category
	Message  string
	Fields   []any
}

// Field returns the value of the named field and whether it was present.
func (e Entry) Field(key string) (any, bool) {
	for i := 0; i+1 < len(e.Fields); i += 2 {
		if k, ok := e.Fields[i].(string); ok && k == key {
			return e.Fields[i+1], true
		}
	}
	return nil, false
}

// Format renders the entry in the line format used by WriterSink:
//
//	2025-12-06T10:45:00 [ERROR] [resource] message key=value key2=value2
func (e Entry) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%s] %s", e.Time.Format("2006-01-02T15:04:05"), e.Level, e.Category, e.Message)

	for i := 0; i+1 < len(e.Fields); i += 2 {
		fmt.Fprintf(&b, " %v=%v", e.Fields[i], e.Fields[i+1])
	}
	// Handle odd field count - append orphan key with no value
	if len(e.Fields)%2 != 0 {
		fmt.Fprintf(&b, " %v=<missing>", e.Fields[len(e.Fields)-1])
	}
	return b.String()
}

// Sink receives log entries that passed the logger's level filter.
// Implementations must be safe for concurrent use.
type Sink interface {
	Write(e Entry)
}

// WriterSink formats entries as lines on an io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink that writes formatted lines to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Write implements Sink.
func (s *WriterSink) Write(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, e.Format()+"\n")
}

// Logger provides structured logging.
type Logger struct {
	mu       sync.RWMutex
	sinks    []Sink
	enabled  bool
	minLevel Level
	fields   []any
	broker   *pubsub.Broker[Entry]
}

// Option configures a Logger.
type Option func(*Logger)

// WithSink adds a sink to the logger.
func WithSink(s Sink) Option {
	return func(l *Logger) {
		l.sinks = append(l.sinks, s)
	}
}

// WithWriter adds a WriterSink for w.
func WithWriter(w io.Writer) Option {
	return WithSink(NewWriterSink(w))
}

// WithMinLevel sets the minimum level that reaches sinks.
func WithMinLevel(level Level) Option {
	return func(l *Logger) {
		l.minLevel = level
	}
}

// WithFields attaches fields to every entry emitted by the logger.
func WithFields(fields ...any) Option {
	return func(l *Logger) {
		l.fields = append(l.fields, fields...)
	}
}

// New creates an enabled logger. Without sinks it only publishes to
// subscribers, which makes a bare New() a cheap discard logger.
func New(opts ...Option) *Logger {
	l := &Logger{
		enabled:  true,
		minLevel: LevelVerbose,
		broker:   pubsub.NewBroker[Entry](),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Nop returns a disabled logger.
func Nop() *Logger {
	l := New()
	l.enabled = false
	return l
}

// SetEnabled toggles logging on/off.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	l.enabled = enabled
	l.mu.Unlock()
}

// SetMinLevel sets the minimum log level.
func (l *Logger) SetMinLevel(level Level) {
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
}

// AddSink attaches another sink at runtime.
func (l *Logger) AddSink(s Sink) {
	l.mu.Lock()
	l.sinks = append(l.sinks, s)
	l.mu.Unlock()
}

// Verbose logs at verbose level.
func (l *Logger) Verbose(cat Category, msg string, fields ...any) {
	l.log(LevelVerbose, cat, msg, fields...)
}

// Debug logs at debug level.
func (l *Logger) Debug(cat Category, msg string, fields ...any) {
	l.log(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func (l *Logger) Info(cat Category, msg string, fields ...any) {
	l.log(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func (l *Logger) Warn(cat Category, msg string, fields ...any) {
	l.log(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func (l *Logger) Error(cat Category, msg string, fields ...any) {
	l.log(LevelError, cat, msg, fields...)
}

// ErrorErr logs an error with the error value.
func (l *Logger) ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	l.log(LevelError, cat, msg, fields...)
}

// Subscribe streams every emitted entry until ctx is cancelled.
func (l *Logger) Subscribe(ctx context.Context) <-chan pubsub.Event[Entry] {
	return l.broker.Subscribe(ctx)
}

// SubscribeLevel streams entries at or above min in the given categories,
// or in every category when none are named.
func (l *Logger) SubscribeLevel(ctx context.Context, min Level, cats ...Category) <-chan pubsub.Event[Entry] {
	return l.broker.SubscribeFunc(ctx, func(ev pubsub.Event[Entry]) bool {
		if ev.Payload.Level < min {
			return false
		}
		return len(cats) == 0 || slices.Contains(cats, ev.Payload.Category)
	})
}

// Close shuts down the logger's broker. Sinks are owned by the caller.
func (l *Logger) Close() {
	l.broker.Close()
}

func (l *Logger) log(level Level, cat Category, msg string, fields ...any) {
	if l == nil {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.enabled || level < l.minLevel {
		return
	}

	all := fields
	if len(l.fields) > 0 {
		all = make([]any, 0, len(l.fields)+len(fields))
		all = append(all, l.fields...)
		all = append(all, fields...)
	}

	entry := Entry{
		Time:     time.Now(),
		Level:    level,
		Category: cat,
		Message:  msg,
		Fields:   all,
	}

	for _, s := range l.sinks {
		s.Write(entry)
	}

	// Publish event to subscribers (non-blocking)
	l.broker.Publish(pubsub.CreatedEvent, entry)
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = Nop()
	defaultFile   *os.File
)

// Init points the package-level logger at a file.
// Returns a cleanup function to close the log file.
func Init(path string, level Level) (func(), error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //nolint:gosec // G304: path is user-controlled debug log path
	if err != nil {
		return nil, err
	}

	defaultMu.Lock()
	defaultLogger = New(WithWriter(f), WithMinLevel(level))
	defaultFile = f
	defaultMu.Unlock()

	return func() {
		defaultMu.Lock()
		defer defaultMu.Unlock()
		if defaultFile != nil {
			_ = defaultFile.Close()
			defaultFile = nil
		}
		defaultLogger = Nop()
	}, nil
}

// SetDefault replaces the package-level logger. Passing nil disables it.
func SetDefault(l *Logger) {
	if l == nil {
		l = Nop()
	}
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default returns the package-level logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Debug logs at debug level on the package-level logger.
func Debug(cat Category, msg string, fields ...any) {
	Default().Debug(cat, msg, fields...)
}

// Info logs at info level on the package-level logger.
func Info(cat Category, msg string, fields ...any) {
	Default().Info(cat, msg, fields...)
}

// Warn logs at warning level on the package-level logger.
func Warn(cat Category, msg string, fields ...any) {
	Default().Warn(cat, msg, fields...)
}

// Error logs at error level on the package-level logger.
func Error(cat Category, msg string, fields ...any) {
	Default().Error(cat, msg, fields...)
}

// ErrorErr logs an error value on the package-level logger.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	Default().ErrorErr(cat, msg, err, fields...)
}
