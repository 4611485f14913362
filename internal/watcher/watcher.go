// Package watcher watches a resource tree on disk and publishes debounced
// batches of changed files.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/grae/internal/log"
	"github.com/zjrosen/grae/internal/pubsub"
)

// Change is one debounced batch of filesystem activity.
type Change struct {
	Updated []string
	Removed []string
}

// Config holds watcher configuration options.
type Config struct {
	Root     string
	Debounce time.Duration
	// Extensions limits events to files with these suffixes, e.g. ".gen".
	// Empty means every file.
	Extensions []string
}

// DefaultConfig watches every file under root.
func DefaultConfig(root string) Config {
	return Config{
		Root:     root,
		Debounce: 250 * time.Millisecond,
	}
}

// Watcher monitors a directory tree and publishes Change events.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	cfg       Config
	logger    *log.Logger
	broker    *pubsub.Broker[Change]
	done      chan struct{}
	stopOnce  sync.Once
}

// New creates a watcher. Nothing is watched until Start.
func New(cfg Config, logger *log.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultConfig(cfg.Root).Debounce
	}
	return &Watcher{
		fsWatcher: fsw,
		cfg:       cfg,
		logger:    logger,
		broker:    pubsub.NewBroker[Change](),
		done:      make(chan struct{}),
	}, nil
}

// Subscribe streams change batches until ctx is cancelled or the watcher
// stops.
func (w *Watcher) Subscribe(ctx context.Context) <-chan pubsub.Event[Change] {
	return w.broker.Subscribe(ctx)
}

// Start watches the root and every directory below it.
func (w *Watcher) Start() error {
	err := filepath.WalkDir(w.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("watching directory %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.logger.Info(log.CatWatcher, "watching", "root", w.cfg.Root, "debounce", w.cfg.Debounce)
	go w.loop()
	return nil
}

// Stop terminates the watcher. Subscribers' channels are closed.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
		w.broker.Close()
		if n := w.broker.Dropped(); n > 0 {
			w.logger.Warn(log.CatWatcher, "slow subscribers missed changes", "dropped", n)
		}
	})
	return err
}

func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		fire    <-chan time.Time
		updated = map[string]struct{}{}
		removed = map[string]struct{}{}
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.track(event, updated, removed) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
			} else {
				timer.Reset(w.cfg.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.flush(updated, removed)
			clear(updated)
			clear(removed)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.ErrorErr(log.CatWatcher, "watch error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// track records event in the pending sets and reports whether it matters.
func (w *Watcher) track(event fsnotify.Event, updated, removed map[string]struct{}) bool {
	name := filepath.ToSlash(event.Name)

	if event.Has(fsnotify.Create) {
		// New directories are watched so that files created in them are seen.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsWatcher.Add(event.Name); err != nil {
				w.logger.ErrorErr(log.CatWatcher, "failed to watch new directory", err, "path", name)
			} else {
				w.logger.Debug(log.CatWatcher, "watching new directory", "path", name)
			}
			return false
		}
	}
	if !w.relevant(name) {
		return false
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		delete(updated, name)
		removed[name] = struct{}{}
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		delete(removed, name)
		updated[name] = struct{}{}
	default:
		return false
	}
	return true
}

func (w *Watcher) relevant(name string) bool {
	if len(w.cfg.Extensions) == 0 {
		return true
	}
	for _, ext := range w.cfg.Extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func (w *Watcher) flush(updated, removed map[string]struct{}) {
	if len(updated) == 0 && len(removed) == 0 {
		return
	}
	c := Change{Updated: sortedKeys(updated), Removed: sortedKeys(removed)}
	w.logger.Debug(log.CatWatcher, "change detected", "updated", len(c.Updated), "removed", len(c.Removed))

	eventType := pubsub.UpdatedEvent
	if len(c.Updated) == 0 {
		eventType = pubsub.DeletedEvent
	}
	if w.broker.Publish(eventType, c) == 0 {
		w.logger.Verbose(log.CatWatcher, "change had no listeners")
	}
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
