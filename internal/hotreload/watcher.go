// Package hotreload watches library folders and configuration files and
// runs registered handlers after changes settle.
package hotreload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event is one debounced batch of changed paths.
type Event struct {
	Paths     []string
	Timestamp time.Time
}

// Handler reacts to a batch. Only the paths its matcher accepted are passed.
type Handler func(ctx context.Context, event Event) error

// Matcher selects the paths a handler cares about.
type Matcher func(path string) bool

// MatchBase matches the base name against a filepath.Match pattern.
func MatchBase(pattern string) Matcher {
	return func(path string) bool {
		ok, _ := filepath.Match(pattern, filepath.Base(path))
		return ok
	}
}

// MatchUnder matches paths inside any of dirs.
func MatchUnder(dirs ...string) Matcher {
	clean := make([]string, len(dirs))
	for i, d := range dirs {
		clean[i] = filepath.Clean(d)
	}
	return func(path string) bool {
		path = filepath.Clean(path)
		for _, d := range clean {
			if path == d || strings.HasPrefix(path, d+string(filepath.Separator)) {
				return true
			}
		}
		return false
	}
}

// Config controls what is watched.
type Config struct {
	// Dirs are watched together with their subfolders down to Depth.
	Dirs  []string
	Depth int
	// Files are watched through their parent folder.
	Files          []string
	DebounceTime   time.Duration
	IgnorePatterns []string
}

// DefaultConfig ignores dot files (write markers, atomic-write temporaries)
// and per-game preference documents.
func DefaultConfig() *Config {
	return &Config{
		Depth:          1,
		DebounceTime:   500 * time.Millisecond,
		IgnorePatterns: []string{".*", "*.tmp", "easyrpg.json"},
	}
}

type registration struct {
	name    string
	match   Matcher
	handler Handler
}

// Watcher batches fsnotify events and dispatches them to handlers.
type Watcher struct {
	config   *Config
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	handlers []registration

	running  bool
	closed   bool
	stopChan chan struct{}
	timer    *time.Timer
	pending  map[string]struct{}
	mutex    sync.Mutex
}

// New creates a Watcher. Nothing is watched until Start.
func New(config *Config, logger *slog.Logger) (*Watcher, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		config:   config,
		logger:   logger,
		watcher:  fw,
		stopChan: make(chan struct{}),
		pending:  make(map[string]struct{}),
	}, nil
}

// RegisterHandler adds a handler for paths accepted by match.
func (w *Watcher) RegisterHandler(name string, match Matcher, handler Handler) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.handlers = append(w.handlers, registration{name: name, match: match, handler: handler})
	w.logger.Debug("registered reload handler", "name", name)
}

// Start adds the configured folders and begins dispatching. Folders that
// cannot be watched are logged and skipped.
func (w *Watcher) Start(ctx context.Context) error {
	w.mutex.Lock()
	if w.running || w.closed {
		w.mutex.Unlock()
		return errors.New("watcher is already running or stopped")
	}
	w.running = true
	w.mutex.Unlock()

	for _, dir := range w.config.Dirs {
		if err := w.addTree(dir, w.config.Depth); err != nil {
			w.logger.Warn("failed to watch folder", "dir", dir, "error", err)
		}
	}
	for _, f := range w.config.Files {
		dir := filepath.Dir(f)
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Warn("failed to watch file", "file", f, "error", err)
		}
	}
	go w.loop(ctx)
	w.logger.Info("watcher started", "dirs", w.config.Dirs, "files", w.config.Files)
	return nil
}

// addTree watches dir and its non-hidden subfolders down to depth.
func (w *Watcher) addTree(dir string, depth int) error {
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	if depth <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := w.addTree(filepath.Join(dir, e.Name()), depth-1); err != nil {
			w.logger.Debug("subfolder not watched", "dir", e.Name(), "error", err)
		}
	}
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFileEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleFileEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op == fsnotify.Chmod || w.ignored(event.Name) {
		return
	}
	w.logger.Debug("file event", "event", event.Op.String(), "file", event.Name)
	if event.Op.Has(fsnotify.Create) {
		// new game folders under a root become visible to later events
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() && w.underRoot(event.Name) {
			_ = w.watcher.Add(event.Name)
		}
	}
	w.enqueue(ctx, event.Name)
}

func (w *Watcher) underRoot(path string) bool {
	return MatchUnder(w.config.Dirs...)(path)
}

func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.config.IgnorePatterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// enqueue records path and restarts the debounce timer.
func (w *Watcher) enqueue(ctx context.Context, path string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.config.DebounceTime, func() { w.Flush(ctx) })
}

// Flush dispatches pending paths immediately.
func (w *Watcher) Flush(ctx context.Context) {
	w.mutex.Lock()
	if len(w.pending) == 0 {
		w.mutex.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	handlers := append([]registration(nil), w.handlers...)
	w.mutex.Unlock()

	sort.Strings(paths)
	now := time.Now()
	for _, h := range handlers {
		var matched []string
		for _, p := range paths {
			if h.match == nil || h.match(p) {
				matched = append(matched, p)
			}
		}
		if len(matched) == 0 {
			continue
		}
		if err := h.handler(ctx, Event{Paths: matched, Timestamp: now}); err != nil {
			w.logger.Error("reload handler failed", "name", h.name, "error", err)
		} else {
			w.logger.Info("reload handler ran", "name", h.name, "paths", len(matched))
		}
	}
}

// Stop ends dispatching and releases the fsnotify watcher.
func (w *Watcher) Stop() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.running {
		w.running = false
		close(w.stopChan)
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	return w.watcher.Close()
}
