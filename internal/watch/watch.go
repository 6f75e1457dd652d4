// Package watch turns new media files dropped into directories into
// conversion batches.
package watch

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

	"aacnorm/internal/logging"
)

const defaultSettle = 5 * time.Second

// Options configures a Watcher.
type Options struct {
	// Settle is how long a file must go unchanged before it is dispatched.
	Settle time.Duration
	// Exclude lists directories whose contents are never dispatched.
	Exclude []string
	// Accept filters candidate paths. Nil accepts everything.
	Accept func(path string) bool
	// IncludeExisting dispatches files already present at start.
	IncludeExisting bool
	Logger          *slog.Logger
}

// Handler converts one batch. It runs on a single goroutine, so batches never
// overlap.
type Handler func(ctx context.Context, paths []string)

type pendingFile struct {
	size    int64
	changed time.Time
}

// Watcher debounces filesystem events into settled file batches.
type Watcher struct {
	dirs    []string
	opts    Options
	logger  *slog.Logger
	fsw     *fsnotify.Watcher
	exclude []string

	mu         sync.Mutex
	pending    map[string]pendingFile
	dispatched map[string]struct{}
	now        func() time.Time
}

// New creates a watcher for dirs. Each dir must exist.
func New(dirs []string, opts Options) (*Watcher, error) {
	if len(dirs) == 0 {
		return nil, errors.New("no directories to watch")
	}
	if opts.Settle <= 0 {
		opts.Settle = defaultSettle
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	w := &Watcher{
		opts:       opts,
		logger:     logging.NewComponentLogger(opts.Logger, "watch"),
		fsw:        fsw,
		pending:    make(map[string]pendingFile),
		dispatched: make(map[string]struct{}),
		now:        time.Now,
	}
	for _, ex := range opts.Exclude {
		if abs, err := filepath.Abs(ex); err == nil {
			w.exclude = append(w.exclude, filepath.Clean(abs))
		}
	}
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolve %s: %w", dir, err)
		}
		if err := fsw.Add(abs); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", abs, err)
		}
		w.dirs = append(w.dirs, abs)
	}
	return w, nil
}

// Run blocks until ctx is done, dispatching settled batches to handle.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	defer w.fsw.Close()

	batches := make(chan []string, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for batch := range batches {
			handle(ctx, batch)
		}
	}()
	defer func() {
		close(batches)
		wg.Wait()
	}()

	if w.opts.IncludeExisting {
		w.seedExisting()
	}
	w.logger.Info("watching for new media", logging.String("dirs", strings.Join(w.dirs, ", ")),
		logging.Duration("settle", w.opts.Settle))

	tick := w.opts.Settle / 4
	if tick < 100*time.Millisecond {
		tick = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "file watcher error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_watches if events are dropped"),
			)
		case <-ticker.C:
			if batch := w.settled(); len(batch) > 0 {
				w.logger.Info("dispatching settled files", logging.Int("count", len(batch)))
				select {
				case batches <- batch:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.forget(path)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.observe(path)
	}
}

func (w *Watcher) observe(path string) {
	if !w.candidate(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, done := w.dispatched[path]; done {
		return
	}
	w.pending[path] = pendingFile{size: info.Size(), changed: w.now()}
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, path)
	delete(w.dispatched, path)
}

// settled returns pending files whose size held steady for the settle window.
func (w *Watcher) settled() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	var batch []string
	for path, p := range w.pending {
		info, err := os.Stat(path)
		if err != nil {
			delete(w.pending, path)
			continue
		}
		if info.Size() != p.size {
			w.pending[path] = pendingFile{size: info.Size(), changed: now}
			continue
		}
		if now.Sub(p.changed) < w.opts.Settle {
			continue
		}
		delete(w.pending, path)
		w.dispatched[path] = struct{}{}
		batch = append(batch, path)
	}
	sort.Strings(batch)
	return batch
}

func (w *Watcher) seedExisting() {
	for _, dir := range w.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			w.logger.Warn("read watch dir failed", logging.String("dir", dir), logging.Error(err))
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				w.observe(filepath.Join(dir, entry.Name()))
			}
		}
	}
}

func (w *Watcher) candidate(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	for _, ex := range w.exclude {
		if path == ex || strings.HasPrefix(path, ex+string(filepath.Separator)) {
			return false
		}
	}
	if w.opts.Accept != nil && !w.opts.Accept(path) {
		return false
	}
	return true
}
