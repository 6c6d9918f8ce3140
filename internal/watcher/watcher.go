// Package watcher reports debounced batches of changes to a Solidity
// project's sources and import configuration.
package watcher

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// configFiles change import resolution, so edits to them trigger a re-link
// like source edits do.
var configFiles = map[string]bool{
	"remappings.txt": true,
	"foundry.toml":   true,
	".solvis.yaml":   true,
}

// Relevant reports whether a change to path can affect the call graph.
func Relevant(path string) bool {
	return filepath.Ext(path) == ".sol" || configFiles[filepath.Base(path)]
}

// Options configures a Watcher.
type Options struct {
	Root     string
	Exclude  []string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Change is a batch of relevant paths that changed during one quiet period.
type Change struct {
	Paths []string
	Time  time.Time
}

// Watcher watches a project tree and emits one Change per burst of edits.
type Watcher struct {
	root     string
	debounce time.Duration
	matcher  *Matcher
	log      *slog.Logger

	mu     sync.Mutex
	fsw    *fsnotify.Watcher
	closed bool
}

// New creates a watcher for opts.Root. The tree's .gitignore files are read
// once, here.
func New(opts Options) (*Watcher, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	m := NewMatcher(root, opts.Exclude)
	if err := m.LoadGitIgnores(); err != nil {
		return nil, err
	}
	d := opts.Debounce
	if d <= 0 {
		d = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{root: root, debounce: d, matcher: m, log: logger}, nil
}

// Start begins watching and returns the change channel. The channel is
// closed when ctx is done or the watcher is closed.
func (w *Watcher) Start(ctx context.Context) (<-chan Change, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		fsw.Close()
		return nil, err
	}

	out := make(chan Change, 8)
	go w.loop(ctx, fsw, out)
	return out, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != w.root && (d.Name() == ".git" || w.matcher.Match(path, true)) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- Change) {
	defer close(out)

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
				!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if w.matcher.Match(ev.Name, true) {
						continue
					}
					if err := w.addTree(ev.Name); err != nil {
						w.log.Warn("watch new directory", "path", ev.Name, "error", err)
					}
					// Files written before the directory was added are not
					// reported by fsnotify.
					w.collectTree(ev.Name, pending)
					if len(pending) == 0 {
						continue
					}
					fire = w.arm(&timer)
					continue
				}
			}
			if !Relevant(ev.Name) || w.matcher.Match(ev.Name, false) {
				continue
			}
			w.log.Debug("change", "path", ev.Name, "op", ev.Op.String())
			pending[ev.Name] = struct{}{}
			fire = w.arm(&timer)

		case <-fire:
			fire = nil
			c := Change{Time: time.Now(), Paths: make([]string, 0, len(pending))}
			for p := range pending {
				c.Paths = append(c.Paths, p)
			}
			sort.Strings(c.Paths)
			clear(pending)
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// arm starts or restarts the debounce timer.
func (w *Watcher) arm(timer **time.Timer) <-chan time.Time {
	if *timer == nil {
		*timer = time.NewTimer(w.debounce)
	} else {
		(*timer).Reset(w.debounce)
	}
	return (*timer).C
}

func (w *Watcher) collectTree(dir string, pending map[string]struct{}) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if w.matcher.Match(path, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if Relevant(path) && !w.matcher.Match(path, false) {
			pending[path] = struct{}{}
		}
		return nil
	})
}
