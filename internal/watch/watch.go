// Package watch reports repository changes on the event bus.
package watch

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thiagokokada/revgraph/internal/debounce"
	"github.com/thiagokokada/revgraph/internal/events"
)

const DefaultDelay = 350 * time.Millisecond

// Source is the RepoChanged source for filesystem triggered reloads.
const Source = "watch"

type Watcher struct {
	mu       sync.Mutex
	root     string
	bus      *events.Bus
	watcher  *fsnotify.Watcher
	debounce *debounce.Debouncer
	lastPath string
	done     chan struct{}
}

// New starts watching repoRoot's .git directory (or repoRoot itself when
// there is none). Bursts of events are coalesced into one RepoChanged
// published delay after the last event.
func New(repoRoot string, bus *events.Bus, delay time.Duration) (*Watcher, error) {
	if repoRoot == "" {
		return nil, errors.New("watch: empty repository path")
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	for path := range watchPaths(repoRoot) {
		slog.Debug("adding path to FS watcher", slog.String("path", path))
		if err := fw.Add(path); err != nil {
			err := errors.Join(err, fw.Close())
			return nil, fmt.Errorf("watch %s: %w", path, err)
		}
	}
	w := &Watcher{
		root:    repoRoot,
		bus:     bus,
		watcher: fw,
		done:    make(chan struct{}),
	}
	w.debounce = debounce.New(delay, w.fire)
	go w.loop()
	return w, nil
}

// Close stops the watcher. Pending notifications are dropped.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	w.debounce.Stop()
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(ev) {
				continue
			}
			slog.Debug("fsnotify event",
				slog.String("op", ev.Op.String()),
				slog.String("path", ev.Name),
			)
			w.mu.Lock()
			w.lastPath = ev.Name
			w.mu.Unlock()
			w.debounce.Trigger()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("fsnotify error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) fire() {
	w.mu.Lock()
	path := w.lastPath
	w.mu.Unlock()
	slog.Debug("repository changed", slog.String("path", path))
	events.Publish(w.bus, events.RepoChanged{Source: Source, Path: path})
}

func relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return !shouldIgnorePath(ev.Name)
}

func watchPaths(root string) iter.Seq[string] {
	unique := map[string]struct{}{}
	gitDir := filepath.Join(root, ".git")
	if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
		unique[gitDir] = struct{}{}
		// Branch moves land in refs/heads, which fsnotify does not cover
		// recursively from .git.
		for _, sub := range []string{"refs", filepath.Join("refs", "heads")} {
			p := filepath.Join(gitDir, sub)
			if info, err := os.Stat(p); err == nil && info.IsDir() {
				unique[p] = struct{}{}
			}
		}
		return maps.Keys(unique)
	}
	unique[root] = struct{}{}
	return maps.Keys(unique)
}

// shouldIgnorePath skips git lock files and IPC sockets.
func shouldIgnorePath(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".lock" || ext == ".ipc"
}
