// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fsops

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// FILE WATCHING
// =============================================================================

// EventKind describes what happened to a watched path.
type EventKind int

const (
	EventCreated EventKind = iota
	EventModified
	EventDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileEvent is one debounced change notification.
type FileEvent struct {
	Path string
	Kind EventKind
}

// Watcher watches a directory tree and delivers debounced change
// events. Rapid successive writes to the same file collapse into a
// single event.
type Watcher struct {
	fsw      *fsnotify.Watcher
	events   chan FileEvent
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]pendingEvent

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type pendingEvent struct {
	kind EventKind
	at   time.Time
}

// NewWatcher creates a watcher over root and all its subdirectories.
// Ignored directories (.git, node_modules, ...) are not watched.
func NewWatcher(root string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		fsw:      fsw,
		events:   make(chan FileEvent, 64),
		debounce: debounce,
		pending:  make(map[string]pendingEvent),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		cancel()
		return nil, err
	}

	go w.run()
	return w, nil
}

// Events returns the channel change events are delivered on. The
// channel is closed when the watcher stops.
func (w *Watcher) Events() <-chan FileEvent {
	return w.events
}

// Close stops the watcher and closes the event channel.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if ignoredDirs[info.Name()] {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) run() {
	defer close(w.done)
	defer close(w.events)

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				w.flushPending(true)
				return
			}
			w.record(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			_ = err // transient watch errors are not actionable

		case <-ticker.C:
			w.flushPending(false)
		}
	}
}

func (w *Watcher) record(ev fsnotify.Event) {
	var kind EventKind
	switch {
	case ev.Op.Has(fsnotify.Create):
		kind = EventCreated
		// New directories need their own watch.
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !ignoredDirs[filepath.Base(ev.Name)] {
				_ = w.addRecursive(ev.Name)
			}
			return
		}
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		kind = EventDeleted
	case ev.Op.Has(fsnotify.Write):
		kind = EventModified
	default:
		return
	}

	w.mu.Lock()
	prev, exists := w.pending[ev.Name]
	// Deletion always wins over a pending modify; creation followed by
	// a write still reports as created.
	if exists && kind == EventModified && prev.kind == EventCreated {
		kind = EventCreated
	}
	w.pending[ev.Name] = pendingEvent{kind: kind, at: time.Now()}
	w.mu.Unlock()
}

func (w *Watcher) flushPending(force bool) {
	now := time.Now()
	var ready []FileEvent

	w.mu.Lock()
	for path, pe := range w.pending {
		if force || now.Sub(pe.at) >= w.debounce {
			ready = append(ready, FileEvent{Path: path, Kind: pe.kind})
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, ev := range ready {
		select {
		case w.events <- ev:
		case <-w.ctx.Done():
			return
		}
	}
}
