package resourcenode

import (
	"context"

	"github.com/fsnotify/fsnotify"
)

// Watcher drives RecordNew off real filesystem events with fsnotify, the
// way a resource node's start_monitoring/stop_monitoring hooks are meant
// to (spec §4.4). It is the default StartMonitoring/StopMonitoring pair a
// directory-backed resource node installs when it wants monitoring rather
// than pure TriggerCondition polling.
type Watcher struct {
	dir     string
	fsw     *fsnotify.Watcher
	onEvent func(path string)
	done    chan struct{}
}

// NewWatcher creates (but does not start) a watcher over dir. onEvent is
// called for every create/write event with the affected path.
func NewWatcher(dir string, onEvent func(path string)) *Watcher {
	return &Watcher{dir: dir, onEvent: onEvent}
}

// Start opens the fsnotify watch and begins dispatching events on a
// background goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return err
	}
	w.fsw = fsw
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		for {
			select {
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					w.onEvent(ev.Name)
				}
			case _, ok := <-fsw.Errors:
				if !ok {
					return
				}
				// fsnotify errors are dropped here without being logged;
				// the watch loop keeps going.
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop closes the underlying fsnotify watcher and waits for the dispatch
// goroutine to exit.
func (w *Watcher) Stop() error {
	if w.fsw == nil {
		return nil
	}
	err := w.fsw.Close()
	<-w.done
	return err
}
