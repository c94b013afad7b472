package monitor

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watcher turns fsnotify events for one file into wake-ups for the poll loop.
type watcher struct {
	fsw  *fsnotify.Watcher
	wake chan struct{}
	done chan struct{}
}

func newWatcher(path string) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &watcher{
		fsw:  fsw,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go w.loop(filepath.Clean(path))
	return w, nil
}

func (w *watcher) loop(path string) {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			select {
			case w.wake <- struct{}{}:
			default:
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher and waits for its goroutine.
func (w *watcher) Close() {
	w.fsw.Close()
	<-w.done
}
