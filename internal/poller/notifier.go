package poller

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// notifier fans results directory events out to the waits interested in a
// particular file name. It only shortens waits; correctness never depends
// on an event being delivered.
type notifier struct {
	mu      sync.Mutex
	waiters map[string]map[chan struct{}]struct{}
}

func newNotifier() *notifier {
	return &notifier{waiters: make(map[string]map[chan struct{}]struct{})}
}

func (n *notifier) subscribe(name string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	set, ok := n.waiters[name]
	if !ok {
		set = make(map[chan struct{}]struct{})
		n.waiters[name] = set
	}
	set[ch] = struct{}{}
	n.mu.Unlock()

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if set, ok := n.waiters[name]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(n.waiters, name)
			}
		}
	}
}

func (n *notifier) notify(name string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.waiters[name]
	if !ok {
		return false
	}
	for ch := range set {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return true
}

func (n *notifier) watch(ctx context.Context, dir string, logger zerolog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("poller: create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("poller: watch %s: %w", dir, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
					if n.notify(filepath.Base(ev.Name)) {
						logger.Debug().Str("file", ev.Name).Msg("poller: result event")
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn().Err(err).Msg("poller: watcher error")
			}
		}
	}()
	return nil
}
