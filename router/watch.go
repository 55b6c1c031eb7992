package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RuleWatcher monitors a rule file and applies its rules to a router when
// the file changes. While a watcher is running it must be the router's
// single mutator; gate checks remain safe from other goroutines per the
// router's concurrency contract.
type RuleWatcher struct {
	watcher  *fsnotify.Watcher
	router   *Router
	rulePath string
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.RWMutex

	callbackMu sync.RWMutex
	callbacks  []func(error)
}

// NewRuleWatcher creates a watcher that keeps router in sync with the
// rule file at rulePath. The file must exist and parse when Start is
// called; subsequent parse failures leave the router untouched and are
// reported through OnChange callbacks.
func NewRuleWatcher(router *Router, rulePath string) (*RuleWatcher, error) {
	if router == nil {
		return nil, errors.New("rule watcher requires a router")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &RuleWatcher{
		watcher:  watcher,
		router:   router,
		rulePath: rulePath,
	}, nil
}

// Start loads the rule file once, begins watching it, and spawns the
// event loop. It returns an error if the watcher was already started, if
// the initial load fails, or if the file cannot be watched.
func (w *RuleWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx != nil {
		return errors.New("rule watcher already started")
	}

	if err := w.router.reloadFromFile(w.rulePath); err != nil {
		return fmt.Errorf("initial rule load failed: %w", err)
	}

	w.ctx, w.cancel = context.WithCancel(ctx)

	if err := w.watcher.Add(w.rulePath); err != nil {
		w.cancel()
		w.ctx = nil
		return fmt.Errorf("failed to watch rule file %s: %w", w.rulePath, err)
	}

	go w.watchFiles()

	return nil
}

// Stop cancels the event loop and closes the underlying file watcher.
func (w *RuleWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
		w.ctx = nil
	}
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
}

// OnChange registers a callback invoked after every reload attempt with
// the reload error, nil on success.
func (w *RuleWatcher) OnChange(callback func(error)) {
	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// watchFiles reacts to write events on the rule file until the context is
// cancelled.
func (w *RuleWatcher) watchFiles() {
	w.mu.RLock()
	ctx := w.ctx
	w.mu.RUnlock()

	if ctx == nil {
		return
	}

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				w.handleFileChange()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.notify(fmt.Errorf("file watcher error: %w", err))

		case <-ctx.Done():
			return
		}
	}
}

// handleFileChange reloads the rule file after a short settle delay so
// partial writes are not parsed.
func (w *RuleWatcher) handleFileChange() {
	time.Sleep(100 * time.Millisecond)

	if err := w.router.reloadFromFile(w.rulePath); err != nil {
		w.notify(fmt.Errorf("rule reload failed: %w", err))
		return
	}
	w.notify(nil)
}

// notify fans the reload result out to all registered callbacks.
func (w *RuleWatcher) notify(err error) {
	w.callbackMu.RLock()
	callbacks := make([]func(error), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.callbackMu.RUnlock()

	for _, callback := range callbacks {
		if callback != nil {
			callback(err)
		}
	}
}
