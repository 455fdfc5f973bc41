// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mentor

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/polychat/internal/logger"
)

// ============================================================================
// DIRECTORY WATCHER
// ============================================================================

// Watcher reloads a Registry when files in its directory change.
type Watcher struct {
	registry *Registry
	dir      string
	debounce time.Duration
	log      *logger.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending time.Time // zero when nothing is queued

	// OnReload is called after every reload attempt. Optional.
	OnReload func(err error)
}

// NewWatcher creates a watcher for dir. Call Start to begin watching.
func NewWatcher(registry *Registry, dir string, debounce time.Duration, log *logger.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		registry: registry,
		dir:      dir,
		debounce: debounce,
		log:      log.Component("mentor_watcher"),
		watcher:  fw,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start registers the directory and begins processing events.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.wg.Add(2)
	go w.processEvents()
	go w.processPending()
	return nil
}

// Close stops watching and waits for the goroutines to exit.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("mentor watcher error")
		}
	}
}

// processPending reloads once events have been quiet for the debounce period.
func (w *Watcher) processPending() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			due := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
			if due {
				w.pending = time.Time{}
			}
			w.mu.Unlock()
			if due {
				w.reload()
			}
		}
	}
}

func (w *Watcher) reload() {
	err := w.registry.LoadDir(w.dir)
	if err != nil {
		w.log.Error().Err(err).Str("dir", w.dir).Msg("mentor reload failed, keeping previous registry")
	} else {
		w.log.Info().Str("dir", w.dir).Int("mentors", len(w.registry.IDs())).Msg("mentor registry reloaded")
	}
	if w.OnReload != nil {
		w.OnReload(err)
	}
}
