// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watch reports content changes of a single document file.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long to wait for more writes before reading the file.
const DefaultDebounce = 300 * time.Millisecond

const eventBuffer = 16

// Change is a new version of the watched file.
type Change struct {
	Path    string
	Content string
}

// FileWatcher watches the directory that holds one file, so editors that
// replace the file on save are still seen, and emits the file's content
// whenever it changes. Writes that leave the content unchanged are dropped.
type FileWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *zap.Logger

	mu   sync.Mutex
	hash string

	events chan Change
}

// New creates a watcher for path. debounce <= 0 uses DefaultDebounce.
func New(path string, debounce time.Duration, logger *zap.Logger) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileWatcher{
		path:     abs,
		debounce: debounce,
		watcher:  fsw,
		logger:   logger,
		events:   make(chan Change, eventBuffer),
	}, nil
}

// Path returns the absolute path being watched.
func (w *FileWatcher) Path() string {
	return w.path
}

// Events returns the change channel. It is closed when the watcher stops.
func (w *FileWatcher) Events() <-chan Change {
	return w.events
}

// Start records the current content and begins watching. Processing stops
// when ctx is cancelled or Stop is called. On error the watcher is closed.
func (w *FileWatcher) Start(ctx context.Context) error {
	if content, err := os.ReadFile(w.path); err == nil {
		w.hash = contentHash(content)
	} else if !errors.Is(err, os.ErrNotExist) {
		w.Stop()
		return fmt.Errorf("reading %s: %w", w.path, err)
	}

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		w.Stop()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go w.processEvents(ctx)

	w.logger.Info("document watcher started",
		zap.String("path", w.path),
		zap.Duration("debounce", w.debounce))
	return nil
}

// Stop closes the underlying watcher. Calling it more than once is safe.
func (w *FileWatcher) Stop() error {
	return w.watcher.Close()
}

// processEvents reads the file once no matching event has arrived for the
// debounce interval. Each matching event restarts the wait.
func (w *FileWatcher) processEvents(ctx context.Context) {
	defer close(w.events)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.matches(event) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", zap.Error(err))

		case <-timer.C:
			w.flush(ctx)
		}
	}
}

func (w *FileWatcher) matches(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	w.logger.Debug("document change detected", zap.String("op", event.Op.String()))
	return true
}

func (w *FileWatcher) flush(ctx context.Context) {
	content, err := os.ReadFile(w.path)
	if err != nil {
		// Removed or mid-replace; a later Create brings it back.
		w.logger.Debug("document unreadable", zap.Error(err))
		return
	}

	hash := contentHash(content)
	w.mu.Lock()
	unchanged := hash == w.hash
	w.hash = hash
	w.mu.Unlock()
	if unchanged {
		return
	}

	select {
	case w.events <- Change{Path: w.path, Content: string(content)}:
		w.logger.Info("document changed", zap.String("path", w.path), zap.Int("bytes", len(content)))
	case <-ctx.Done():
	}
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
