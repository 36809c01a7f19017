// Package watcher re-runs a job when new files settle in a watched folder.
package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"docmigrate/internal/config"
)

// WatchConfig contains watcher settings.
type WatchConfig struct {
	Debounce       time.Duration // Quiet time after the last event for a file
	StableInterval time.Duration // Time between size samples
	StableChecks   int           // Unchanged samples before a file counts as written
	IgnorePatterns []string      // Glob patterns that never trigger a run
	Extensions     []string      // When set, only these extensions trigger a run
}

// DefaultWatchConfig returns a WatchConfig with sensible defaults.
func DefaultWatchConfig() *WatchConfig {
	return &WatchConfig{
		Debounce:       2 * time.Second,
		StableInterval: time.Second,
		StableChecks:   2,
		IgnorePatterns: DefaultIgnorePatterns(),
	}
}

// FromSettings converts the job file's watch section, filling unset timings.
func FromSettings(settings *config.Watch, extensions []string) *WatchConfig {
	var s config.Watch
	if settings != nil {
		s = *settings
	}
	s.ApplyDefaults()
	return &WatchConfig{
		Debounce:       time.Duration(s.DebounceMs) * time.Millisecond,
		StableInterval: time.Duration(s.StabilityMs) * time.Millisecond,
		StableChecks:   s.StabilityChecks,
		IgnorePatterns: DefaultIgnorePatterns(),
		Extensions:     extensions,
	}
}

// WatchSummary contains stats from the watch session.
type WatchSummary struct {
	Runs         int // Batches handed to the handler
	FailedRuns   int // Batches whose handler returned an error
	FilesSettled int // Files that arrived and stopped growing
	FilesSkipped int // Ignored, vanished or never-stable files
	Duration     time.Duration
}

// BatchHandler processes one settled batch. paths are sorted.
type BatchHandler func(ctx context.Context, paths []string) error

// Watcher monitors a folder and hands settled batches of new files to a handler.
// Batches never overlap: the next batch is collected while the handler runs and
// is handed over once it returns.
type Watcher struct {
	config     *WatchConfig
	handler    BatchHandler
	fs         afero.Fs
	logger     zerolog.Logger
	fsWatcher  *fsnotify.Watcher
	fileFilter *FileFilter
	debouncer  *Debouncer
	stability  *StabilityChecker
	idle       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	cancel     context.CancelFunc
	ctx        context.Context
	wg         sync.WaitGroup
	startTime  time.Time

	mu           sync.Mutex
	batch        map[string]struct{}
	runs         int
	failedRuns   int
	filesSettled int
	filesSkipped int
}

// New creates a new Watcher with the given configuration.
// If config is nil, default configuration is used.
func New(fsys afero.Fs, cfg *WatchConfig, handler BatchHandler, logger zerolog.Logger) *Watcher {
	if cfg == nil {
		cfg = DefaultWatchConfig()
	}
	w := &Watcher{
		config:     cfg,
		handler:    handler,
		fs:         fsys,
		logger:     logger,
		fileFilter: NewFileFilter(cfg.IgnorePatterns).WithExtensions(cfg.Extensions),
		stability:  NewStabilityChecker(fsys, cfg.StableInterval, cfg.StableChecks),
		idle:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		batch:      make(map[string]struct{}),
	}
	w.debouncer = NewDebouncer(cfg.Debounce, w.settle)
	w.debouncer.OnIdle(w.signalIdle)
	return w
}

// Start begins watching the specified directories. The watcher runs until
// Stop is called or ctx ends.
func (w *Watcher) Start(ctx context.Context, dirs []string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			fsw.Close()
			return err
		}
		if err := fsw.Add(absDir); err != nil {
			fsw.Close()
			return err
		}
		w.logger.Debug().Str("dir", absDir).Msg("watching")
	}

	w.fsWatcher = fsw
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.startTime = time.Now()

	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// Stop shuts down the watcher and returns a summary of the session. A batch
// that is being handled sees its context cancelled.
func (w *Watcher) Stop() *WatchSummary {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.cancel != nil {
			w.cancel()
		}
		w.debouncer.CancelAll()
		w.wg.Wait()
		if w.fsWatcher != nil {
			w.fsWatcher.Close()
		}
	})

	w.mu.Lock()
	defer w.mu.Unlock()

	return &WatchSummary{
		Runs:         w.runs,
		FailedRuns:   w.failedRuns,
		FilesSettled: w.filesSettled,
		FilesSkipped: w.filesSkipped,
		Duration:     time.Since(w.startTime),
	}
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			// Renames out of the folder and removals are the rebuild's own moves.
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.handleFileEvent(event.Name)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("watch error")
		case <-w.idle:
			w.flush()
		}
	}
}

// handleFileEvent filters one event and schedules the file for settling.
func (w *Watcher) handleFileEvent(path string) {
	if w.fileFilter.ShouldIgnore(path) {
		w.logger.Debug().Str("path", path).Msg("ignored")
		w.countSkipped()
		return
	}
	if info, err := w.fs.Stat(path); err == nil && info.IsDir() {
		return
	}
	w.debouncer.Add(path)
}

// settle runs on the debouncer's timer once a file has gone quiet.
func (w *Watcher) settle(path string) {
	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	err := w.stability.WaitForStable(ctx, path)
	switch {
	case err == nil:
		w.mu.Lock()
		if _, seen := w.batch[path]; !seen {
			w.batch[path] = struct{}{}
			w.filesSettled++
		}
		w.mu.Unlock()
	case errors.Is(err, ErrFileNotFound):
		w.logger.Debug().Str("path", path).Msg("file vanished before settling")
		w.countSkipped()
	case errors.Is(err, context.Canceled):
	default:
		w.logger.Warn().Err(err).Str("path", path).Msg("file skipped")
		w.countSkipped()
	}
}

func (w *Watcher) signalIdle() {
	select {
	case w.idle <- struct{}{}:
	default:
	}
}

// flush hands the settled batch to the handler once nothing else is settling.
func (w *Watcher) flush() {
	if w.debouncer.PendingCount() > 0 {
		return
	}

	w.mu.Lock()
	if len(w.batch) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.batch))
	for p := range w.batch {
		paths = append(paths, p)
	}
	w.batch = make(map[string]struct{})
	w.runs++
	w.mu.Unlock()

	sort.Strings(paths)
	w.logger.Info().Int("files", len(paths)).Msg("batch settled")

	if w.handler == nil {
		return
	}
	if err := w.handler(w.ctx, paths); err != nil {
		w.logger.Error().Err(err).Msg("batch run failed")
		w.mu.Lock()
		w.failedRuns++
		w.mu.Unlock()
	}
}

func (w *Watcher) countSkipped() {
	w.mu.Lock()
	w.filesSkipped++
	w.mu.Unlock()
}

// GetConfig returns the current watcher configuration.
func (w *Watcher) GetConfig() *WatchConfig {
	return w.config
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	select {
	case <-w.done:
		return false
	default:
		return w.fsWatcher != nil
	}
}
