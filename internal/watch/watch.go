// Package watch feeds PDFs that appear in a directory into the pipeline.
package watch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/onkej/ocr-playground/internal/logger"
	"github.com/onkej/ocr-playground/internal/raster"
)

const DefaultDebounce = 2 * time.Second

// HandlerFunc processes one settled PDF.
type HandlerFunc func(ctx context.Context, pdfPath string) error

// Watcher calls its handler once a PDF in dir has stopped changing for the
// debounce interval. Handlers run one at a time on the Run goroutine.
type Watcher struct {
	dir      string
	debounce time.Duration
	handle   HandlerFunc
	ready    chan struct{}
}

func New(dir string, debounce time.Duration, handle HandlerFunc) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		handle:   handle,
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the directory is being watched.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run blocks until ctx is cancelled or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	logger.L().Info("watching for PDFs", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce))
	close(w.ready)

	timers := make(map[string]*time.Timer)
	settled := make(chan string)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !raster.IsPDF(ev.Name) || !(ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)) {
				continue
			}
			logger.DebugLog("[watch]: %s %s", ev.Op, ev.Name)
			if t, ok := timers[ev.Name]; ok {
				t.Reset(w.debounce)
				continue
			}
			name := ev.Name
			timers[name] = time.AfterFunc(w.debounce, func() {
				select {
				case settled <- name:
				case <-ctx.Done():
				}
			})

		case name := <-settled:
			delete(timers, name)
			if _, err := os.Stat(name); err != nil {
				logger.DebugLog("[watch]: %s vanished before processing", name)
				continue
			}
			if err := w.handle(ctx, name); err != nil {
				logger.L().Warn("processing failed", zap.String("file", name), zap.Error(err))
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.L().Warn("watcher error", zap.Error(err))
		}
	}
}
