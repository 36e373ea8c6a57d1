// Package watcher uploads files dropped into inbox directories through the
// regular ingestion pipeline.
package watcher

import (
	"context"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/docflow/internal/models"
)

const defaultDebounce = 400 * time.Millisecond

// Uploader accepts a file for ingestion.
type Uploader interface {
	Upload(ctx context.Context, owner, fileName string, content []byte, contentType string) (*models.UploadResult, error)
}

// stamp identifies one version of a file so repeated events upload it once.
type stamp struct {
	size    int64
	modTime time.Time
}

// Watcher watches inbox directories and uploads new or changed files as owner.
type Watcher struct {
	roots      []string
	owner      string
	uploader   Uploader
	extensions []string
	recursive  bool
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	pending  map[string]*time.Timer
	uploaded map[string]stamp
	inflight sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithExtensions restricts uploads to the given extensions. Empty means all files.
func WithExtensions(exts []string) Option {
	return func(w *Watcher) { w.extensions = exts }
}

// WithRecursive controls whether subdirectories are watched. Default true.
func WithRecursive(recursive bool) Option {
	return func(w *Watcher) { w.recursive = recursive }
}

// WithDebounce sets how long a file must be quiet before it is uploaded.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher over roots that uploads through up as owner.
func New(roots []string, owner string, up Uploader, opts ...Option) *Watcher {
	w := &Watcher{
		roots:     roots,
		owner:     owner,
		uploader:  up,
		recursive: true,
		debounce:  defaultDebounce,
		logger:    zap.NewNop(),
		pending:   make(map[string]*time.Timer),
		uploaded:  make(map[string]stamp),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start creates missing roots, registers them and begins handling events in
// the background until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.roots {
		if err := w.addRoot(fsw, root); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()
	w.logger.Info("inbox watcher started",
		zap.Strings("roots", w.roots),
		zap.String("owner", w.owner),
		zap.Bool("recursive", w.recursive))
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) addRoot(fsw *fsnotify.Watcher, root string) error {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	if !w.recursive {
		return fsw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event) {
	path := ev.Name
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			// A folder moved or copied in: watch it and pick up what it holds.
			if ev.Has(fsnotify.Create) && w.recursive {
				if err := w.addRoot(fsw, path); err != nil {
					w.logger.Warn("watcher failed to add directory", zap.String("path", path), zap.Error(err))
				}
				w.syncDir(ctx, path)
			}
			return
		}
		if w.eligible(path) {
			w.schedule(ctx, path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.mu.Lock()
		if t, ok := w.pending[path]; ok {
			t.Stop()
			delete(w.pending, path)
		}
		delete(w.uploaded, path)
		w.mu.Unlock()
	}
}

// eligible skips hidden and temporary files and applies the extension filter.
func (w *Watcher) eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return matchExtension(path, w.extensions)
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
}

// ingest uploads path unless this version of it was already uploaded.
// Files the pipeline rejects are remembered too so they are not retried
// until they change.
func (w *Watcher) ingest(ctx context.Context, path string) {
	w.inflight.Add(1)
	defer w.inflight.Done()

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	st := stamp{size: info.Size(), modTime: info.ModTime()}
	w.mu.Lock()
	prev, seen := w.uploaded[path]
	w.mu.Unlock()
	if seen && prev == st {
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("watcher failed to read file", zap.String("path", path), zap.Error(err))
		return
	}
	name := filepath.Base(path)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	res, err := w.uploader.Upload(ctx, w.owner, name, content, contentType)
	switch {
	case models.IsValidation(err):
		w.logger.Warn("inbox file rejected", zap.String("path", path), zap.Error(err))
	case err != nil:
		w.logger.Error("inbox upload failed", zap.String("path", path), zap.Error(err))
		return
	case !res.Success:
		w.logger.Error("inbox upload not scheduled", zap.String("path", path),
			zap.String("document_id", res.DocumentID), zap.String("error", res.Error))
		return
	default:
		w.logger.Info("inbox file uploaded", zap.String("path", path), zap.String("document_id", res.DocumentID))
	}
	w.mu.Lock()
	w.uploaded[path] = st
	w.mu.Unlock()
}

// Sync uploads every eligible file already present under the roots.
func (w *Watcher) Sync(ctx context.Context) {
	for _, root := range w.roots {
		w.syncDir(ctx, root)
	}
}

func (w *Watcher) syncDir(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && !w.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if w.eligible(path) {
			w.ingest(ctx, path)
		}
		return nil
	})
}

// Directories returns the watched roots.
func (w *Watcher) Directories() []string {
	return append([]string(nil), w.roots...)
}

// Stop stops watching, drops pending uploads and waits for running ones.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for path, t := range w.pending {
			t.Stop()
			delete(w.pending, path)
		}
		fsw := w.fsw
		w.fsw = nil
		w.mu.Unlock()
		if fsw != nil {
			_ = fsw.Close()
		}
		w.inflight.Wait()
	})
}
