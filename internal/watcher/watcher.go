package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Handler is invoked once per settled .torrent file. folder is the watched
// root the file appeared under.
type Handler func(ctx context.Context, folder, path string)

type Config struct {
	Folders  []string
	Debounce time.Duration
	Logger   *logrus.Logger
}

// Watcher monitors folders for incoming .torrent files. Events for the same
// path are debounced so a file still being written is only reported once it
// stops changing.
type Watcher struct {
	cfg     Config
	handler Handler
	fs      *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, handler Handler) (*Watcher, error) {
	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	return &Watcher{
		cfg:     cfg,
		handler: handler,
		fs:      fs,
		timers:  make(map[string]*time.Timer),
	}, nil
}

func (w *Watcher) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	for _, folder := range w.cfg.Folders {
		if err := os.MkdirAll(folder, 0o755); err != nil {
			return fmt.Errorf("create watch folder %s: %w", folder, err)
		}
		if err := w.fs.Add(folder); err != nil {
			return fmt.Errorf("watch folder %s: %w", folder, err)
		}
		w.cfg.Logger.Infof("watching folder: %s", folder)
		w.scanExisting(folder)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()
	return nil
}

func (w *Watcher) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.fs.Close()
	w.wg.Wait()

	w.mu.Lock()
	for _, timer := range w.timers {
		timer.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.mu.Unlock()
}

// scanExisting picks up files dropped while the process was down.
func (w *Watcher) scanExisting(folder string) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		w.cfg.Logger.Warnf("scan %s: %v", folder, err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isTorrentFile(entry.Name()) {
			continue
		}
		w.schedule(filepath.Join(folder, entry.Name()))
	}
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !isTorrentFile(ev.Name) {
				continue
			}
			w.schedule(ev.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.cfg.Logger.Warnf("watch error: %v", err)
		}
	}
}

// schedule arms (or re-arms) the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Reset(w.cfg.Debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case <-w.ctx.Done():
			return
		default:
		}
		w.fire(path)
	})
}

func (w *Watcher) fire(path string) {
	if _, err := os.Stat(path); err != nil {
		w.cfg.Logger.Warnf("torrent file vanished before handling: %s", path)
		return
	}
	folder := w.folderFor(path)
	w.cfg.Logger.WithField("path", path).Info("torrent file detected")
	w.handler(w.ctx, folder, path)
}

func (w *Watcher) folderFor(path string) string {
	for _, folder := range w.cfg.Folders {
		if rel, err := filepath.Rel(folder, path); err == nil && !strings.HasPrefix(rel, "..") {
			return folder
		}
	}
	return filepath.Dir(path)
}

func isTorrentFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".torrent")
}
