package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu    sync.Mutex
	calls []string
}

func (h *recordingHandler) handle(ctx context.Context, folder, path string) {
	h.mu.Lock()
	h.calls = append(h.calls, path)
	h.mu.Unlock()
}

func (h *recordingHandler) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func newTestWatcher(t *testing.T, folder string, handler Handler) *Watcher {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	w, err := New(Config{
		Folders:  []string{folder},
		Debounce: 50 * time.Millisecond,
		Logger:   logger,
	}, handler)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Close)
	return w
}

func TestWatcher_ReportsTorrentFileOnce(t *testing.T) {
	folder := t.TempDir()
	handler := &recordingHandler{}
	newTestWatcher(t, folder, handler.handle)

	path := filepath.Join(folder, "show.torrent")
	require.NoError(t, os.WriteFile(path, []byte("d8:announce0:e"), 0o644))

	require.Eventually(t, func() bool {
		return len(handler.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, path, handler.snapshot()[0])

	// The debounce window absorbed create+write for the same file.
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, handler.snapshot(), 1)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	folder := t.TempDir()
	handler := &recordingHandler{}
	newTestWatcher(t, folder, handler.handle)

	require.NoError(t, os.WriteFile(filepath.Join(folder, "notes.txt"), []byte("x"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, handler.snapshot())
}

func TestWatcher_PicksUpExistingFiles(t *testing.T) {
	folder := t.TempDir()
	path := filepath.Join(folder, "old.torrent")
	require.NoError(t, os.WriteFile(path, []byte("d8:announce0:e"), 0o644))

	handler := &recordingHandler{}
	newTestWatcher(t, folder, handler.handle)

	require.Eventually(t, func() bool {
		calls := handler.snapshot()
		return len(calls) == 1 && calls[0] == path
	}, 2*time.Second, 10*time.Millisecond)
}
