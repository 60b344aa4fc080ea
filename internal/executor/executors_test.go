package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whenthen/internal/domain"
	"whenthen/internal/engine"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestMoveExecutor_MovesSelectedFiles(t *testing.T) {
	root := t.TempDir()
	dest := t.TempDir()

	contentDir := filepath.Join(root, "Show")
	require.NoError(t, os.MkdirAll(contentDir, 0o755))
	video := filepath.Join(contentDir, "episode.mkv")
	extra := filepath.Join(contentDir, "notes.txt")
	require.NoError(t, os.WriteFile(video, []byte("video"), 0o644))
	require.NoError(t, os.WriteFile(extra, []byte("text"), 0o644))

	mover := &MoveExecutor{DownloadRoot: root, Logger: quietLogger()}
	content := engine.Content{
		ID:     "c1",
		Name:   "Show",
		Filter: &domain.FileFilter{Category: domain.FilterVideo},
	}
	files := []domain.FileInfo{
		{Index: 0, Name: "episode.mkv", Path: video, Size: 5},
		{Index: 1, Name: "notes.txt", Path: extra, Size: 4},
	}

	action := domain.Action{ID: "a1", Type: domain.ActionMove, Config: map[string]string{"destination": dest}}
	require.NoError(t, mover.Execute(context.Background(), action, content, files))

	assert.FileExists(t, filepath.Join(dest, "episode.mkv"))
	assert.NoFileExists(t, video)
	assert.FileExists(t, extra)
}

func TestMoveExecutor_DirectoryFastPath(t *testing.T) {
	root := t.TempDir()
	dest := t.TempDir()

	contentDir := filepath.Join(root, "Album")
	require.NoError(t, os.MkdirAll(contentDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "a.mp3"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "b.mp3"), []byte("b"), 0o644))

	mover := &MoveExecutor{DownloadRoot: root, Logger: quietLogger()}
	content := engine.Content{ID: "c1", Name: "Album"}
	files := []domain.FileInfo{
		{Index: 0, Name: "a.mp3", Path: filepath.Join(contentDir, "a.mp3"), Size: 1},
		{Index: 1, Name: "b.mp3", Path: filepath.Join(contentDir, "b.mp3"), Size: 1},
	}

	action := domain.Action{ID: "a1", Type: domain.ActionMove, Config: map[string]string{"destination": dest}}
	require.NoError(t, mover.Execute(context.Background(), action, content, files))

	assert.FileExists(t, filepath.Join(dest, "Album", "a.mp3"))
	assert.FileExists(t, filepath.Join(dest, "Album", "b.mp3"))
	assert.NoDirExists(t, contentDir)
}

func TestMoveExecutor_SingleFileFallback(t *testing.T) {
	root := t.TempDir()
	dest := t.TempDir()

	single := filepath.Join(root, "movie.mkv")
	require.NoError(t, os.WriteFile(single, []byte("movie"), 0o644))

	mover := &MoveExecutor{DownloadRoot: root, Logger: quietLogger()}
	content := engine.Content{ID: "c1", Name: "movie.mkv", Filter: &domain.FileFilter{Category: domain.FilterVideo}}

	action := domain.Action{ID: "a1", Type: domain.ActionMove, Config: map[string]string{"destination": dest}}
	require.NoError(t, mover.Execute(context.Background(), action, content, nil))

	assert.FileExists(t, filepath.Join(dest, "movie.mkv"))
	assert.NoFileExists(t, single)
}

func TestMoveExecutor_RequiresDestination(t *testing.T) {
	mover := &MoveExecutor{DownloadRoot: t.TempDir(), Logger: quietLogger()}
	action := domain.Action{ID: "a1", Type: domain.ActionMove}
	err := mover.Execute(context.Background(), action, engine.Content{ID: "c1", Name: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destination")
}

func TestDelayExecutor(t *testing.T) {
	action := domain.Action{ID: "a1", Type: domain.ActionDelay, Config: map[string]string{"seconds": "0.01"}}
	start := time.Now()
	require.NoError(t, DelayExecutor{}.Execute(context.Background(), action, engine.Content{}, nil))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	bad := domain.Action{ID: "a2", Type: domain.ActionDelay, Config: map[string]string{"seconds": "soon"}}
	require.Error(t, DelayExecutor{}.Execute(context.Background(), bad, engine.Content{}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	long := domain.Action{ID: "a3", Type: domain.ActionDelay, Config: map[string]string{"seconds": "60"}}
	assert.ErrorIs(t, DelayExecutor{}.Execute(ctx, long, engine.Content{}, nil), context.Canceled)
}

func TestWebhookExecutor_PostsPayload(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	hook := &WebhookExecutor{}
	action := domain.Action{ID: "a1", Type: domain.ActionWebhook, Config: map[string]string{"url": server.URL}}
	content := engine.Content{ID: "c1", Name: "Show"}
	files := []domain.FileInfo{{Index: 0, Name: "e.mkv", Path: "/dl/e.mkv", Size: 1}}

	require.NoError(t, hook.Execute(context.Background(), action, content, files))
	assert.Equal(t, "c1", got.ContentID)
	assert.Equal(t, "Show", got.ContentName)
	assert.Equal(t, []string{"/dl/e.mkv"}, got.Files)
}

func TestWebhookExecutor_FailsOnErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	hook := &WebhookExecutor{}
	action := domain.Action{ID: "a1", Type: domain.ActionWebhook, Config: map[string]string{"url": server.URL}}
	err := hook.Execute(context.Background(), action, engine.Content{ID: "c1"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestAutomationExecutor_RunsScript(t *testing.T) {
	auto := &AutomationExecutor{Logger: quietLogger()}
	action := domain.Action{ID: "a1", Type: domain.ActionAutomation, Config: map[string]string{
		"script": `test "$CONTENT_NAME" = "Show"`,
	}}
	require.NoError(t, auto.Execute(context.Background(), action, engine.Content{ID: "c1", Name: "Show"}, nil))
}

func TestAutomationExecutor_FailureCarriesStderr(t *testing.T) {
	auto := &AutomationExecutor{Logger: quietLogger()}
	action := domain.Action{ID: "a1", Type: domain.ActionAutomation, Config: map[string]string{
		"script": `echo boom >&2; exit 3`,
	}}
	err := auto.Execute(context.Background(), action, engine.Content{ID: "c1"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestAutomationExecutor_Timeout(t *testing.T) {
	auto := &AutomationExecutor{Timeout: 50 * time.Millisecond, Logger: quietLogger()}
	action := domain.Action{ID: "a1", Type: domain.ActionAutomation, Config: map[string]string{
		"script": `sleep 5`,
	}}
	err := auto.Execute(context.Background(), action, engine.Content{ID: "c1"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestDeleteSourceExecutor(t *testing.T) {
	root := t.TempDir()
	contentDir := filepath.Join(root, "Show")
	require.NoError(t, os.MkdirAll(contentDir, 0o755))
	file := filepath.Join(contentDir, "e.mkv")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	del := &DeleteSourceExecutor{DownloadRoot: root, Logger: quietLogger()}
	action := domain.Action{ID: "a1", Type: domain.ActionDeleteSource}
	content := engine.Content{ID: "c1", Name: "Show"}
	files := []domain.FileInfo{{Index: 0, Name: "e.mkv", Path: file, Size: 1}}

	require.NoError(t, del.Execute(context.Background(), action, content, files))
	assert.NoDirExists(t, contentDir)
}

func TestRegisterAll_CoversBuiltinActions(t *testing.T) {
	registry := engine.NewExecutorRegistry()
	RegisterAll(registry, Config{DownloadRoot: t.TempDir(), Logger: quietLogger()})

	for _, actionType := range []domain.ActionType{
		domain.ActionMove, domain.ActionDeleteSource, domain.ActionDelay,
		domain.ActionNotify, domain.ActionWebhook, domain.ActionAutomation,
	} {
		_, ok := registry.Resolve(actionType)
		assert.True(t, ok, "missing executor for %s", actionType)
	}

	_, ok := registry.Resolve(domain.ActionCast)
	assert.False(t, ok)
}
