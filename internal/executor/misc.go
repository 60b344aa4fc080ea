package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"whenthen/internal/domain"
	"whenthen/internal/engine"
)

// DelayExecutor pauses the pipeline for the configured number of seconds.
// Cancellation (engine shutdown) aborts the wait.
type DelayExecutor struct{}

func (DelayExecutor) Execute(ctx context.Context, action domain.Action, content engine.Content, files []domain.FileInfo) error {
	raw := action.Config["seconds"]
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds < 0 {
		return fmt.Errorf("delay action requires a non-negative seconds value, got %q", raw)
	}

	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NotifyExecutor records a user-visible notification. Delivery beyond the
// structured log is up to whatever tails it.
type NotifyExecutor struct {
	Logger *logrus.Logger
}

func (n *NotifyExecutor) Execute(ctx context.Context, action domain.Action, content engine.Content, files []domain.FileInfo) error {
	message := strings.TrimSpace(action.Config["message"])
	if message == "" {
		message = "automation fired"
	}
	n.Logger.WithFields(logrus.Fields{
		"content_id":   content.ID,
		"content_name": content.Name,
	}).Infof("notification: %s", message)
	return nil
}

// DeleteSourceExecutor removes the content's local data after earlier actions
// (typically a move or upload) are done with it.
type DeleteSourceExecutor struct {
	DownloadRoot string
	Logger       *logrus.Logger
}

func (d *DeleteSourceExecutor) Execute(ctx context.Context, action domain.Action, content engine.Content, files []domain.FileInfo) error {
	targets := make([]string, 0, len(files)+1)
	for _, file := range files {
		targets = append(targets, file.Path)
	}
	if dir := filepath.Join(d.DownloadRoot, content.Name); content.Name != "" {
		targets = append(targets, dir)
	}

	removed := 0
	for _, target := range targets {
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("remove %s: %w", target, err)
		}
		removed++
	}
	d.Logger.WithField("content_id", content.ID).Infof("removed %d source path(s)", removed)
	return nil
}
