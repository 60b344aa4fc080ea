package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"whenthen/internal/domain"
	"whenthen/internal/engine"
)

// MoveExecutor relocates a content's selected files into the configured
// destination directory. When the whole content directory exists under the
// download root it is moved in one rename; otherwise each selected file is
// moved on its own (single-file torrents store data directly in the root).
type MoveExecutor struct {
	DownloadRoot string
	Logger       *logrus.Logger
}

func (m *MoveExecutor) Execute(ctx context.Context, action domain.Action, content engine.Content, files []domain.FileInfo) error {
	destination := action.Config["destination"]
	if destination == "" {
		return fmt.Errorf("move action requires a destination")
	}
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	logger := m.Logger.WithField("content_id", content.ID)
	selected := SelectFiles(content.Filter, files)

	// An unfiltered move of a multi-file content takes the directory rename
	// fast path.
	contentDir := filepath.Join(m.DownloadRoot, content.Name)
	if content.Filter == nil && len(files) > 1 {
		if info, err := os.Stat(contentDir); err == nil && info.IsDir() {
			dest := filepath.Join(destination, content.Name)
			if err := moveEntry(contentDir, dest); err != nil {
				return fmt.Errorf("move %s: %w", content.Name, err)
			}
			logger.Infof("moved %s to %s", content.Name, dest)
			return nil
		}
	}

	if len(selected) == 0 {
		// Single-file fallback: the content may be one file named after the
		// torrent, with no per-file metadata available.
		single := filepath.Join(m.DownloadRoot, content.Name)
		if info, err := os.Stat(single); err == nil && !info.IsDir() {
			dest := filepath.Join(destination, content.Name)
			if err := moveEntry(single, dest); err != nil {
				return fmt.Errorf("move %s: %w", content.Name, err)
			}
			logger.Infof("moved %s to %s", content.Name, dest)
			return nil
		}
		return fmt.Errorf("no files matched the filter for %s", content.Name)
	}

	moved := 0
	for _, file := range selected {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		dest := filepath.Join(destination, filepath.Base(file.Path))
		if err := moveEntry(file.Path, dest); err != nil {
			return fmt.Errorf("move %s: %w", file.Name, err)
		}
		moved++
	}
	logger.Infof("moved %d file(s) to %s", moved, destination)
	return nil
}

// moveEntry renames src to dst, falling back to copy+remove across devices.
func moveEntry(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		if err := copyDir(src, dst); err != nil {
			return err
		}
	} else {
		if err := copyFile(src, dst); err != nil {
			return err
		}
	}
	return os.RemoveAll(src)
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy file: %w", err)
	}

	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("sync destination: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}
