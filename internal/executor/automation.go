package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"whenthen/internal/domain"
	"whenthen/internal/engine"
)

const defaultScriptTimeout = 120 * time.Second

// AutomationExecutor runs a user-provided shell script with the content's
// details exposed through environment variables. The script is killed when it
// outlives the timeout.
type AutomationExecutor struct {
	Timeout time.Duration
	Logger  *logrus.Logger
}

func (a *AutomationExecutor) Execute(ctx context.Context, action domain.Action, content engine.Content, files []domain.FileInfo) error {
	script := action.Config["script"]
	if strings.TrimSpace(script) == "" {
		return fmt.Errorf("automation action requires a script")
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = defaultScriptTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	selected := SelectFiles(content.Filter, files)
	paths := make([]string, len(selected))
	for i, f := range selected {
		paths[i] = f.Path
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", script)
	cmd.Env = append(cmd.Environ(),
		"CONTENT_ID="+content.ID,
		"CONTENT_NAME="+content.Name,
		"CONTENT_FILES="+strings.Join(paths, "\n"),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("script timed out after %s", timeout)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg != "" {
			return fmt.Errorf("script failed: %w: %s", err, msg)
		}
		return fmt.Errorf("script failed: %w", err)
	}

	if out := strings.TrimSpace(stdout.String()); out != "" {
		a.Logger.WithField("content_id", content.ID).Infof("script output: %s", out)
	}
	return nil
}
