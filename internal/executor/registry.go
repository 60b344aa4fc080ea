package executor

import (
	"time"

	"github.com/sirupsen/logrus"

	"whenthen/internal/domain"
	"whenthen/internal/engine"
)

type Config struct {
	DownloadRoot  string
	ScriptTimeout time.Duration
	Logger        *logrus.Logger
}

// RegisterAll wires the built-in executors into the registry. Action types
// without a registered executor (cast, play, subtitle) fail their action with
// an unregistered-executor error when a playlet uses them.
func RegisterAll(registry *engine.ExecutorRegistry, cfg Config) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	registry.Register(domain.ActionMove, &MoveExecutor{DownloadRoot: cfg.DownloadRoot, Logger: cfg.Logger})
	registry.Register(domain.ActionDeleteSource, &DeleteSourceExecutor{DownloadRoot: cfg.DownloadRoot, Logger: cfg.Logger})
	registry.Register(domain.ActionDelay, DelayExecutor{})
	registry.Register(domain.ActionNotify, &NotifyExecutor{Logger: cfg.Logger})
	registry.Register(domain.ActionWebhook, &WebhookExecutor{})
	registry.Register(domain.ActionAutomation, &AutomationExecutor{Timeout: cfg.ScriptTimeout, Logger: cfg.Logger})
}
