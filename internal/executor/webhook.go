package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"whenthen/internal/domain"
	"whenthen/internal/engine"
)

// WebhookExecutor POSTs a JSON payload describing the content to the
// configured URL. Any non-2xx response fails the action.
type WebhookExecutor struct {
	Client *http.Client
}

type webhookPayload struct {
	ContentID   string   `json:"content_id"`
	ContentName string   `json:"content_name"`
	ActionID    string   `json:"action_id"`
	Files       []string `json:"files,omitempty"`
	FiredAt     string   `json:"fired_at"`
}

func (w *WebhookExecutor) Execute(ctx context.Context, action domain.Action, content engine.Content, files []domain.FileInfo) error {
	url := action.Config["url"]
	if url == "" {
		return fmt.Errorf("webhook action requires a url")
	}
	method := strings.ToUpper(action.Config["method"])
	if method == "" {
		method = http.MethodPost
	}

	selected := SelectFiles(content.Filter, files)
	paths := make([]string, len(selected))
	for i, f := range selected {
		paths[i] = f.Path
	}

	body, err := json.Marshal(webhookPayload{
		ContentID:   content.ID,
		ContentName: content.Name,
		ActionID:    action.ID,
		Files:       paths,
		FiredAt:     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
