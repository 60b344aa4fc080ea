package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"whenthen/internal/domain"
	"whenthen/internal/repository"
)

const createTasksTable = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	torrent_id TEXT NOT NULL,
	torrent_name TEXT NOT NULL DEFAULT '',
	playlet_id TEXT NOT NULL DEFAULT '',
	playlet_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	actions TEXT NOT NULL DEFAULT '[]',
	action_results TEXT NOT NULL DEFAULT '[]',
	file_filter TEXT NULL,
	awaiting_content INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	completed_at DATETIME NULL
);
`

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) repository.TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTasksTable); err != nil {
		return fmt.Errorf("create tasks table: %w", err)
	}
	return nil
}

func (r *TaskRepository) Save(ctx context.Context, task *domain.Task) error {
	actions, err := json.Marshal(task.Actions)
	if err != nil {
		return fmt.Errorf("encode actions: %w", err)
	}
	results, err := json.Marshal(task.ActionResults)
	if err != nil {
		return fmt.Errorf("encode action results: %w", err)
	}
	var fileFilter any
	if task.FileFilter != nil {
		encoded, err := json.Marshal(task.FileFilter)
		if err != nil {
			return fmt.Errorf("encode file filter: %w", err)
		}
		fileFilter = string(encoded)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO tasks (id, torrent_id, torrent_name, playlet_id, playlet_name, status, actions, action_results, file_filter, awaiting_content, created_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	torrent_name=excluded.torrent_name,
	status=excluded.status,
	action_results=excluded.action_results,
	awaiting_content=excluded.awaiting_content,
	completed_at=excluded.completed_at`,
		task.ID,
		task.TorrentID,
		task.TorrentName,
		task.PlayletID,
		task.PlayletName,
		string(task.Status),
		string(actions),
		string(results),
		fileFilter,
		boolToInt(task.AwaitingContent),
		task.CreatedAt.UTC(),
		nullTime(task.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (r *TaskRepository) List(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, torrent_id, torrent_name, playlet_id, playlet_name, status, actions, action_results, file_filter, awaiting_content, created_at, completed_at
FROM tasks
ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		var (
			t           domain.Task
			status      string
			actions     string
			results     string
			fileFilter  sql.NullString
			awaiting    int
			createdAt   time.Time
			completedAt sql.NullTime
		)
		if err := rows.Scan(
			&t.ID,
			&t.TorrentID,
			&t.TorrentName,
			&t.PlayletID,
			&t.PlayletName,
			&status,
			&actions,
			&results,
			&fileFilter,
			&awaiting,
			&createdAt,
			&completedAt,
		); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Status = domain.TaskStatus(status)
		t.AwaitingContent = awaiting != 0
		t.CreatedAt = createdAt.UTC()
		if completedAt.Valid {
			done := completedAt.Time.UTC()
			t.CompletedAt = &done
		}
		if err := json.Unmarshal([]byte(actions), &t.Actions); err != nil {
			return nil, fmt.Errorf("decode actions for task %s: %w", t.ID, err)
		}
		if err := json.Unmarshal([]byte(results), &t.ActionResults); err != nil {
			return nil, fmt.Errorf("decode action results for task %s: %w", t.ID, err)
		}
		if fileFilter.Valid && fileFilter.String != "" {
			var filter domain.FileFilter
			if err := json.Unmarshal([]byte(fileFilter.String), &filter); err != nil {
				return nil, fmt.Errorf("decode file filter for task %s: %w", t.ID, err)
			}
			t.FileFilter = &filter
		}
		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
