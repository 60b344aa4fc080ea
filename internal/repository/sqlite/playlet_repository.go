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

const createPlayletsTable = `
CREATE TABLE IF NOT EXISTS playlets (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	trigger_type TEXT NOT NULL,
	seeding_ratio REAL NOT NULL DEFAULT 0,
	watch_folder TEXT NOT NULL DEFAULT '',
	condition_logic TEXT NOT NULL DEFAULT 'and',
	conditions TEXT NOT NULL DEFAULT '[]',
	actions TEXT NOT NULL DEFAULT '[]',
	file_filter TEXT NULL,
	created_at DATETIME NOT NULL
);
`

type PlayletRepository struct {
	db *sql.DB
}

func NewPlayletRepository(db *sql.DB) repository.PlayletRepository {
	return &PlayletRepository{db: db}
}

func (r *PlayletRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createPlayletsTable); err != nil {
		return fmt.Errorf("create playlets table: %w", err)
	}
	return nil
}

func (r *PlayletRepository) Save(ctx context.Context, playlet *domain.Playlet) error {
	conditions, err := json.Marshal(playlet.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	actions, err := json.Marshal(playlet.Actions)
	if err != nil {
		return fmt.Errorf("encode actions: %w", err)
	}
	var fileFilter any
	if playlet.FileFilter != nil {
		encoded, err := json.Marshal(playlet.FileFilter)
		if err != nil {
			return fmt.Errorf("encode file filter: %w", err)
		}
		fileFilter = string(encoded)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO playlets (id, name, enabled, trigger_type, seeding_ratio, watch_folder, condition_logic, conditions, actions, file_filter, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name=excluded.name,
	enabled=excluded.enabled,
	trigger_type=excluded.trigger_type,
	seeding_ratio=excluded.seeding_ratio,
	watch_folder=excluded.watch_folder,
	condition_logic=excluded.condition_logic,
	conditions=excluded.conditions,
	actions=excluded.actions,
	file_filter=excluded.file_filter`,
		playlet.ID,
		playlet.Name,
		boolToInt(playlet.Enabled),
		string(playlet.Trigger.Type),
		playlet.Trigger.SeedingRatio,
		playlet.Trigger.WatchFolder,
		string(playlet.ConditionLogic),
		string(conditions),
		string(actions),
		fileFilter,
		playlet.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save playlet: %w", err)
	}
	return nil
}

func (r *PlayletRepository) List(ctx context.Context) ([]domain.Playlet, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, enabled, trigger_type, seeding_ratio, watch_folder, condition_logic, conditions, actions, file_filter, created_at
FROM playlets
ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query playlets: %w", err)
	}
	defer rows.Close()

	var playlets []domain.Playlet
	for rows.Next() {
		var (
			p          domain.Playlet
			enabled    int
			trigger    string
			logic      string
			conditions string
			actions    string
			fileFilter sql.NullString
			createdAt  time.Time
		)
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&enabled,
			&trigger,
			&p.Trigger.SeedingRatio,
			&p.Trigger.WatchFolder,
			&logic,
			&conditions,
			&actions,
			&fileFilter,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan playlet: %w", err)
		}
		p.Enabled = enabled != 0
		p.Trigger.Type = domain.TriggerType(trigger)
		p.ConditionLogic = domain.ConditionLogic(logic)
		p.CreatedAt = createdAt.UTC()
		if err := json.Unmarshal([]byte(conditions), &p.Conditions); err != nil {
			return nil, fmt.Errorf("decode conditions for playlet %s: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(actions), &p.Actions); err != nil {
			return nil, fmt.Errorf("decode actions for playlet %s: %w", p.ID, err)
		}
		if fileFilter.Valid && fileFilter.String != "" {
			var filter domain.FileFilter
			if err := json.Unmarshal([]byte(fileFilter.String), &filter); err != nil {
				return nil, fmt.Errorf("decode file filter for playlet %s: %w", p.ID, err)
			}
			p.FileFilter = &filter
		}
		playlets = append(playlets, p)
	}

	return playlets, rows.Err()
}

func (r *PlayletRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM playlets WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete playlet: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
