package http

import (
	"time"

	"whenthen/internal/domain"
)

type triggerPayload struct {
	Type         domain.TriggerType `json:"type" binding:"required"`
	SeedingRatio float64            `json:"seeding_ratio,omitempty"`
	WatchFolder  string             `json:"watch_folder,omitempty"`
}

type conditionPayload struct {
	Field           domain.ConditionField    `json:"field" binding:"required"`
	Operator        domain.ConditionOperator `json:"operator,omitempty"`
	Value           string                   `json:"value,omitempty"`
	SizeOperator    domain.SizeOperator      `json:"size_operator,omitempty"`
	NumericValue    int64                    `json:"numeric_value,omitempty"`
	NumericValueEnd int64                    `json:"numeric_value_end,omitempty"`
	Negate          bool                     `json:"negate,omitempty"`
}

type fileFilterPayload struct {
	Category         domain.FileFilterCategory `json:"category"`
	CustomExtensions []string                  `json:"custom_extensions,omitempty"`
	SelectLargest    bool                      `json:"select_largest,omitempty"`
	MinSize          int64                     `json:"min_size,omitempty"`
	NamePattern      string                    `json:"name_pattern,omitempty"`
}

type actionPayload struct {
	ID     string            `json:"id,omitempty"`
	Type   domain.ActionType `json:"type" binding:"required"`
	Config map[string]string `json:"config,omitempty"`
}

type playletPayload struct {
	ID             string                `json:"id,omitempty"`
	Name           string                `json:"name" binding:"required"`
	Enabled        bool                  `json:"enabled"`
	Trigger        triggerPayload        `json:"trigger" binding:"required"`
	Conditions     []conditionPayload    `json:"conditions,omitempty"`
	ConditionLogic domain.ConditionLogic `json:"condition_logic,omitempty"`
	Actions        []actionPayload       `json:"actions" binding:"required"`
	FileFilter     *fileFilterPayload    `json:"file_filter,omitempty"`
	CreatedAt      string                `json:"created_at,omitempty"`
}

func (p playletPayload) toDomain() domain.Playlet {
	playlet := domain.Playlet{
		ID:      p.ID,
		Name:    p.Name,
		Enabled: p.Enabled,
		Trigger: domain.Trigger{
			Type:         p.Trigger.Type,
			SeedingRatio: p.Trigger.SeedingRatio,
			WatchFolder:  p.Trigger.WatchFolder,
		},
		ConditionLogic: p.ConditionLogic,
	}
	if playlet.ConditionLogic == "" {
		playlet.ConditionLogic = domain.LogicAnd
	}
	for _, cond := range p.Conditions {
		playlet.Conditions = append(playlet.Conditions, domain.TriggerCondition{
			Field:           cond.Field,
			Operator:        cond.Operator,
			Value:           cond.Value,
			SizeOperator:    cond.SizeOperator,
			NumericValue:    cond.NumericValue,
			NumericValueEnd: cond.NumericValueEnd,
			Negate:          cond.Negate,
		})
	}
	for _, action := range p.Actions {
		playlet.Actions = append(playlet.Actions, domain.Action{
			ID:     action.ID,
			Type:   action.Type,
			Config: action.Config,
		})
	}
	if p.FileFilter != nil {
		playlet.FileFilter = &domain.FileFilter{
			Category:         p.FileFilter.Category,
			CustomExtensions: p.FileFilter.CustomExtensions,
			SelectLargest:    p.FileFilter.SelectLargest,
			MinSize:          p.FileFilter.MinSize,
			NamePattern:      p.FileFilter.NamePattern,
		}
	}
	return playlet
}

func playletToPayload(p domain.Playlet) playletPayload {
	payload := playletPayload{
		ID:      p.ID,
		Name:    p.Name,
		Enabled: p.Enabled,
		Trigger: triggerPayload{
			Type:         p.Trigger.Type,
			SeedingRatio: p.Trigger.SeedingRatio,
			WatchFolder:  p.Trigger.WatchFolder,
		},
		ConditionLogic: p.ConditionLogic,
		CreatedAt:      p.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, cond := range p.Conditions {
		payload.Conditions = append(payload.Conditions, conditionPayload{
			Field:           cond.Field,
			Operator:        cond.Operator,
			Value:           cond.Value,
			SizeOperator:    cond.SizeOperator,
			NumericValue:    cond.NumericValue,
			NumericValueEnd: cond.NumericValueEnd,
			Negate:          cond.Negate,
		})
	}
	for _, action := range p.Actions {
		payload.Actions = append(payload.Actions, actionPayload{
			ID:     action.ID,
			Type:   action.Type,
			Config: action.Config,
		})
	}
	if p.FileFilter != nil {
		payload.FileFilter = &fileFilterPayload{
			Category:         p.FileFilter.Category,
			CustomExtensions: p.FileFilter.CustomExtensions,
			SelectLargest:    p.FileFilter.SelectLargest,
			MinSize:          p.FileFilter.MinSize,
			NamePattern:      p.FileFilter.NamePattern,
		}
	}
	return payload
}

type actionResultPayload struct {
	ActionID    string                    `json:"action_id"`
	ActionType  domain.ActionType         `json:"action_type"`
	Status      domain.ActionResultStatus `json:"status"`
	StartedAt   *string                   `json:"started_at,omitempty"`
	CompletedAt *string                   `json:"completed_at,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

type taskPayload struct {
	ID              string                `json:"id"`
	ContentID       string                `json:"content_id"`
	ContentName     string                `json:"content_name"`
	PlayletID       string                `json:"playlet_id,omitempty"`
	PlayletName     string                `json:"playlet_name,omitempty"`
	Status          domain.TaskStatus     `json:"status"`
	Actions         []actionPayload       `json:"actions"`
	ActionResults   []actionResultPayload `json:"action_results"`
	FileFilter      *fileFilterPayload    `json:"file_filter,omitempty"`
	AwaitingContent bool                  `json:"awaiting_content"`
	CreatedAt       string                `json:"created_at"`
	CompletedAt     *string               `json:"completed_at,omitempty"`
}

func taskToPayload(t domain.Task) taskPayload {
	payload := taskPayload{
		ID:              t.ID,
		ContentID:       t.TorrentID,
		ContentName:     t.TorrentName,
		PlayletID:       t.PlayletID,
		PlayletName:     t.PlayletName,
		Status:          t.Status,
		AwaitingContent: t.AwaitingContent,
		CreatedAt:       t.CreatedAt.UTC().Format(time.RFC3339),
		Actions:         make([]actionPayload, len(t.Actions)),
		ActionResults:   make([]actionResultPayload, len(t.ActionResults)),
	}
	for i, action := range t.Actions {
		payload.Actions[i] = actionPayload{ID: action.ID, Type: action.Type, Config: action.Config}
	}
	for i, result := range t.ActionResults {
		payload.ActionResults[i] = actionResultPayload{
			ActionID:   result.ActionID,
			ActionType: result.ActionType,
			Status:     result.Status,
			Error:      result.Error,
		}
		if result.StartedAt != nil {
			v := result.StartedAt.UTC().Format(time.RFC3339)
			payload.ActionResults[i].StartedAt = &v
		}
		if result.CompletedAt != nil {
			v := result.CompletedAt.UTC().Format(time.RFC3339)
			payload.ActionResults[i].CompletedAt = &v
		}
	}
	if t.FileFilter != nil {
		payload.FileFilter = &fileFilterPayload{
			Category:         t.FileFilter.Category,
			CustomExtensions: t.FileFilter.CustomExtensions,
			SelectLargest:    t.FileFilter.SelectLargest,
			MinSize:          t.FileFilter.MinSize,
			NamePattern:      t.FileFilter.NamePattern,
		}
	}
	if t.CompletedAt != nil {
		v := t.CompletedAt.UTC().Format(time.RFC3339)
		payload.CompletedAt = &v
	}
	return payload
}
