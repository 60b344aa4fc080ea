package domain

import "time"

type TriggerType string

const (
	TriggerTorrentAdded     TriggerType = "torrent_added"
	TriggerDownloadComplete TriggerType = "download_complete"
	TriggerMetadataReceived TriggerType = "metadata_received"
	TriggerSeedingRatio     TriggerType = "seeding_ratio"
	TriggerFolderWatch      TriggerType = "folder_watch"
)

// Trigger is the event category that can spawn a task from a playlet,
// plus its type-specific parameters.
type Trigger struct {
	Type TriggerType
	// SeedingRatio is the ratio threshold for TriggerSeedingRatio.
	SeedingRatio float64
	// WatchFolder restricts TriggerFolderWatch to a specific watched folder.
	// Empty matches any watched folder.
	WatchFolder string
}

type ConditionField string

const (
	FieldName      ConditionField = "name"
	FieldTotalSize ConditionField = "total_size"
	FieldFileCount ConditionField = "file_count"
)

type ConditionOperator string

const (
	OperatorContains    ConditionOperator = "contains"
	OperatorNotContains ConditionOperator = "not_contains"
	OperatorStartsWith  ConditionOperator = "starts_with"
	OperatorEndsWith    ConditionOperator = "ends_with"
	OperatorEquals      ConditionOperator = "equals"
	OperatorRegex       ConditionOperator = "regex"
)

type SizeOperator string

const (
	SizeGreaterThan SizeOperator = "gt"
	SizeLessThan    SizeOperator = "lt"
	SizeBetween     SizeOperator = "between"
)

// TriggerCondition is a single predicate over content attributes.
// String fields use Operator/Value, numeric fields use SizeOperator with
// NumericValue (and NumericValueEnd for between).
type TriggerCondition struct {
	Field           ConditionField
	Operator        ConditionOperator
	Value           string
	SizeOperator    SizeOperator
	NumericValue    int64
	NumericValueEnd int64
	Negate          bool
}

type ConditionLogic string

const (
	LogicAnd ConditionLogic = "and"
	LogicOr  ConditionLogic = "or"
)

type FileFilterCategory string

const (
	FilterAll      FileFilterCategory = "all"
	FilterVideo    FileFilterCategory = "video"
	FilterAudio    FileFilterCategory = "audio"
	FilterSubtitle FileFilterCategory = "subtitle"
	FilterCustom   FileFilterCategory = "custom"
)

// FileFilter narrows which of a content's files an action operates on.
// The engine forwards it to executors untouched.
type FileFilter struct {
	Category         FileFilterCategory
	CustomExtensions []string
	SelectLargest    bool
	MinSize          int64
	NamePattern      string
}

type ActionType string

const (
	ActionCast         ActionType = "cast"
	ActionMove         ActionType = "move"
	ActionNotify       ActionType = "notify"
	ActionPlay         ActionType = "play"
	ActionSubtitle     ActionType = "subtitle"
	ActionAutomation   ActionType = "automation"
	ActionDelay        ActionType = "delay"
	ActionWebhook      ActionType = "webhook"
	ActionDeleteSource ActionType = "delete_source"
)

// Action is one configured step in a playlet. Config carries the
// type-specific parameters (destination path, script, webhook url, ...).
type Action struct {
	ID     string
	Type   ActionType
	Config map[string]string
}

// Playlet is a user-authored automation rule: a trigger, optional match
// conditions, an optional file filter, and an ordered list of actions.
type Playlet struct {
	ID             string
	Name           string
	Enabled        bool
	Trigger        Trigger
	Actions        []Action
	Conditions     []TriggerCondition
	ConditionLogic ConditionLogic
	FileFilter     *FileFilter
	CreatedAt      time.Time
}
