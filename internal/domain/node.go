package domain

import "time"

type NodeType string

const (
	NodeTypeFolder NodeType = "folder"
	NodeTypeNote   NodeType = "note"
	NodeTypeTask   NodeType = "task"
)

func ValidNodeType(t NodeType) bool {
	switch t {
	case NodeTypeFolder, NodeTypeNote, NodeTypeTask:
		return true
	}
	return false
}

type RepeatUnit string

const (
	RepeatSeconds RepeatUnit = "seconds"
	RepeatMinutes RepeatUnit = "minutes"
	RepeatHours   RepeatUnit = "hours"
	RepeatDays    RepeatUnit = "days"
	RepeatWeeks   RepeatUnit = "weeks"
	RepeatMonths  RepeatUnit = "months"
	RepeatYears   RepeatUnit = "years"
)

// RepeatOptions describes how a reminder recurs. DaysOfWeek (0=Sunday..6=Saturday)
// is honored only when Unit is weeks.
type RepeatOptions struct {
	Unit       RepeatUnit `json:"unit" validate:"required,oneof=seconds minutes hours days weeks months years"`
	Interval   int        `json:"interval" validate:"required,gt=0"`
	EndDate    *time.Time `json:"endDate,omitempty"`
	DaysOfWeek []int      `json:"daysOfWeek,omitempty" validate:"omitempty,dive,gte=0,lte=6"`
}

// Reminder is owned by the node it is attached to; it has no independent lifecycle.
// LastTriggered and TriggerCount are maintained by the scheduler only.
type Reminder struct {
	Timestamp     time.Time      `json:"timestamp" validate:"required"`
	RepeatOptions *RepeatOptions `json:"repeatOptions,omitempty"`
	SnoozedUntil  *time.Time     `json:"snoozedUntil,omitempty"`
	Enabled       bool           `json:"enabled"`
	LastTriggered *time.Time     `json:"lastTriggered,omitempty"`
	TriggerCount  int            `json:"triggerCount"`
}

// Node is a folder, note, or task. Content and Reminder apply to notes and
// tasks, Completed to tasks, Children to folders. The JSON shape below is both
// the persisted layout and the wire format.
type Node struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Type      NodeType  `json:"type"`
	Content   string    `json:"content,omitempty"`
	Completed bool      `json:"completed,omitempty"`
	Children  []*Node   `json:"children,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Reminder  *Reminder `json:"reminder,omitempty"`
}

type CreateNodeRequest struct {
	ParentID  *string   `json:"parentId"`
	Type      NodeType  `json:"type" validate:"required,oneof=folder note task"`
	Label     string    `json:"label" validate:"required,max=255"`
	Content   string    `json:"content"`
	Completed bool      `json:"completed"`
	Reminder  *Reminder `json:"reminder"`
	DeviceID  string    `json:"deviceId"`
}

type UpdateNodeRequest struct {
	Label          *string   `json:"label" validate:"omitempty,max=255"`
	Content        *string   `json:"content"`
	Completed      *bool     `json:"completed"`
	Reminder       *Reminder `json:"reminder"`
	RemoveReminder bool      `json:"removeReminder"`
	DeviceID       string    `json:"deviceId"`
}

type MoveNodeRequest struct {
	NewParentID *string `json:"newParentId"`
	NewIndex    *int    `json:"newIndex" validate:"omitempty,gte=0"`
	DeviceID    string  `json:"deviceId"`
}

type ReplaceTreeRequest struct {
	Nodes    []*Node `json:"nodes"`
	DeviceID string  `json:"deviceId"`
}

type SnoozeReminderRequest struct {
	Minutes  int    `json:"minutes" validate:"required,gt=0"`
	DeviceID string `json:"deviceId"`
}
