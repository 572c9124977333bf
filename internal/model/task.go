package model

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusBlocked    TaskStatus = "blocked"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// TaskType is an informational tag; it does not affect recurrence.
type TaskType string

const (
	TypeRoutine TaskType = "routine"
	TypeOneOff  TaskType = "one_off"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	return t == TypeRoutine || t == TypeOneOff
}

// Weekdays is a set of weekday indices (0=Sunday) stored as "1,3".
type Weekdays []int

// Value implements driver.Valuer.
func (w Weekdays) Value() (driver.Value, error) {
	if len(w) == 0 {
		return "", nil
	}
	parts := make([]string, len(w))
	for i, d := range w {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ","), nil
}

// Scan implements sql.Scanner.
func (w *Weekdays) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*w = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan weekdays: unsupported type %T", src)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*w = nil
		return nil
	}
	parts := strings.Split(raw, ",")
	days := make(Weekdays, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("scan weekdays %q: %w", raw, err)
		}
		days = append(days, d)
	}
	*w = days
	return nil
}

// Proof is the completion evidence attached when a task is marked completed.
type Proof struct {
	PhotoURL    string
	AudioURL    string
	Comment     string
	CompletedAt *time.Time
}

// Empty reports whether no evidence has been recorded.
func (p Proof) Empty() bool {
	return p.PhotoURL == "" && p.AudioURL == "" && p.Comment == "" && p.CompletedAt == nil
}

// Task is one concrete task instance. Recurring tasks form a lineage of
// instances linked through OriginTaskID / NextTaskID.
type Task struct {
	ID             string `gorm:"primaryKey;size:36"`
	Title          string
	Description    string
	AssignedTo     *string `gorm:"index;size:36"`
	GroupID        *uint   `gorm:"index"`
	IsShared       bool    `gorm:"default:false"`
	Type           TaskType
	DueDate        string     `gorm:"size:10;index;uniqueIndex:idx_task_successor"`
	Status         TaskStatus `gorm:"index"`
	RecurrenceType string
	RecurrenceDay  *int
	RecurrenceDays Weekdays `gorm:"type:text"`
	Response       string
	Proof          Proof   `gorm:"embedded;embeddedPrefix:proof_"`
	CreatedBy      *string `gorm:"size:36"`
	CreatorName    string
	OriginTaskID   *string `gorm:"size:36;uniqueIndex:idx_task_successor"`
	NextTaskID     *string `gorm:"size:36"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	AssigneeIDs []string `gorm:"-"`
}

// BeforeCreate assigns a fresh id to new tasks.
func (t *Task) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// IsRecurring reports whether the task carries a recurrence rule.
func (t *Task) IsRecurring() bool {
	rt := strings.TrimSpace(t.RecurrenceType)
	return rt != "" && rt != "none"
}

// Successor builds the next instance of a recurring task due on dueDate. The
// static fields are carried forward; status is reset and proof cleared.
func (t *Task) Successor(dueDate string) *Task {
	origin := t.ID
	next := &Task{
		Title:          t.Title,
		Description:    t.Description,
		AssignedTo:     cloneString(t.AssignedTo),
		GroupID:        cloneUint(t.GroupID),
		IsShared:       t.IsShared,
		Type:           t.Type,
		DueDate:        dueDate,
		Status:         StatusPending,
		RecurrenceType: t.RecurrenceType,
		RecurrenceDays: append(Weekdays(nil), t.RecurrenceDays...),
		Response:       t.Response,
		CreatedBy:      cloneString(t.CreatedBy),
		CreatorName:    t.CreatorName,
		OriginTaskID:   &origin,
	}
	if t.RecurrenceDay != nil {
		day := *t.RecurrenceDay
		next.RecurrenceDay = &day
	}
	return next
}

// TaskAssignee links a task to one of several specific employees.
type TaskAssignee struct {
	ID         uint   `gorm:"primaryKey"`
	TaskID     string `gorm:"size:36;index;uniqueIndex:idx_task_employee"`
	EmployeeID string `gorm:"size:36;index;uniqueIndex:idx_task_employee"`
	CreatedAt  time.Time
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneUint(v *uint) *uint {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
