package domain

import (
	"strings"
	"time"
)

// TaskStatus is the board column a task sits in.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

// Statuses lists the board columns in display order.
var Statuses = []TaskStatus{StatusTodo, StatusInProgress, StatusDone}

// ParseStatus accepts the canonical values and the board labels
// ("To Do", "In Progress", "Done"), case-insensitively.
func ParseStatus(s string) (TaskStatus, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch norm {
	case "todo", "to_do":
		return StatusTodo, nil
	case "in_progress", "inprogress":
		return StatusInProgress, nil
	case "done":
		return StatusDone, nil
	}
	return "", &ValidationError{Field: "status", Msg: "must be one of todo, in_progress, done"}
}

// Label returns the board column heading for the status.
func (s TaskStatus) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

// UserRef is the denormalized view of a user embedded in a task.
type UserRef struct {
	ID       int64
	Username string
}

// Task is a card on the board. Writes are last-write-wins; no history is kept.
type Task struct {
	ID          string
	Title       string
	Description string
	Status      TaskStatus
	AssignedTo  *UserRef
	WorkspaceID int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	if t.AssignedTo != nil {
		ref := *t.AssignedTo
		t.AssignedTo = &ref
	}
	return t
}

// AssigneeID returns the assigned user id, or nil when unassigned.
func (t Task) AssigneeID() *int64 {
	if t.AssignedTo == nil {
		return nil
	}
	id := t.AssignedTo.ID
	return &id
}

// TaskPatch lists the fields an update may touch. Nil means "leave as is".
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	AssignedTo  *Assignment
}

// Assignment is a requested change of assignee. A nil UserID unassigns.
type Assignment struct {
	UserID *int64
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.AssignedTo == nil
}
