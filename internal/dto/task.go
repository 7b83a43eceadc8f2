package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	dom "taskboard/internal/domain"
)

// AssigneeField decodes an assignee reference. It accepts null, a user id
// (number or numeric string), an object with an "id", or a list holding at
// most one of those. Set reports whether the key was present at all.
type AssigneeField struct {
	Set    bool
	UserID *int64
}

func (a *AssigneeField) UnmarshalJSON(data []byte) error {
	a.Set = true
	a.UserID = nil
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		switch len(items) {
		case 0:
			return nil
		case 1:
			data = items[0]
		default:
			return fmt.Errorf("assigned_to: at most one assignee")
		}
	}
	id, err := parseUserRef(data)
	if err != nil {
		return err
	}
	a.UserID = id
	return nil
}

// Ptr returns the assignment as a domain value, or nil when the key was absent.
func (a AssigneeField) Ptr() *dom.Assignment {
	if !a.Set {
		return nil
	}
	return &dom.Assignment{UserID: a.UserID}
}

func parseUserRef(data []byte) (*int64, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case json.Number:
		return parseUserID(v.String())
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return parseUserID(v)
	case map[string]any:
		for _, key := range []string{"id", "_id"} {
			if inner, ok := v[key]; ok {
				b, _ := json.Marshal(inner)
				return parseUserRef(b)
			}
		}
	}
	return nil, fmt.Errorf("assigned_to: expected a user id")
}

func parseUserID(s string) (*int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("assigned_to: invalid user id %q", s)
	}
	return &id, nil
}

type CreateTaskRequest struct {
	Title       string        `json:"title" binding:"required,min=1,max=200"`
	Description string        `json:"description" binding:"max=2000"`
	Status      string        `json:"status"` // optional: todo (default), in_progress, done
	AssignedTo  AssigneeField `json:"assigned_to" swaggertype:"integer"`
	// AssignedToCompat accepts the camelCase key older board clients send.
	AssignedToCompat AssigneeField `json:"assignedTo" swaggerignore:"true"`
}

// Assignee merges the two accepted keys; assigned_to wins.
func (r CreateTaskRequest) Assignee() AssigneeField {
	if r.AssignedTo.Set {
		return r.AssignedTo
	}
	return r.AssignedToCompat
}

// UpdateTaskRequest lists every field a client may change. Absent = keep.
type UpdateTaskRequest struct {
	Title            *string       `json:"title" binding:"omitempty,min=1,max=200"`
	Description      *string       `json:"description" binding:"omitempty,max=2000"`
	Status           *string       `json:"status"`
	AssignedTo       AssigneeField `json:"assigned_to" swaggertype:"integer"`
	AssignedToCompat AssigneeField `json:"assignedTo" swaggerignore:"true"`
}

// Patch converts the request to a domain patch.
func (r UpdateTaskRequest) Patch() dom.TaskPatch {
	p := dom.TaskPatch{Title: r.Title, Description: r.Description}
	if r.Status != nil {
		st := dom.TaskStatus(*r.Status)
		p.Status = &st
	}
	a := r.AssignedTo
	if !a.Set {
		a = r.AssignedToCompat
	}
	p.AssignedTo = a.Ptr()
	return p
}

type UserRefResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type TaskResponse struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Status      string           `json:"status"`
	AssignedTo  *UserRefResponse `json:"assigned_to"`
	WorkspaceID int64            `json:"workspace_id"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type ListTasksResponse struct {
	Tasks       []TaskResponse `json:"tasks"`
	WorkspaceID int64          `json:"workspace_id"`
}

type DeleteTaskResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

func TaskToResponse(t dom.Task) TaskResponse {
	r := TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		WorkspaceID: t.WorkspaceID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.AssignedTo != nil {
		r.AssignedTo = &UserRefResponse{ID: t.AssignedTo.ID, Username: t.AssignedTo.Username}
	}
	return r
}

func TasksToResponses(list []dom.Task) []TaskResponse {
	out := make([]TaskResponse, len(list))
	for i := range list {
		out[i] = TaskToResponse(list[i])
	}
	return out
}

// Task converts a response back into the domain type (client side).
func (r TaskResponse) Task() dom.Task {
	t := dom.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      dom.TaskStatus(r.Status),
		WorkspaceID: r.WorkspaceID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.AssignedTo != nil {
		t.AssignedTo = &dom.UserRef{ID: r.AssignedTo.ID, Username: r.AssignedTo.Username}
	}
	return t
}
