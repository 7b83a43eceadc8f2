package repo

import (
	"context"
	"errors"

	dom "taskboard/internal/domain"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// TaskRepo is the task side of the persistent store. Find and List return
// tasks with the assignee's username resolved.
type TaskRepo interface {
	Find(ctx context.Context, id string) (dom.Task, error)
	List(ctx context.Context, workspaceID int64) ([]dom.Task, error)
	// Save inserts the task or replaces every mutable column of an existing one.
	Save(ctx context.Context, t dom.Task) error
	Delete(ctx context.Context, id string) error
}

// UserRepo provides user persistence.
type UserRepo interface {
	FindByID(ctx context.Context, id int64) (dom.User, error)
	FindByEmail(ctx context.Context, email string) (dom.User, error)
	// List returns all users without their password hash.
	List(ctx context.Context) ([]dom.User, error)
	Create(ctx context.Context, username, email, passwordHash string) (dom.User, error)
}

// WorkspaceRepo provides workspace persistence.
type WorkspaceRepo interface {
	FindByName(ctx context.Context, name string) (dom.Workspace, error)
	// Save creates the workspace if its name is new and enrolls every listed
	// member. Existing members are never removed. It returns the stored state.
	Save(ctx context.Context, ws dom.Workspace) (dom.Workspace, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Tasks      TaskRepo
	Users      UserRepo
	Workspaces WorkspaceRepo
	Close      func()
}
