package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"taskboard/internal/cache"
	dom "taskboard/internal/domain"
	"taskboard/internal/repo"
)

const maxTitleLen = 200

// Publisher receives every committed mutation.
type Publisher interface {
	Publish(ev dom.MutationEvent) error
}

// ListCache is the read-through cache behind the list operations. Entries are
// read and filled under the generation observed before the store query;
// invalidation starts a new generation. *cache.TaskCache implements it.
type ListCache interface {
	TasksGeneration(ctx context.Context, workspaceID int64) (int64, error)
	GetTasks(ctx context.Context, workspaceID, gen int64) ([]dom.Task, error)
	SetTasks(ctx context.Context, workspaceID, gen int64, list []dom.Task) error
	InvalidateTasks(ctx context.Context, workspaceID int64) error

	UsersGeneration(ctx context.Context) (int64, error)
	GetUsers(ctx context.Context, gen int64) ([]dom.User, error)
	SetUsers(ctx context.Context, gen int64, list []dom.User) error
	InvalidateUsers(ctx context.Context) error
}

// listCache keeps a nil *cache.TaskCache a nil interface.
func listCache(c *cache.TaskCache) ListCache {
	if c == nil {
		return nil
	}
	return c
}

// CreateTaskInput is the whitelisted body of a create request.
type CreateTaskInput struct {
	Title       string
	Description string
	Status      dom.TaskStatus // zero value means todo
	AssigneeID  *int64
}

// TaskService applies task mutations and announces each committed one.
//
// Store write and publish for one task id happen under a per-id lock, so
// events for a task leave in commit order. Commits run on a context detached
// from the caller's cancellation: a client hanging up never aborts a write
// that may already have reached the store.
type TaskService struct {
	tasks      repo.TaskRepo
	users      repo.UserRepo
	workspaces *WorkspaceService
	cache      ListCache
	pub        Publisher
	log        *slog.Logger

	locks *keyedMutex
	sf    singleflight.Group
	now   func() time.Time
	newID func() string
}

// NewTaskService creates a TaskService. If c is nil, caching is disabled.
func NewTaskService(tasks repo.TaskRepo, users repo.UserRepo, ws *WorkspaceService, c *cache.TaskCache, pub Publisher, log *slog.Logger) *TaskService {
	if log == nil {
		log = slog.Default()
	}
	return &TaskService{
		tasks:      tasks,
		users:      users,
		workspaces: ws,
		cache:      listCache(c),
		pub:        pub,
		log:        log,
		locks:      newKeyedMutex(),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// Create validates and stores a new task in the actor's workspace.
func (s *TaskService) Create(ctx context.Context, actorID int64, in CreateTaskInput) (dom.Task, error) {
	title, err := validTitle(in.Title)
	if err != nil {
		return dom.Task{}, err
	}
	status := in.Status
	if status == "" {
		status = dom.StatusTodo
	}
	if status, err = dom.ParseStatus(string(status)); err != nil {
		return dom.Task{}, err
	}

	ctx = context.WithoutCancel(ctx)
	assignee, err := s.resolveAssignee(ctx, in.AssigneeID)
	if err != nil {
		return dom.Task{}, err
	}
	ws, err := s.workspaceFor(ctx, actorID)
	if err != nil {
		return dom.Task{}, err
	}

	now := s.now()
	t := dom.Task{
		ID:          s.newID(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      status,
		AssignedTo:  assignee,
		WorkspaceID: ws.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	unlock := s.locks.Lock(t.ID)
	defer unlock()

	saved, err := s.commit(ctx, t)
	if err != nil {
		return dom.Task{}, err
	}
	s.announce(ctx, dom.TaskCreated(saved), saved.WorkspaceID)
	return saved, nil
}

// Update applies the fields present in patch and leaves the rest untouched.
func (s *TaskService) Update(ctx context.Context, id string, patch dom.TaskPatch) (dom.Task, error) {
	var err error
	if patch.Title != nil {
		title, err := validTitle(*patch.Title)
		if err != nil {
			return dom.Task{}, err
		}
		patch.Title = &title
	}
	if patch.Status != nil {
		st, err := dom.ParseStatus(string(*patch.Status))
		if err != nil {
			return dom.Task{}, err
		}
		patch.Status = &st
	}

	ctx = context.WithoutCancel(ctx)
	var assignee *dom.UserRef
	if patch.AssignedTo != nil {
		if assignee, err = s.resolveAssignee(ctx, patch.AssignedTo.UserID); err != nil {
			return dom.Task{}, err
		}
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.find(ctx, id)
	if err != nil {
		return dom.Task{}, err
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.AssignedTo != nil {
		t.AssignedTo = assignee
	}
	t.UpdatedAt = s.now()

	saved, err := s.commit(ctx, t)
	if err != nil {
		return dom.Task{}, err
	}
	s.announce(ctx, dom.TaskUpdated(saved), saved.WorkspaceID)
	return saved, nil
}

// Delete removes the task and returns its id.
func (s *TaskService) Delete(ctx context.Context, id string) (string, error) {
	ctx = context.WithoutCancel(ctx)
	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.find(ctx, id)
	if err != nil {
		return "", err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", &dom.NotFoundError{Entity: "task", ID: id}
		}
		return "", &dom.StoreError{Op: "delete task", Err: err}
	}
	s.announce(ctx, dom.TaskDeleted(id), t.WorkspaceID)
	return id, nil
}

// Get returns one task.
func (s *TaskService) Get(ctx context.Context, id string) (dom.Task, error) {
	return s.find(ctx, id)
}

// List enrolls the actor and returns the workspace with its tasks.
func (s *TaskService) List(ctx context.Context, actorID int64) (dom.Workspace, []dom.Task, error) {
	ws, err := s.workspaceFor(ctx, actorID)
	if err != nil {
		return dom.Workspace{}, nil, err
	}
	if s.cache == nil {
		list, err := s.listTasks(ctx, ws.ID)
		return ws, list, err
	}
	gen, err := s.cache.TasksGeneration(ctx, ws.ID)
	if err != nil {
		s.log.Debug("task cache unavailable", "workspace_id", ws.ID, "err", err)
		list, err := s.listTasks(ctx, ws.ID)
		return ws, list, err
	}
	key := "tasks:" + strconv.FormatInt(ws.ID, 10) + ":" + strconv.FormatInt(gen, 10)
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		if list, err := s.cache.GetTasks(ctx, ws.ID, gen); err == nil && list != nil {
			return list, nil
		}
		list, err := s.listTasks(ctx, ws.ID)
		if err != nil {
			return nil, err
		}
		_ = s.cache.SetTasks(ctx, ws.ID, gen, list)
		return list, nil
	})
	if err != nil {
		return dom.Workspace{}, nil, err
	}
	return ws, v.([]dom.Task), nil
}

func (s *TaskService) listTasks(ctx context.Context, workspaceID int64) ([]dom.Task, error) {
	list, err := s.tasks.List(ctx, workspaceID)
	if err != nil {
		return nil, &dom.StoreError{Op: "list tasks", Err: err}
	}
	return list, nil
}

func (s *TaskService) workspaceFor(ctx context.Context, actorID int64) (dom.Workspace, error) {
	if ws, ok := dom.WorkspaceFromContext(ctx); ok && ws.HasMember(actorID) {
		return ws, nil
	}
	return s.workspaces.Enroll(ctx, actorID)
}

func (s *TaskService) resolveAssignee(ctx context.Context, userID *int64) (*dom.UserRef, error) {
	if userID == nil {
		return nil, nil
	}
	u, err := s.users.FindByID(ctx, *userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, &dom.NotFoundError{Entity: "user", ID: strconv.FormatInt(*userID, 10)}
	}
	if err != nil {
		return nil, &dom.StoreError{Op: "find user", Err: err}
	}
	ref := u.Ref()
	return &ref, nil
}

func (s *TaskService) find(ctx context.Context, id string) (dom.Task, error) {
	t, err := s.tasks.Find(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return dom.Task{}, &dom.NotFoundError{Entity: "task", ID: id}
	}
	if err != nil {
		return dom.Task{}, &dom.StoreError{Op: "find task", Err: err}
	}
	return t, nil
}

// commit writes t and reads back the canonical row.
func (s *TaskService) commit(ctx context.Context, t dom.Task) (dom.Task, error) {
	if err := s.tasks.Save(ctx, t); err != nil {
		return dom.Task{}, &dom.StoreError{Op: "save task", Err: err}
	}
	saved, err := s.tasks.Find(ctx, t.ID)
	if err != nil {
		return dom.Task{}, &dom.StoreError{Op: "reload task", Err: err}
	}
	return saved, nil
}

// announce publishes ev. The store is the authority: a failed publish is
// logged and otherwise ignored.
func (s *TaskService) announce(ctx context.Context, ev dom.MutationEvent, workspaceID int64) {
	if s.cache != nil {
		if err := s.cache.InvalidateTasks(ctx, workspaceID); err != nil {
			s.log.Warn("task cache invalidation failed", "workspace_id", workspaceID, "err", err)
		}
	}
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ev); err != nil {
		s.log.Warn("broadcast failed, clients may diverge until refetch",
			"event", ev.Type, "task_id", ev.TaskID, "err", err)
	}
}

func validTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", &dom.ValidationError{Field: "title", Msg: "is required"}
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", &dom.ValidationError{Field: "title", Msg: "must be at most 200 characters"}
	}
	return title, nil
}
