package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	dom "taskboard/internal/domain"
)

// Memory is an in-process store implementing TaskRepo, UserRepo and
// WorkspaceRepo. It backs STORE_DRIVER=memory and the tests.
type Memory struct {
	mu         sync.RWMutex
	tasks      map[string]dom.Task
	users      map[int64]dom.User
	workspaces map[string]dom.Workspace
	nextUserID int64
	nextWSID   int64
}

func NewMemory() *Memory {
	return &Memory{
		tasks:      make(map[string]dom.Task),
		users:      make(map[int64]dom.User),
		workspaces: make(map[string]dom.Workspace),
	}
}

// Store exposes m through the Store bundle.
func (m *Memory) Store() Store {
	return Store{Tasks: memoryTasks{m}, Users: memoryUsers{m}, Workspaces: memoryWorkspaces{m}, Close: func() {}}
}

type memoryTasks struct{ m *Memory }

func (r memoryTasks) Find(_ context.Context, id string) (dom.Task, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	t, ok := r.m.tasks[id]
	if !ok {
		return dom.Task{}, ErrNotFound
	}
	return r.m.resolve(t), nil
}

func (r memoryTasks) List(_ context.Context, workspaceID int64) ([]dom.Task, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	list := []dom.Task{}
	for _, t := range r.m.tasks {
		if t.WorkspaceID == workspaceID {
			list = append(list, r.m.resolve(t))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (r memoryTasks) Save(_ context.Context, t dom.Task) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if prev, ok := r.m.tasks[t.ID]; ok {
		t.CreatedAt = prev.CreatedAt
		t.WorkspaceID = prev.WorkspaceID
	}
	if t.AssignedTo != nil {
		t.AssignedTo = &dom.UserRef{ID: t.AssignedTo.ID}
	}
	r.m.tasks[t.ID] = t
	return nil
}

func (r memoryTasks) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.tasks, id)
	return nil
}

// resolve fills the assignee's username. Callers hold m.mu.
func (m *Memory) resolve(t dom.Task) dom.Task {
	if t.AssignedTo == nil {
		return t
	}
	u, ok := m.users[t.AssignedTo.ID]
	if !ok {
		t.AssignedTo = nil
		return t
	}
	ref := u.Ref()
	t.AssignedTo = &ref
	return t
}

type memoryUsers struct{ m *Memory }

func (r memoryUsers) FindByID(_ context.Context, id int64) (dom.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	u, ok := r.m.users[id]
	if !ok {
		return dom.User{}, ErrNotFound
	}
	return u, nil
}

func (r memoryUsers) FindByEmail(_ context.Context, email string) (dom.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return dom.User{}, ErrNotFound
}

func (r memoryUsers) List(_ context.Context) ([]dom.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	list := make([]dom.User, 0, len(r.m.users))
	for _, u := range r.m.users {
		list = append(list, u.Public())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r memoryUsers) Create(_ context.Context, username, email, passwordHash string) (dom.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, email) {
			return dom.User{}, ErrDuplicate
		}
	}
	r.m.nextUserID++
	u := dom.User{
		ID:           r.m.nextUserID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.m.users[u.ID] = u
	return u, nil
}

type memoryWorkspaces struct{ m *Memory }

func (r memoryWorkspaces) FindByName(_ context.Context, name string) (dom.Workspace, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	ws, ok := r.m.workspaces[name]
	if !ok {
		return dom.Workspace{}, ErrNotFound
	}
	return cloneWorkspace(ws), nil
}

func (r memoryWorkspaces) Save(_ context.Context, ws dom.Workspace) (dom.Workspace, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.workspaces[ws.Name]
	if !ok {
		r.m.nextWSID++
		stored = dom.Workspace{ID: r.m.nextWSID, Name: ws.Name, CreatedAt: time.Now().UTC()}
	}
	for _, id := range ws.Members {
		stored = stored.WithMember(id)
	}
	r.m.workspaces[ws.Name] = stored
	return cloneWorkspace(stored), nil
}

func cloneWorkspace(ws dom.Workspace) dom.Workspace {
	ws.Members = append([]int64(nil), ws.Members...)
	return ws
}
