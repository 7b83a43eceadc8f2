package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	dom "taskboard/internal/domain"
	"taskboard/internal/repo"
)

var (
	ErrMockPublish = errors.New("mock publish error")
	ErrMockStore   = errors.New("mock store error")
)

// recordingPublisher keeps every published event in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []dom.MutationEvent
	err    error
}

func (p *recordingPublisher) Publish(ev dom.MutationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Events() []dom.MutationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]dom.MutationEvent(nil), p.events...)
}

// MockTaskRepo wraps a real repo and lets a test override single methods.
type MockTaskRepo struct {
	repo.TaskRepo
	SaveFunc   func(ctx context.Context, t dom.Task) error
	DeleteFunc func(ctx context.Context, id string) error
	ListFunc   func(ctx context.Context, workspaceID int64) ([]dom.Task, error)
}

func (m *MockTaskRepo) List(ctx context.Context, workspaceID int64) ([]dom.Task, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, workspaceID)
	}
	return m.TaskRepo.List(ctx, workspaceID)
}

func (m *MockTaskRepo) Save(ctx context.Context, t dom.Task) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, t)
	}
	return m.TaskRepo.Save(ctx, t)
}

func (m *MockTaskRepo) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return m.TaskRepo.Delete(ctx, id)
}

// MockListCache is an in-process ListCache with the same generation
// semantics as the Redis one.
type MockListCache struct {
	mu       sync.Mutex
	taskGen  map[int64]int64
	tasks    map[[2]int64][]dom.Task
	userGen  int64
	users    map[int64][]dom.User
	TaskSets int
}

func newMockListCache() *MockListCache {
	return &MockListCache{
		taskGen: make(map[int64]int64),
		tasks:   make(map[[2]int64][]dom.Task),
		users:   make(map[int64][]dom.User),
	}
}

func (c *MockListCache) TasksGeneration(_ context.Context, ws int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.taskGen[ws], nil
}

func (c *MockListCache) GetTasks(_ context.Context, ws, gen int64) ([]dom.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tasks[[2]int64{ws, gen}], nil
}

func (c *MockListCache) SetTasks(_ context.Context, ws, gen int64, list []dom.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks[[2]int64{ws, gen}] = append([]dom.Task{}, list...)
	c.TaskSets++
	return nil
}

func (c *MockListCache) InvalidateTasks(_ context.Context, ws int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taskGen[ws]++
	return nil
}

func (c *MockListCache) UsersGeneration(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userGen, nil
}

func (c *MockListCache) GetUsers(_ context.Context, gen int64) ([]dom.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.users[gen], nil
}

func (c *MockListCache) SetUsers(_ context.Context, gen int64, list []dom.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[gen] = append([]dom.User{}, list...)
	return nil
}

func (c *MockListCache) InvalidateUsers(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userGen++
	return nil
}

type fixture struct {
	store repo.Store
	pub   *recordingPublisher
	ws    *WorkspaceService
	tasks *TaskService
	users *UserService
	alice dom.User
	bob   dom.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repo.NewMemory().Store()
	f := &fixture{store: store, pub: &recordingPublisher{}}
	f.ws = NewWorkspaceService(store.Workspaces, "")
	f.tasks = NewTaskService(store.Tasks, store.Users, f.ws, nil, f.pub, nil)
	f.users = NewUserService(store.Users, nil)
	f.users.cost = 4

	var err error
	f.alice, err = f.users.Register(context.Background(), "alice", "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	f.bob, err = f.users.Register(context.Background(), "bob", "bob@example.com", "pw")
	if err != nil {
		t.Fatalf("register bob: %v", err)
	}
	return f
}

func ptr[T any](v T) *T { return &v }
