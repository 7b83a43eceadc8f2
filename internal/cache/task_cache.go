package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	dom "taskboard/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	keyTasks = "board:tasks:"
	keyUsers = "board:users"
)

// TaskCache caches the task list of a workspace and the user list in Redis.
//
// Entries are stored under a generation number. Invalidation bumps the
// generation instead of deleting, so a fill that read the store before a
// mutation lands under a generation no reader asks for again. Entries also
// expire after ttl.
type TaskCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTaskCache returns a new TaskCache.
func NewTaskCache(rdb *redis.Client, ttl time.Duration) *TaskCache {
	return &TaskCache{rdb: rdb, ttl: ttl}
}

// TasksGeneration returns the current generation of the workspace task list.
// Read it before querying the store.
func (c *TaskCache) TasksGeneration(ctx context.Context, workspaceID int64) (int64, error) {
	return c.generation(ctx, tasksKey(workspaceID))
}

// GetTasks returns the cached task list of generation gen or nil on a miss.
func (c *TaskCache) GetTasks(ctx context.Context, workspaceID, gen int64) ([]dom.Task, error) {
	var list []dom.Task
	ok, err := c.get(ctx, entryKey(tasksKey(workspaceID), gen), &list)
	if err != nil || !ok {
		return nil, err
	}
	return list, nil
}

// SetTasks stores the task list read under generation gen.
func (c *TaskCache) SetTasks(ctx context.Context, workspaceID, gen int64, list []dom.Task) error {
	return c.set(ctx, entryKey(tasksKey(workspaceID), gen), list)
}

// InvalidateTasks moves the workspace task list to a new generation.
func (c *TaskCache) InvalidateTasks(ctx context.Context, workspaceID int64) error {
	return c.rdb.Incr(ctx, genKey(tasksKey(workspaceID))).Err()
}

// UsersGeneration returns the current generation of the user list.
func (c *TaskCache) UsersGeneration(ctx context.Context) (int64, error) {
	return c.generation(ctx, keyUsers)
}

// GetUsers returns the cached user list of generation gen or nil on a miss.
func (c *TaskCache) GetUsers(ctx context.Context, gen int64) ([]dom.User, error) {
	var list []dom.User
	ok, err := c.get(ctx, entryKey(keyUsers, gen), &list)
	if err != nil || !ok {
		return nil, err
	}
	return list, nil
}

// SetUsers stores the user list. Callers pass users without password hashes.
func (c *TaskCache) SetUsers(ctx context.Context, gen int64, list []dom.User) error {
	return c.set(ctx, entryKey(keyUsers, gen), list)
}

// InvalidateUsers moves the user list to a new generation (after a registration).
func (c *TaskCache) InvalidateUsers(ctx context.Context) error {
	return c.rdb.Incr(ctx, genKey(keyUsers)).Err()
}

func (c *TaskCache) generation(ctx context.Context, base string) (int64, error) {
	gen, err := c.rdb.Get(ctx, genKey(base)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func (c *TaskCache) get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *TaskCache) set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}

func tasksKey(workspaceID int64) string {
	return keyTasks + strconv.FormatInt(workspaceID, 10)
}

func genKey(base string) string { return base + ":gen" }

func entryKey(base string, gen int64) string {
	return base + ":" + strconv.FormatInt(gen, 10)
}
