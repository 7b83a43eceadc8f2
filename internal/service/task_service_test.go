package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	dom "taskboard/internal/domain"
)

func TestCreateDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.tasks.Create(ctx, f.alice.ID, CreateTaskInput{Title: "  Write spec  "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.ID == "" {
		t.Error("empty id")
	}
	if task.Title != "Write spec" {
		t.Errorf("title = %q", task.Title)
	}
	if task.Status != dom.StatusTodo {
		t.Errorf("status = %q, want todo", task.Status)
	}
	if task.AssignedTo != nil {
		t.Errorf("assigned_to = %+v, want none", task.AssignedTo)
	}
	if task.WorkspaceID == 0 {
		t.Error("task not placed in a workspace")
	}

	evs := f.pub.Events()
	if len(evs) != 1 || evs[0].Type != dom.EventTaskCreated || evs[0].TaskID != task.ID {
		t.Fatalf("events = %+v", evs)
	}
}

func TestCreateEnrollsActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.tasks.Create(ctx, f.alice.ID, CreateTaskInput{Title: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tasks.Create(ctx, f.alice.ID, CreateTaskInput{Title: "b"}); err != nil {
		t.Fatal(err)
	}
	ws, err := f.store.Workspaces.FindByName(ctx, dom.DefaultWorkspaceName)
	if err != nil {
		t.Fatalf("workspace not created: %v", err)
	}
	if len(ws.Members) != 1 || ws.Members[0] != f.alice.ID {
		t.Errorf("members = %v, want [%d]", ws.Members, f.alice.ID)
	}
}

func TestCreateResolvesAssignee(t *testing.T) {
	f := newFixture(t)
	task, err := f.tasks.Create(context.Background(), f.alice.ID, CreateTaskInput{
		Title:      "Review",
		Status:     "In Progress",
		AssigneeID: &f.bob.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if task.AssignedTo == nil || task.AssignedTo.Username != "bob" {
		t.Errorf("assigned_to = %+v, want bob", task.AssignedTo)
	}
	if task.Status != dom.StatusInProgress {
		t.Errorf("status = %q", task.Status)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   CreateTaskInput
	}{
		{"empty title", CreateTaskInput{Title: ""}},
		{"blank title", CreateTaskInput{Title: "   "}},
		{"long title", CreateTaskInput{Title: strings.Repeat("x", 201)}},
		{"long multibyte title", CreateTaskInput{Title: strings.Repeat("é", 201)}},
		{"bad status", CreateTaskInput{Title: "ok", Status: "blocked"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tasks.Create(context.Background(), f.alice.ID, tt.in)
			if !errors.Is(err, dom.ErrValidation) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
	if n := len(f.pub.Events()); n != 0 {
		t.Errorf("rejected creates published %d events", n)
	}
}

// Title length counts characters, matching the request binding.
func TestCreateAcceptsMultibyteTitleAtLimit(t *testing.T) {
	f := newFixture(t)
	title := strings.Repeat("é", 200)
	task, err := f.tasks.Create(context.Background(), f.alice.ID, CreateTaskInput{Title: title})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.Title != title {
		t.Errorf("title = %q", task.Title)
	}
	patched := strings.Repeat("ü", 150)
	if _, err := f.tasks.Update(context.Background(), task.ID, dom.TaskPatch{Title: &patched}); err != nil {
		t.Errorf("Update: %v", err)
	}
}

func TestCreateUnknownAssignee(t *testing.T) {
	f := newFixture(t)
	_, err := f.tasks.Create(context.Background(), f.alice.ID, CreateTaskInput{Title: "x", AssigneeID: ptr(int64(999))})
	if !errors.Is(err, dom.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if n := len(f.pub.Events()); n != 0 {
		t.Errorf("published %d events", n)
	}
}

func TestUpdateIsPartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orig, err := f.tasks.Create(ctx, f.alice.ID, CreateTaskInput{
		Title:       "Write spec",
		Description: "long form",
		AssigneeID:  &f.bob.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	done := dom.StatusDone
	got, err := f.tasks.Update(ctx, orig.ID, dom.TaskPatch{Status: &done})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Status != dom.StatusDone {
		t.Errorf("status = %q", got.Status)
	}
	if got.Title != orig.Title || got.Description != orig.Description {
		t.Errorf("untouched fields changed: %+v", got)
	}
	if got.AssignedTo == nil || got.AssignedTo.ID != f.bob.ID {
		t.Errorf("assignee changed: %+v", got.AssignedTo)
	}
	if !got.CreatedAt.Equal(orig.CreatedAt) {
		t.Error("created_at changed")
	}
}

func TestUpdateAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, err := f.tasks.Create(ctx, f.alice.ID, CreateTaskInput{Title: "x"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := f.tasks.Update(ctx, task.ID, dom.TaskPatch{AssignedTo: &dom.Assignment{UserID: &f.alice.ID}})
	if err != nil {
		t.Fatal(err)
	}
	if got.AssignedTo == nil || got.AssignedTo.Username != "alice" {
		t.Fatalf("assigned_to = %+v", got.AssignedTo)
	}

	got, err = f.tasks.Update(ctx, task.ID, dom.TaskPatch{AssignedTo: &dom.Assignment{}})
	if err != nil {
		t.Fatal(err)
	}
	if got.AssignedTo != nil {
		t.Errorf("assignee not cleared: %+v", got.AssignedTo)
	}
}

func TestUpdateMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.tasks.Update(context.Background(), "nope", dom.TaskPatch{Title: ptr("x")})
	if !errors.Is(err, dom.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if n := len(f.pub.Events()); n != 0 {
		t.Errorf("published %d events", n)
	}
}

func TestDeleteMissingPublishesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.tasks.Delete(context.Background(), "nope")
	if !errors.Is(err, dom.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if n := len(f.pub.Events()); n != 0 {
		t.Errorf("published %d events", n)
	}
}

func TestPublishFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.pub.err = ErrMockPublish
	ctx := context.Background()

	task, err := f.tasks.Create(ctx, f.alice.ID, CreateTaskInput{Title: "x"})
	if err != nil {
		t.Fatalf("Create returned publish error: %v", err)
	}
	if _, err := f.tasks.Get(ctx, task.ID); err != nil {
		t.Errorf("task not committed: %v", err)
	}
	if _, err := f.tasks.Delete(ctx, task.ID); err != nil {
		t.Errorf("Delete returned publish error: %v", err)
	}
}

func TestStoreFailureIsNotPublished(t *testing.T) {
	f := newFixture(t)
	tasks := &MockTaskRepo{
		TaskRepo: f.store.Tasks,
		SaveFunc: func(context.Context, dom.Task) error { return ErrMockStore },
	}
	svc := NewTaskService(tasks, f.store.Users, f.ws, nil, f.pub, nil)

	_, err := svc.Create(context.Background(), f.alice.ID, CreateTaskInput{Title: "x"})
	var se *dom.StoreError
	if !errors.As(err, &se) || !errors.Is(err, ErrMockStore) {
		t.Fatalf("err = %v, want StoreError wrapping mock", err)
	}
	if n := len(f.pub.Events()); n != 0 {
		t.Errorf("published %d events for a failed commit", n)
	}
}

func TestCommitSurvivesCallerCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	tasks := &MockTaskRepo{
		TaskRepo: f.store.Tasks,
		SaveFunc: func(c context.Context, task dom.Task) error {
			cancel()
			if c.Err() != nil {
				return c.Err()
			}
			return f.store.Tasks.Save(c, task)
		},
	}
	svc := NewTaskService(tasks, f.store.Users, f.ws, nil, f.pub, nil)

	if _, err := svc.Create(ctx, f.alice.ID, CreateTaskInput{Title: "x"}); err != nil {
		t.Fatalf("cancelled caller aborted commit: %v", err)
	}
	if n := len(f.pub.Events()); n != 1 {
		t.Errorf("events = %d, want 1", n)
	}
}

func TestConcurrentUpdatesNeverTear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, err := f.tasks.Create(ctx, f.alice.ID, CreateTaskInput{Title: "orig", Description: "d"})
	if err != nil {
		t.Fatal(err)
	}

	done := dom.StatusDone
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := f.tasks.Update(ctx, task.ID, dom.TaskPatch{Title: ptr("A")}); err != nil {
				t.Error(err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := f.tasks.Update(ctx, task.ID, dom.TaskPatch{Status: &done}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, err := f.tasks.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "A" || got.Status != dom.StatusDone || got.Description != "d" {
		t.Errorf("final = %+v", got)
	}

	// Updated events leave in commit order: replaying them reproduces the
	// final row.
	var last dom.Task
	for _, ev := range f.pub.Events() {
		if ev.Type == dom.EventTaskUpdated {
			last, _ = ev.Task()
		}
	}
	if last.Title != got.Title || last.Status != got.Status || !last.UpdatedAt.Equal(got.UpdatedAt) {
		t.Errorf("last event %+v does not match stored %+v", last, got)
	}
}

func TestScenarioCreateUpdateDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.tasks.Create(ctx, f.alice.ID, CreateTaskInput{Title: "Write spec"})
	if err != nil {
		t.Fatal(err)
	}
	if created.Title != "Write spec" || created.Status != dom.StatusTodo || created.AssignedTo != nil {
		t.Fatalf("created = %+v", created)
	}

	st, _ := dom.ParseStatus("In Progress")
	updated, err := f.tasks.Update(ctx, created.ID, dom.TaskPatch{Status: &st})
	if err != nil {
		t.Fatal(err)
	}
	if updated.ID != created.ID || updated.Status.Label() != "In Progress" || updated.Title != "Write spec" {
		t.Fatalf("updated = %+v", updated)
	}

	id, err := f.tasks.Delete(ctx, created.ID)
	if err != nil || id != created.ID {
		t.Fatalf("Delete = %q, %v", id, err)
	}

	_, list, err := f.tasks.List(ctx, f.bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, task := range list {
		if task.ID == created.ID {
			t.Error("deleted task still listed")
		}
	}

	want := []dom.EventType{dom.EventTaskCreated, dom.EventTaskUpdated, dom.EventTaskDeleted}
	evs := f.pub.Events()
	if len(evs) != len(want) {
		t.Fatalf("events = %+v", evs)
	}
	for i, ev := range evs {
		if ev.Type != want[i] || ev.TaskID != created.ID {
			t.Errorf("event %d = %s %s, want %s %s", i, ev.Type, ev.TaskID, want[i], created.ID)
		}
	}
}

func TestListUsesContextWorkspace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ws, err := f.ws.Enroll(ctx, f.alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.tasks.Create(dom.ContextWithWorkspace(ctx, ws), f.alice.ID, CreateTaskInput{Title: "x"}); err != nil {
		t.Fatal(err)
	}
	got, list, err := f.tasks.List(ctx, f.alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != ws.ID || len(list) != 1 {
		t.Errorf("workspace %d with %d tasks", got.ID, len(list))
	}
}
