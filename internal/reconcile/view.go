// Package reconcile keeps a client's local copy of the board in step with the
// server by applying pushed mutation events to it.
package reconcile

import (
	"fmt"
	"sync"

	dom "taskboard/internal/domain"
)

// View is an ordered local copy of the task collection. Safe for concurrent use.
type View struct {
	mu    sync.RWMutex
	tasks []dom.Task
	index map[string]int
}

func NewView() *View {
	return &View{index: make(map[string]int)}
}

// Load replaces the view with a freshly fetched baseline.
func (v *View) Load(tasks []dom.Task) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tasks = make([]dom.Task, 0, len(tasks))
	v.index = make(map[string]int, len(tasks))
	for _, t := range tasks {
		v.upsert(t)
	}
}

// Apply folds one event into the view.
//
// Created appends unless the id is already present. Updated replaces in place,
// or appends when the create was missed. Deleted of an absent id is a no-op.
func (v *View) Apply(ev dom.MutationEvent) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch ev.Type {
	case dom.EventTaskCreated:
		t, ok := ev.Task()
		if !ok {
			return fmt.Errorf("%s event without task", ev.Type)
		}
		if _, exists := v.index[t.ID]; !exists {
			v.upsert(t)
		}
	case dom.EventTaskUpdated:
		t, ok := ev.Task()
		if !ok {
			return fmt.Errorf("%s event without task", ev.Type)
		}
		v.upsert(t)
	case dom.EventTaskDeleted:
		v.remove(ev.TaskID)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return nil
}

// Tasks returns a copy of the view in order.
func (v *View) Tasks() []dom.Task {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]dom.Task, len(v.tasks))
	for i, t := range v.tasks {
		out[i] = t.Clone()
	}
	return out
}

func (v *View) Get(id string) (dom.Task, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	i, ok := v.index[id]
	if !ok {
		return dom.Task{}, false
	}
	return v.tasks[i].Clone(), true
}

func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.tasks)
}

func (v *View) upsert(t dom.Task) {
	t = t.Clone()
	if i, ok := v.index[t.ID]; ok {
		v.tasks[i] = t
		return
	}
	v.index[t.ID] = len(v.tasks)
	v.tasks = append(v.tasks, t)
}

func (v *View) remove(id string) {
	i, ok := v.index[id]
	if !ok {
		return
	}
	v.tasks = append(v.tasks[:i], v.tasks[i+1:]...)
	delete(v.index, id)
	for j := i; j < len(v.tasks); j++ {
		v.index[v.tasks[j].ID] = j
	}
}
