package domain

// EventType names a committed mutation.
type EventType string

const (
	EventTaskCreated EventType = "task_created"
	EventTaskUpdated EventType = "task_updated"
	EventTaskDeleted EventType = "task_deleted"
)

// MutationEvent is the unit of broadcast. Construct it with TaskCreated,
// TaskUpdated or TaskDeleted; the embedded task is a private copy.
type MutationEvent struct {
	Type   EventType
	TaskID string
	task   *Task
}

// TaskCreated builds the event for a committed create.
func TaskCreated(t Task) MutationEvent {
	c := t.Clone()
	return MutationEvent{Type: EventTaskCreated, TaskID: t.ID, task: &c}
}

// TaskUpdated builds the event for a committed update.
func TaskUpdated(t Task) MutationEvent {
	c := t.Clone()
	return MutationEvent{Type: EventTaskUpdated, TaskID: t.ID, task: &c}
}

// TaskDeleted builds the event for a committed delete.
func TaskDeleted(id string) MutationEvent {
	return MutationEvent{Type: EventTaskDeleted, TaskID: id}
}

// Task returns a copy of the carried task. ok is false for deletes.
func (e MutationEvent) Task() (Task, bool) {
	if e.task == nil {
		return Task{}, false
	}
	return e.task.Clone(), true
}
