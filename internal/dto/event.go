package dto

import (
	"fmt"

	dom "taskboard/internal/domain"
)

// MessageHello is sent once per push connection after it is registered.
const MessageHello = "hello"

// EventMessage is one frame on the push channel.
type EventMessage struct {
	Type      string        `json:"type"`
	Task      *TaskResponse `json:"task,omitempty"`
	TaskID    string        `json:"task_id,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
}

// EventToMessage encodes a mutation event for the wire.
func EventToMessage(ev dom.MutationEvent) any {
	m := EventMessage{Type: string(ev.Type), TaskID: ev.TaskID}
	if t, ok := ev.Task(); ok {
		r := TaskToResponse(t)
		m.Task = &r
	}
	return m
}

// HelloMessage announces the session id of a freshly registered connection.
func HelloMessage(sessionID string) EventMessage {
	return EventMessage{Type: MessageHello, SessionID: sessionID}
}

// Event decodes a task event frame. Hello frames are not events.
func (m EventMessage) Event() (dom.MutationEvent, error) {
	switch dom.EventType(m.Type) {
	case dom.EventTaskCreated, dom.EventTaskUpdated:
		if m.Task == nil {
			return dom.MutationEvent{}, fmt.Errorf("%s frame without task", m.Type)
		}
		if m.Type == string(dom.EventTaskCreated) {
			return dom.TaskCreated(m.Task.Task()), nil
		}
		return dom.TaskUpdated(m.Task.Task()), nil
	case dom.EventTaskDeleted:
		if m.TaskID == "" {
			return dom.MutationEvent{}, fmt.Errorf("%s frame without task_id", m.Type)
		}
		return dom.TaskDeleted(m.TaskID), nil
	}
	return dom.MutationEvent{}, fmt.Errorf("unknown frame type %q", m.Type)
}
