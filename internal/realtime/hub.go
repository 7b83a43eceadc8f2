// Package realtime fans committed task mutations out to connected clients.
//
// A Hub is both the session registry and the broadcast channel. Publish only
// enqueues: every session owns a bounded outbox drained by its own goroutine,
// so a slow client never delays the mutation that produced the event. Publish
// calls are serialized, which gives every session the same event order.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	dom "taskboard/internal/domain"
)

// DefaultQueueSize bounds each session's outbox when Options.QueueSize is unset.
const DefaultQueueSize = 256

var ErrClosed = errors.New("realtime: hub closed")

// Conn is the delivery address of one session.
type Conn interface {
	Send(ctx context.Context, ev dom.MutationEvent) error
	Close() error
}

// SessionID identifies a live session. Ids are never reused.
type SessionID string

// DeliveryError reports a failed write to one session. It never reaches the
// mutation caller; the session is unregistered instead.
type DeliveryError struct {
	SessionID SessionID
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to session %s: %v", e.SessionID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type Options struct {
	QueueSize int
	Logger    *slog.Logger
}

type session struct {
	id     SessionID
	owner  string
	conn   Conn
	out    *outbox
	greet  func(SessionID) error
	ctx    context.Context
	cancel context.CancelFunc
}

type Hub struct {
	log       *slog.Logger
	queueSize int

	mu       sync.RWMutex
	sessions map[SessionID]*session
	closed   bool

	pubMu sync.Mutex
	wg    sync.WaitGroup
}

func NewHub(opts Options) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Hub{
		log:       opts.Logger,
		queueSize: opts.QueueSize,
		sessions:  make(map[SessionID]*session),
	}
}

// Register admits conn and starts its delivery goroutine. owner groups
// sessions opened with the same credential so they can be torn down together.
func (h *Hub) Register(conn Conn, owner string) (SessionID, error) {
	return h.register(conn, owner, nil)
}

// register admits conn. If greet is set, the delivery goroutine runs it
// before the first queued event, so nothing published after registration can
// overtake it.
func (h *Hub) register(conn Conn, owner string, greet func(SessionID) error) (SessionID, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:     SessionID(uuid.NewString()),
		owner:  owner,
		conn:   conn,
		out:    newOutbox(h.queueSize),
		greet:  greet,
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		return "", ErrClosed
	}
	h.sessions[s.id] = s
	h.wg.Add(1)
	h.mu.Unlock()

	go h.deliver(s)
	h.log.Debug("session registered", "session_id", s.id)
	return s.id, nil
}

// Unregister removes the session, cancels its pending deliveries and closes
// its connection. It reports false if the session was already gone.
func (h *Hub) Unregister(id SessionID) bool {
	h.mu.Lock()
	s, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
	}
	h.mu.Unlock()
	if !ok {
		return false
	}
	s.cancel()
	s.out.close()
	_ = s.conn.Close()
	h.log.Debug("session unregistered", "session_id", id)
	return true
}

// DisconnectOwner unregisters every session registered with owner.
func (h *Hub) DisconnectOwner(owner string) int {
	if owner == "" {
		return 0
	}
	var ids []SessionID
	h.mu.RLock()
	for id, s := range h.sessions {
		if s.owner == owner {
			ids = append(ids, id)
		}
	}
	h.mu.RUnlock()

	n := 0
	for _, id := range ids {
		if h.Unregister(id) {
			n++
		}
	}
	return n
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Publish queues ev for every session live at the time of the call.
func (h *Hub) Publish(ev dom.MutationEvent) error {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if s.out.push(ev) {
			h.log.Warn("session outbox full, dropped oldest event",
				"session_id", s.id, "dropped_total", s.out.droppedCount())
		}
	}
	return nil
}

// Close unregisters every session and waits for delivery goroutines to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	ids := make([]SessionID, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.Unregister(id)
	}
	h.wg.Wait()
}

func (h *Hub) deliver(s *session) {
	defer h.wg.Done()
	if s.greet != nil {
		if err := s.greet(s.id); err != nil {
			if s.ctx.Err() == nil {
				h.log.Warn("greeting failed, dropping session",
					"err", &DeliveryError{SessionID: s.id, Err: err})
			}
			h.Unregister(s.id)
			return
		}
	}
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.out.notify:
		}
		for _, ev := range s.out.drain() {
			if s.ctx.Err() != nil {
				return
			}
			if err := s.conn.Send(s.ctx, ev); err != nil {
				if s.ctx.Err() == nil {
					h.log.Warn("delivery failed, dropping session",
						"event", ev.Type, "task_id", ev.TaskID,
						"err", &DeliveryError{SessionID: s.id, Err: err})
				}
				h.Unregister(s.id)
				return
			}
		}
	}
}
