package realtime

import (
	"sync"

	dom "taskboard/internal/domain"
)

// outbox is a bounded FIFO of events waiting to be written to one session.
// When full, push drops the oldest entry so a stalled client costs at most
// size events of memory and never blocks the publisher.
type outbox struct {
	mu      sync.Mutex
	items   []dom.MutationEvent
	size    int
	closed  bool
	dropped uint64
	notify  chan struct{}
}

func newOutbox(size int) *outbox {
	if size <= 0 {
		size = 1
	}
	return &outbox{size: size, notify: make(chan struct{}, 1)}
}

// push enqueues ev and reports whether an older event had to be dropped.
func (o *outbox) push(ev dom.MutationEvent) (dropped bool) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	if len(o.items) == o.size {
		o.items = o.items[1:]
		o.dropped++
		dropped = true
	}
	o.items = append(o.items, ev)
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
	return dropped
}

// drain takes every queued event in FIFO order.
func (o *outbox) drain() []dom.MutationEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	items := o.items
	o.items = nil
	return items
}

func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.items = nil
	o.mu.Unlock()
}

func (o *outbox) droppedCount() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}
