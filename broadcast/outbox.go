package broadcast

import "sync"

// Outbox is a bounded queue of messages drained by one consumer goroutine.
// Sinks embed it to get a non-blocking Deliver and an idempotent Close.
type Outbox struct {
	mu     sync.Mutex
	ch     chan Message
	closed bool
}

// NewOutbox creates an outbox holding up to size messages
func NewOutbox(size int) *Outbox {
	if size < 1 {
		size = 1
	}
	return &Outbox{ch: make(chan Message, size)}
}

// Deliver queues msg, or drops it if the outbox is full or closed
func (o *Outbox) Deliver(msg Message) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	select {
	case o.ch <- msg:
		return true
	default:
		return false
	}
}

// Messages is drained by the consumer; it is closed after Close
func (o *Outbox) Messages() <-chan Message {
	return o.ch
}

// Close stops accepting messages. Queued messages can still be drained.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.ch)
	}
}
