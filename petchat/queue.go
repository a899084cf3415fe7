package petchat

import "sync"

// messageQueue is a bounded FIFO of messages waiting for a connection.
// When full, new messages are dropped; queued ones are never evicted.
type messageQueue struct {
	mu    sync.Mutex
	items []*QueuedMessage
}

// push appends qm if there is room under limit and reports whether it was kept.
func (q *messageQueue) push(qm *QueuedMessage, limit int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= limit {
		return false
	}
	q.items = append(q.items, qm)
	return true
}

// take removes qm if it is still queued and reports whether it was.
func (q *messageQueue) take(qm *QueuedMessage) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it == qm {
			q.items = append(q.items[:i:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// pending returns the queued entries in order, without removing them.
func (q *messageQueue) pending() []*QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*QueuedMessage(nil), q.items...)
}

// list returns value copies of the queued messages.
func (q *messageQueue) list() []QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueuedMessage, len(q.items))
	for i, it := range q.items {
		out[i] = *it
	}
	return out
}

func (q *messageQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *messageQueue) clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}
