package ws

import "chat-relay/internal/models"

// Mailbox buffers messages for offline recipients until they next connect.
// A capacity of zero means unbounded; otherwise the oldest message per user is
// evicted to make room. Not safe for concurrent use.
type Mailbox struct {
	capacity int
	queues   map[string][]models.Message
	total    int
}

// NewMailbox creates an empty mailbox.
func NewMailbox(capacity int) *Mailbox {
	if capacity < 0 {
		capacity = 0
	}
	return &Mailbox{capacity: capacity, queues: make(map[string][]models.Message)}
}

// Push appends msg to username's queue and reports whether an older message
// was evicted.
func (m *Mailbox) Push(username string, msg models.Message) bool {
	queue := m.queues[username]
	evicted := false
	if m.capacity > 0 && len(queue) >= m.capacity {
		queue = queue[1:]
		m.total--
		evicted = true
	}
	m.queues[username] = append(queue, msg)
	m.total++
	return evicted
}

// Drain removes and returns username's queue in insertion order.
func (m *Mailbox) Drain(username string) []models.Message {
	queue, ok := m.queues[username]
	if !ok {
		return nil
	}
	delete(m.queues, username)
	m.total -= len(queue)
	return queue
}

// Requeue puts msgs back at the front of username's queue, ahead of anything
// that arrived since they were drained. Over capacity, the oldest are dropped
// and their count returned.
func (m *Mailbox) Requeue(username string, msgs []models.Message) int {
	if len(msgs) == 0 {
		return 0
	}
	queue := append(append([]models.Message{}, msgs...), m.queues[username]...)
	dropped := 0
	if m.capacity > 0 && len(queue) > m.capacity {
		dropped = len(queue) - m.capacity
		queue = queue[dropped:]
	}
	m.total += len(queue) - len(m.queues[username])
	m.queues[username] = queue
	return dropped
}

// Len reports how many messages wait for username.
func (m *Mailbox) Len(username string) int {
	return len(m.queues[username])
}

// Total reports how many messages wait across all users.
func (m *Mailbox) Total() int {
	return m.total
}
