// Package ui decouples background producers from the terminal frontend:
// notifications go into a bounded queue that the render loop drains on
// its own schedule.
package ui

import (
	"sync"
	"time"
)

// Styles a notification may carry. The frontend maps them to colors.
const (
	StyleInfo    = "info"
	StyleWarning = "warning"
	StyleFinding = "finding"
)

// Notification is one message for the frontend
type Notification struct {
	Text  string
	Style string
	Time  time.Time
}

// Queue is a bounded notification queue with a single status line.
// Producers never block: when the queue is full the oldest notification
// is dropped to make room.
type Queue struct {
	mu       sync.Mutex
	items    []Notification
	capacity int
	status   string
}

// NewQueue creates a queue holding at most capacity notifications
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	return &Queue{capacity: capacity}
}

// Emit appends a notification, dropping the oldest when full
func (q *Queue) Emit(text, style string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
	}
	q.items = append(q.items, Notification{
		Text:  text,
		Style: style,
		Time:  time.Now(),
	})
}

// SetStatus replaces the status line
func (q *Queue) SetStatus(status string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.status = status
}

// Status returns the current status line
func (q *Queue) Status() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.status
}

// Drain removes and returns all pending notifications in arrival order
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	drained := q.items
	q.items = nil
	return drained
}

// Len returns the number of pending notifications
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
