// Package notify carries user-visible notices (toasts) from the post editor
// components to whatever renders them.
package notify

import "sync"

// Level distinguishes success toasts from error toasts.
type Level int

const (
	Success Level = iota
	Error
)

func (l Level) String() string {
	if l == Success {
		return "success"
	}
	return "error"
}

// Notice is a single user-visible message.
type Notice struct {
	Level   Level
	Message string
}

// Notifier receives notices raised by the editor components.
type Notifier interface {
	Notify(n Notice)
}

// Func adapts a plain function to the Notifier interface.
type Func func(Notice)

// Notify calls f(n).
func (f Func) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Notifier = Func(func(Notice) {})

// Queue buffers notices until they are drained by a renderer.
// It is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	pending []Notice
}

// Notify appends n to the queue.
func (q *Queue) Notify(n Notice) {
	q.mu.Lock()
	q.pending = append(q.pending, n)
	q.mu.Unlock()
}

// Drain returns all queued notices in order and empties the queue.
func (q *Queue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}
