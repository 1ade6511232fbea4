// Package memory provides the bounded in-memory task queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jobsift/crawlworker/internal/crawl"
)

// Queue is a bounded in-memory queue with context-aware dequeue. Enqueue is
// non-blocking: the HTTP handler must be able to shed load with a 503 rather
// than park caller goroutines.
type Queue struct {
	ch      chan crawl.CrawlTask
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	return &Queue{
		ch: make(chan crawl.CrawlTask, capacity),
	}
}

// TryEnqueue pushes a task or returns crawl.ErrQueueFull immediately.
func (q *Queue) TryEnqueue(task crawl.CrawlTask) error {
	select {
	case q.ch <- task:
		return nil
	default:
		return crawl.ErrQueueFull
	}
}

// Dequeue pops the next task, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (crawl.CrawlTask, error) {
	select {
	case <-ctx.Done():
		return crawl.CrawlTask{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return crawl.CrawlTask{}, errors.New("queue closed")
		}
		return task, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
