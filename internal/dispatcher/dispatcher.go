// Package dispatcher manages worker fan-out over the task queue.
package dispatcher

import (
	"context"
	"sync"

	"github.com/jobsift/crawlworker/internal/crawl"
	"github.com/jobsift/crawlworker/internal/worker"
)

// Dispatcher fans out queued crawl tasks to a pool of workers.
type Dispatcher struct {
	queue   crawl.Queue
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(queue crawl.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue, preserving its backpressure.
func (d *Dispatcher) Enqueue(task crawl.CrawlTask) error {
	return d.queue.TryEnqueue(task)
}
