// Package admission implements the Admission Queue (C11): an unbounded FIFO
// backlog plus a fixed pool of worker goroutines, so at most
// MaxConcurrentDeployments deployments run their full pipeline at once no
// matter how many deployments get enqueued in a burst. Per spec §4.11,
// enqueue(task) must be O(1), unbounded, and never block the caller — a
// buffered channel cannot satisfy that once its buffer fills, so the
// backlog here is a plain slice guarded by a sync.Mutex/sync.Cond pair
// instead: Enqueue appends and signals, workers block on the condition
// variable when the backlog is empty. Grounded on the same worker-pool
// shape as a bounded commit-runner (N long-lived workers, a poison-pill
// shutdown), with the channel swapped for a condition-variable queue to
// get the unbounded, non-blocking enqueue contract.
package admission

import (
	"log/slog"
	"sync"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/models"
)

// Handler processes one deployment through the full pipeline. Supplied by
// the orchestrator package at construction time so this package never
// needs to know about clone/build/extract/supervise/proxy steps.
type Handler func(deployment *models.Deployment)

// Queue is the Admission Queue. Workers bounds how many deployments run
// concurrently; the backlog itself has no capacity limit.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	backlog []*models.Deployment
	closed  bool

	handler Handler
	logger  *slog.Logger
	workers int
	wg      sync.WaitGroup
}

// New constructs a Queue with the given worker count. Workers are not
// started until Start is called.
func New(workers int, handler Handler, logger *slog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	q := &Queue{
		handler: handler,
		logger:  logger,
		workers: workers,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start spawns the worker goroutines. Each loops pulling off the backlog
// until Stop closes the queue and the backlog has drained.
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for {
		deployment, ok := q.dequeue()
		if !ok {
			return
		}
		q.logger.Info("admission worker picked up deployment", "worker", id, "deployment_id", deployment.ID)
		q.handler(deployment)
	}
}

// dequeue blocks until the backlog has an item or the queue has been
// closed with nothing left to drain.
func (q *Queue) dequeue() (*models.Deployment, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.backlog) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.backlog) == 0 {
		return nil, false
	}
	deployment := q.backlog[0]
	q.backlog = q.backlog[1:]
	return deployment, true
}

// Enqueue submits a deployment for processing. Per spec §4.11 this is O(1)
// and never rejects or blocks the caller: it appends to an unbounded slice
// under a mutex and returns immediately, regardless of how busy the worker
// pool is.
func (q *Queue) Enqueue(deployment *models.Deployment) {
	q.mu.Lock()
	q.backlog = append(q.backlog, deployment)
	q.mu.Unlock()
	q.cond.Signal()
}

// Stop marks the queue closed and blocks until every already-enqueued
// deployment has been handled and every worker has returned. Called during
// graceful shutdown so a deployment that is mid-pipeline is allowed to
// reach a terminal status rather than being abandoned in `deploying`.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
	q.wg.Wait()
}
