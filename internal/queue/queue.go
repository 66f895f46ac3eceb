package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/subautotrans/subautotrans/internal/store"
	"github.com/subautotrans/subautotrans/internal/task"
	"github.com/subautotrans/subautotrans/pkg/log"
)

// Handler processes one claimed task. It is invoked by exactly one
// worker per task id; the claim in the store guarantees that.
type Handler func(ctx context.Context, taskID int64) error

// ProgressFunc observes progress updates. Fire-and-forget.
type ProgressFunc func(taskID int64, progress int)

// StatusFunc observes status transitions. Fire-and-forget.
type StatusFunc func(taskID int64, status task.Status)

const defaultPollInterval = time.Second

type workerHandle struct {
	done atomic.Bool
}

// Queue is a bounded pool of worker loops competing for pending tasks
// through the store's atomic claim. The database row is the only state
// shared between workers; a claimed task belongs to one worker until it
// reaches a terminal or cancelled status.
type Queue struct {
	store        *store.Store
	pollInterval time.Duration

	mu          sync.Mutex
	workerCount int
	started     bool
	handler     Handler
	workers     []*workerHandle
	progressFns []ProgressFunc
	statusFns   []StatusFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueue(st *store.Store, workerCount int) *Queue {
	if workerCount <= 0 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		store:        st,
		pollInterval: defaultPollInterval,
		workerCount:  workerCount,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// OnProgress registers a progress observer.
func (q *Queue) OnProgress(fn ProgressFunc) {
	q.mu.Lock()
	q.progressFns = append(q.progressFns, fn)
	q.mu.Unlock()
}

// OnStatusChange registers a status observer.
func (q *Queue) OnStatusChange(fn StatusFunc) {
	q.mu.Lock()
	q.statusFns = append(q.statusFns, fn)
	q.mu.Unlock()
}

// Start launches the worker loops. Idempotent.
func (q *Queue) Start(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	q.handler = handler
	for i := len(q.workers); i < q.workerCount; i++ {
		q.spawnLocked(i)
	}
	log.Info("Task queue started with %d workers", q.workerCount)
}

// Stop cancels all worker loops and waits for them. A worker that is
// mid-task returns after its current handler call; the claimed row is
// left processing and surfaced as orphaned on next start.
func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()
	log.Info("Task queue stopped")
}

// SetWorkerCount resizes the pool. Finished loops are reaped and new
// ones spawned up to n; excess loops observe they are beyond the count
// at their next iteration and exit. A loop mid-task is never killed.
func (q *Queue) SetWorkerCount(n int) {
	if n <= 0 {
		n = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.workerCount = n
	if !q.started {
		return
	}
	q.reapLocked()
	for i := len(q.workers); i < n; i++ {
		q.spawnLocked(i)
	}
}

// WorkerCount returns the configured pool size.
func (q *Queue) WorkerCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.workerCount
}

func (q *Queue) reapLocked() {
	live := q.workers[:0]
	for _, w := range q.workers {
		if !w.done.Load() {
			live = append(live, w)
		}
	}
	q.workers = live
}

func (q *Queue) spawnLocked(index int) {
	h := &workerHandle{}
	q.workers = append(q.workers, h)
	q.wg.Add(1)
	go q.worker(index, h)
}

func (q *Queue) worker(id int, h *workerHandle) {
	defer q.wg.Done()
	defer h.done.Store(true)
	log.Info("Worker %d started", id)

	for {
		select {
		case <-q.ctx.Done():
			log.Info("Worker %d stopped", id)
			return
		default:
		}

		q.mu.Lock()
		max := q.workerCount
		handler := q.handler
		q.mu.Unlock()
		if id >= max {
			log.Info("Worker %d exiting after pool resize", id)
			return
		}

		taskID, claimed, err := q.store.ClaimNextPending(q.ctx)
		if err != nil {
			if q.ctx.Err() != nil {
				return
			}
			log.Error("Worker %d claim failed: %v", id, err)
			q.sleep()
			continue
		}
		if !claimed {
			q.sleep()
			continue
		}

		log.Info("Worker %d processing task %d", id, taskID)
		q.notifyStatus(taskID, task.StatusProcessing)

		handlerErr := func() error {
			if handler == nil {
				return nil
			}
			return handler(q.ctx, taskID)
		}()

		// Shutdown mid-task: leave the row processing.
		if q.ctx.Err() != nil {
			log.Warn("Worker %d interrupted during task %d, leaving it processing", id, taskID)
			return
		}

		status, err := q.store.TaskStatus(context.Background(), taskID)
		if err != nil {
			log.Error("Worker %d failed to re-read task %d: %v", id, taskID, err)
			continue
		}
		if status == task.StatusCancelled {
			log.Info("Task %d cancelled, skipping completion", taskID)
			continue
		}

		if handlerErr != nil {
			log.Error("Task %d failed: %v", taskID, handlerErr)
			if err := q.store.MarkFailed(context.Background(), taskID, handlerErr.Error()); err != nil {
				log.Error("Failed to mark task %d failed: %v", taskID, err)
			}
			q.notifyStatus(taskID, task.StatusFailed)
			continue
		}

		if err := q.store.MarkCompleted(context.Background(), taskID); err != nil {
			log.Error("Failed to mark task %d completed: %v", taskID, err)
			continue
		}
		q.notifyProgress(taskID, 100)
		q.notifyStatus(taskID, task.StatusCompleted)
		log.Info("Task %d completed", taskID)
	}
}

func (q *Queue) sleep() {
	select {
	case <-q.ctx.Done():
	case <-time.After(q.pollInterval):
	}
}

// UpdateProgress persists progress and fans it out to observers.
func (q *Queue) UpdateProgress(ctx context.Context, taskID int64, progress int) error {
	if err := q.store.UpdateProgress(ctx, taskID, progress); err != nil {
		return err
	}
	q.notifyProgress(taskID, progress)
	return nil
}

func (q *Queue) notifyProgress(taskID int64, progress int) {
	q.mu.Lock()
	fns := append([]ProgressFunc(nil), q.progressFns...)
	q.mu.Unlock()
	for _, fn := range fns {
		safeNotify(func() { fn(taskID, progress) })
	}
}

func (q *Queue) notifyStatus(taskID int64, status task.Status) {
	q.mu.Lock()
	fns := append([]StatusFunc(nil), q.statusFns...)
	q.mu.Unlock()
	for _, fn := range fns {
		safeNotify(func() { fn(taskID, status) })
	}
}

// safeNotify isolates observers from each other: a panicking observer
// must not take down the worker or the remaining observers.
func safeNotify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Observer panicked: %v", r)
		}
	}()
	fn()
}
