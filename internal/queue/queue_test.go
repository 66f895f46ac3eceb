package queue

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subautotrans/subautotrans/internal/store"
	"github.com/subautotrans/subautotrans/internal/task"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func enqueue(t *testing.T, s *store.Store, path string) int64 {
	t.Helper()
	id, err := s.CreateTask(context.Background(), &task.Task{
		FilePath:       path,
		FileName:       filepath.Base(path),
		Status:         task.StatusPending,
		TargetLanguage: "Chinese",
		Provider:       "openai",
	})
	require.NoError(t, err)
	return id
}

func newFastQueue(s *store.Store, workers int) *Queue {
	q := NewQueue(s, workers)
	q.pollInterval = 10 * time.Millisecond
	return q
}

func requireStatus(t *testing.T, s *store.Store, id int64, want task.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, err := s.TaskStatus(context.Background(), id)
		return err == nil && got == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueue_ProcessesTasksToCompletion(t *testing.T) {
	s := newTestStore(t)
	q := newFastQueue(s, 2)

	var mu sync.Mutex
	var handled []int64
	q.Start(func(_ context.Context, taskID int64) error {
		mu.Lock()
		handled = append(handled, taskID)
		mu.Unlock()
		return nil
	})
	defer q.Stop()

	a := enqueue(t, s, "/media/a.srt")
	b := enqueue(t, s, "/media/b.srt")

	requireStatus(t, s, a, task.StatusCompleted)
	requireStatus(t, s, b, task.StatusCompleted)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []int64{a, b}, handled)
}

func TestQueue_MarksFailedWithHandlerError(t *testing.T) {
	s := newTestStore(t)
	q := newFastQueue(s, 1)

	q.Start(func(_ context.Context, _ int64) error {
		return assert.AnError
	})
	defer q.Stop()

	id := enqueue(t, s, "/media/a.srt")
	requireStatus(t, s, id, task.StatusFailed)

	got, err := s.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, got.ErrorMessage, assert.AnError.Error())
}

func TestQueue_CancelledMidTaskStaysCancelled(t *testing.T) {
	s := newTestStore(t)
	q := newFastQueue(s, 1)

	started := make(chan int64, 1)
	release := make(chan struct{})
	q.Start(func(_ context.Context, taskID int64) error {
		started <- taskID
		<-release
		return nil
	})
	defer q.Stop()

	id := enqueue(t, s, "/media/a.srt")

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the task")
	}

	action, err := s.CancelOrDelete(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "cancelled", action)
	close(release)

	// The worker must observe the cancellation and leave it alone.
	time.Sleep(100 * time.Millisecond)
	status, err := s.TaskStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCancelled, status)
}

func TestQueue_ProgressObserverSeesUpdates(t *testing.T) {
	s := newTestStore(t)
	q := newFastQueue(s, 1)

	var mu sync.Mutex
	var seen []int
	q.OnProgress(func(_ int64, progress int) {
		mu.Lock()
		seen = append(seen, progress)
		mu.Unlock()
	})

	q.Start(func(ctx context.Context, taskID int64) error {
		return q.UpdateProgress(ctx, taskID, 50)
	})
	defer q.Stop()

	id := enqueue(t, s, "/media/a.srt")
	requireStatus(t, s, id, task.StatusCompleted)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, 50)
	assert.Contains(t, seen, 100)
}

func TestQueue_StatusObserverSeesLifecycle(t *testing.T) {
	s := newTestStore(t)
	q := newFastQueue(s, 1)

	var mu sync.Mutex
	var seen []task.Status
	q.OnStatusChange(func(_ int64, status task.Status) {
		mu.Lock()
		seen = append(seen, status)
		mu.Unlock()
	})

	q.Start(func(_ context.Context, _ int64) error { return nil })
	defer q.Stop()

	id := enqueue(t, s, "/media/a.srt")
	requireStatus(t, s, id, task.StatusCompleted)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, task.StatusProcessing, seen[0])
	assert.Equal(t, task.StatusCompleted, seen[len(seen)-1])
}

func TestQueue_PanickingObserverDoesNotKillWorker(t *testing.T) {
	s := newTestStore(t)
	q := newFastQueue(s, 1)

	q.OnStatusChange(func(_ int64, _ task.Status) {
		panic("bad observer")
	})
	q.Start(func(_ context.Context, _ int64) error { return nil })
	defer q.Stop()

	id := enqueue(t, s, "/media/a.srt")
	requireStatus(t, s, id, task.StatusCompleted)
}

func TestQueue_SetWorkerCount_ShrinkAndGrow(t *testing.T) {
	s := newTestStore(t)
	q := newFastQueue(s, 3)

	q.Start(func(_ context.Context, _ int64) error { return nil })
	defer q.Stop()

	q.SetWorkerCount(1)
	assert.Equal(t, 1, q.WorkerCount())

	// The pool still drains work after shrinking and growing again.
	q.SetWorkerCount(2)
	id := enqueue(t, s, "/media/a.srt")
	requireStatus(t, s, id, task.StatusCompleted)
}

func TestQueue_StopLeavesInFlightProcessing(t *testing.T) {
	s := newTestStore(t)
	q := newFastQueue(s, 1)

	started := make(chan struct{})
	q.Start(func(ctx context.Context, _ int64) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	id := enqueue(t, s, "/media/a.srt")
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the task")
	}

	q.Stop()

	status, err := s.TaskStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusProcessing, status)

	orphans, err := s.OrphanedProcessing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, orphans)
}
