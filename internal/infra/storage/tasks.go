package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrTasksStopped is returned to callbacks of tasks added after Stop.
var ErrTasksStopped = errors.New("storage tasks stopped")

type dbTask struct {
	query    func(ctx context.Context) error
	callback func(err error)
}

// Tasks runs storage queries on a dedicated goroutine so the simulation
// goroutine never blocks on the database. Completion callbacks are handed to
// post, which must run them on the simulation goroutine.
type Tasks struct {
	queue chan dbTask
	post  func(func())

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewTasks creates a task queue. post delivers callbacks to the simulation
// goroutine; pass a direct call in tests.
func NewTasks(queueSize int, post func(func())) *Tasks {
	return &Tasks{
		queue: make(chan dbTask, queueSize),
		post:  post,
	}
}

// Start launches the worker goroutine. Queries keep ctx's values but not its
// cancellation: work queued before Stop is still written after ctx is done.
func (t *Tasks) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(context.WithoutCancel(ctx))
	t.wg.Add(1)
	go t.run(ctx)
}

func (t *Tasks) run(ctx context.Context) {
	defer t.wg.Done()
	for task := range t.queue {
		t.execute(ctx, task)
	}
}

func (t *Tasks) execute(ctx context.Context, task dbTask) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("STORAGE_TASK_PANIC", slog.Any("panic", r))
				err = errors.New("storage task panicked")
			}
		}()
		return task.query(ctx)
	}()

	if err != nil {
		slog.Warn("Storage task failed", slog.Any("error", err))
	}
	if task.callback == nil {
		return
	}
	t.post(func() { task.callback(err) })
}

// AddTask queues query. callback (optional) receives the query's error on
// the simulation goroutine. Queries are executed in submission order.
func (t *Tasks) AddTask(query func(ctx context.Context) error, callback func(err error)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		if callback != nil {
			t.post(func() { callback(ErrTasksStopped) })
		}
		return
	}
	t.queue <- dbTask{query: query, callback: callback}
}

// Stop refuses new tasks, drains the queue and waits for the worker.
func (t *Tasks) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	close(t.queue)
	t.mu.Unlock()

	t.wg.Wait()
	if t.cancel != nil {
		t.cancel()
	}
}
