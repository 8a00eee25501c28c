package engine

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher is the single goroutine that mutates live game state.
// Storage callbacks and timers hand their work to it through Post.
type Dispatcher struct {
	inbox chan func()
	done  chan struct{}

	executed atomic.Uint64
	panics   atomic.Uint64

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
}

// NewDispatcher creates a new dispatcher instance.
func NewDispatcher(inboxSize int) *Dispatcher {
	return &Dispatcher{
		inbox:  make(chan func(), inboxSize),
		done:   make(chan struct{}),
		timers: make(map[*time.Timer]struct{}),
	}
}

// Post queues task for the dispatcher goroutine. Tasks posted after the
// dispatcher stopped are dropped.
func (d *Dispatcher) Post(task func()) {
	select {
	case <-d.done:
		return
	default:
	}

	select {
	case d.inbox <- task:
	case <-d.done:
	}
}

// ScheduleOnce posts task after delay.
func (d *Dispatcher) ScheduleOnce(delay time.Duration, task func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.timers, timer)
		d.mu.Unlock()
		d.Post(task)
	})
	d.timers[timer] = struct{}{}
}

// Run starts the main loop. This MUST be run in a single goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("Dispatcher started (single mutation goroutine)")
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Dispatcher stopping...")
			d.drain()
			return
		case task := <-d.inbox:
			d.execute(task)
		}
	}
}

// drain runs tasks that were already queued when the context ended.
func (d *Dispatcher) drain() {
	for {
		select {
		case task := <-d.inbox:
			d.execute(task)
		default:
			return
		}
	}
}

func (d *Dispatcher) stop() {
	close(d.done)

	d.mu.Lock()
	defer d.mu.Unlock()
	for timer := range d.timers {
		timer.Stop()
		delete(d.timers, timer)
	}
}

// execute runs one task. A panicking task is logged and the loop continues.
func (d *Dispatcher) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
	}()

	task()
	d.executed.Add(1)
}

// Executed returns how many tasks completed without panicking.
func (d *Dispatcher) Executed() uint64 {
	return d.executed.Load()
}

// Panics returns how many tasks panicked.
func (d *Dispatcher) Panics() uint64 {
	return d.panics.Load()
}

// PendingTimers returns the number of armed ScheduleOnce timers.
func (d *Dispatcher) PendingTimers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}
