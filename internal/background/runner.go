package background

import (
	"context"
	"sync"

	"github.com/PrudhviKosuri/Rival-Scan/internal/logger"
)

// Task is one unit of fire-and-forget work.
type Task struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Runner executes detached tasks on a fixed worker pool. Task errors are
// logged and swallowed; they never resurface to the submitter.
type Runner struct {
	tasks chan Task
	wg    sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewRunner builds and starts a runner.
func NewRunner(queueSize, workers int) *Runner {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 2
	}
	r := &Runner{tasks: make(chan Task, queueSize)}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for task := range r.tasks {
		if err := task.Fn(context.Background()); err != nil {
			logger.Logger.Warn().Err(err).
				Str("task", task.Name).
				Msg("Background task failed")
		}
	}
}

// Submit enqueues a task. When the queue is saturated the task runs inline
// on the caller's goroutine rather than being dropped.
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		logger.Logger.Warn().Str("task", name).Msg("Runner stopped, discarding task")
		return
	}
	select {
	case r.tasks <- Task{Name: name, Fn: fn}:
		r.mu.Unlock()
	default:
		r.mu.Unlock()
		logger.Logger.Debug().Str("task", name).Msg("Task queue full, running inline")
		if err := fn(context.Background()); err != nil {
			logger.Logger.Warn().Err(err).Str("task", name).Msg("Background task failed")
		}
	}
}

// Stop drains queued tasks and waits for workers to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.tasks)
	r.mu.Unlock()
	r.wg.Wait()
}
