package pools

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// Task represents a unit of work
type Task func()

// ErrPoolClosed is returned by Submit after Close has been called
var ErrPoolClosed = errors.New("pools: worker pool closed")

// DefaultQueueSize is the per-worker backlog used when none is given
const DefaultQueueSize = 256

// WorkerPool runs tasks on a fixed set of goroutines fed from one shared
// bounded queue, so whichever worker is idle takes the next task. A task
// occupies its worker until it returns.
type WorkerPool struct {
	numWorkers int
	tasks      chan Task

	// mu orders Submit against Close so no task is sent on a closed queue
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	// PanicHandler, when set, receives the value of a recovered task panic
	PanicHandler func(v any)

	// Statistics
	stats struct {
		tasksSubmitted atomic.Uint64
		tasksCompleted atomic.Uint64
		tasksPanicked  atomic.Uint64
		submitsBlocked atomic.Uint64
		busy           atomic.Int64
	}
}

// NewWorkerPool creates a pool with numWorkers workers and room for
// numWorkers*queueSize pending tasks. Non-positive values select defaults.
func NewWorkerPool(numWorkers, queueSize int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	pool := &WorkerPool{
		numWorkers: numWorkers,
		tasks:      make(chan Task, numWorkers*queueSize),
	}

	pool.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go pool.worker()
	}

	return pool
}

// Submit queues task for the next idle worker. When the queue is full
// Submit blocks until a worker makes room. The task is never run on the
// caller's goroutine.
func (p *WorkerPool) Submit(task Task) error {
	if task == nil {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	p.stats.tasksSubmitted.Add(1)
	select {
	case p.tasks <- task:
		return nil
	default:
	}

	// Queue full
	p.stats.submitsBlocked.Add(1)
	p.tasks <- task
	return nil
}

// worker is the main loop for a worker goroutine
func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for task := range p.tasks {
		p.execute(task)
	}
}

// execute runs task, containing any panic to the task itself
func (p *WorkerPool) execute(task Task) {
	p.stats.busy.Add(1)
	defer func() {
		p.stats.busy.Add(-1)
		p.stats.tasksCompleted.Add(1)
		if v := recover(); v != nil {
			p.stats.tasksPanicked.Add(1)
			if p.PanicHandler != nil {
				p.PanicHandler(v)
			}
		}
	}()

	task()
}

// Close stops accepting tasks and blocks until every queued and running
// task has finished.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// Stats returns pool statistics
func (p *WorkerPool) Stats() WorkerPoolStats {
	submitted := p.stats.tasksSubmitted.Load()
	completed := p.stats.tasksCompleted.Load()
	pending := uint64(0)
	if submitted > completed {
		pending = submitted - completed
	}
	return WorkerPoolStats{
		NumWorkers:     p.numWorkers,
		Busy:           int(p.stats.busy.Load()),
		TasksSubmitted: submitted,
		TasksCompleted: completed,
		TasksPending:   pending,
		TasksPanicked:  p.stats.tasksPanicked.Load(),
		SubmitsBlocked: p.stats.submitsBlocked.Load(),
	}
}

// WorkerPoolStats contains pool statistics
type WorkerPoolStats struct {
	NumWorkers     int
	Busy           int
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksPending   uint64
	TasksPanicked  uint64
	// SubmitsBlocked counts submissions that waited for queue space
	SubmitsBlocked uint64
}
