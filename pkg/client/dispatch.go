package client

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Dispatcher pool defaults.
const (
	DefaultDispatchWorkers = 4
	DefaultDispatchQueue   = 64
)

// dispatcher runs push handlers on a bounded worker pool so a slow handler
// cannot stall delivery of the next inbound message and a push storm
// cannot spawn unbounded goroutines. When the queue is full the push is
// dropped; the caller decides how to account for it.
type dispatcher struct {
	jobs   chan func()
	logger *slog.Logger
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func newDispatcher(workers, queue int, logger *slog.Logger) *dispatcher {
	d := &dispatcher{
		jobs:   make(chan func(), queue),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.run(job)
	}
}

func (d *dispatcher) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	job()
}

// submit queues a job, reporting false if the queue is full or the
// dispatcher was stopped.
func (d *dispatcher) submit(job func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	select {
	case d.jobs <- job:
		return true
	default:
		return false
	}
}

// stop drains queued jobs and waits for the workers to finish.
func (d *dispatcher) stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.jobs)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
