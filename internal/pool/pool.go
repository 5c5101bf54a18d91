// Package pool implements a fixed-size worker pool over an unbounded
// FIFO task queue.
//
// Submission never blocks: tasks queue until a worker is free. Within
// one worker tasks run in FIFO order; across workers there is no
// ordering guarantee. Drain lets a caller wait for the pool to go
// idle, which the aggregation engine exposes as "all submitted images
// have been processed".
package pool

import (
	"errors"
	"fmt"
	"sync"
)

// ErrStopped is returned by Submit after Stop has begun.
var ErrStopped = errors.New("pool: stopped")

// Task is one unit of work.
type Task func()

// Pool runs tasks on a fixed set of worker goroutines.
type Pool struct {
	mu       sync.Mutex
	notEmpty *sync.Cond // workers wait here for tasks
	idle     *sync.Cond // Drain waits here for queue empty and no task in flight
	queue    []Task
	active   int // tasks currently executing
	stopped  bool

	wg sync.WaitGroup
}

// New creates a pool with n workers.
func New(n int) (*Pool, error) {
	if n <= 0 {
		return nil, fmt.Errorf("pool: worker count %d must be positive", n)
	}

	p := &Pool{}
	p.notEmpty = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.run()
	}
	return p, nil
}

// Submit enqueues a task and returns immediately. Returns ErrStopped
// once Stop has begun; the task is not enqueued in that case.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("pool: nil task")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	p.queue = append(p.queue, task)
	p.notEmpty.Signal()
	return nil
}

// Drain blocks until the queue is empty and all in-flight tasks have
// returned. Calling Drain on an idle pool returns immediately.
func (p *Pool) Drain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) > 0 || p.active > 0 {
		p.idle.Wait()
	}
}

// Stop signals workers to exit after their current task and joins
// them. Tasks still queued are discarded, never run. Stop panics when
// called twice: stopping a stopped pool is a programming error.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		panic("pool: Stop called twice")
	}
	p.stopped = true
	p.queue = nil
	p.notEmpty.Broadcast()
	p.idle.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

// run is the worker loop. A task that panics takes its worker down
// with it; the pool's queue and counters stay consistent because the
// bookkeeping happens before and after the call under the lock.
func (p *Pool) run() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopped {
			p.notEmpty.Wait()
		}
		if p.stopped {
			p.mu.Unlock()
			return
		}

		task := p.queue[0]
		p.queue = p.queue[1:]
		p.active++
		p.mu.Unlock()

		p.execute(task)
	}
}

// execute runs one task and releases its in-flight slot even when the
// task panics.
func (p *Pool) execute(task Task) {
	defer func() {
		p.mu.Lock()
		p.active--
		if len(p.queue) == 0 && p.active == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}()

	task()
}
