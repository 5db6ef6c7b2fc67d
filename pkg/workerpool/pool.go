// Package workerpool provides a bounded goroutine pool. The port sweep
// submits one dial per port; the pool caps how many run at once.
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool runs submitted tasks on a fixed set of worker goroutines.
// Workers start lazily on first submit.
type Pool struct {
	workers int32
	running int32
	closed  int32
	tasks   chan func()
	wg      sync.WaitGroup
}

// New creates a pool with the given worker count. Non-positive counts
// fall back to GOMAXPROCS.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		workers: int32(workers),
		tasks:   make(chan func(), workers),
	}
}

// Submit queues a task. Blocks when the queue is full and every worker
// is busy. Returns false if the pool is closed.
func (p *Pool) Submit(task func()) bool {
	if task == nil || atomic.LoadInt32(&p.closed) == 1 {
		return false
	}

	for {
		running := atomic.LoadInt32(&p.running)
		if running >= p.workers {
			break
		}
		if atomic.CompareAndSwapInt32(&p.running, running, running+1) {
			p.wg.Add(1)
			go p.worker()
			break
		}
	}

	p.tasks <- task
	return true
}

func (p *Pool) worker() {
	defer func() {
		if r := recover(); r != nil && atomic.LoadInt32(&p.closed) == 0 {
			// Replace ourselves so a panicking task does not shrink
			// the pool. Counters carry over to the replacement.
			go p.worker()
			return
		}
		atomic.AddInt32(&p.running, -1)
		p.wg.Done()
	}()

	for task := range p.tasks {
		task()
	}
}

// Running returns the current worker count.
func (p *Pool) Running() int {
	return int(atomic.LoadInt32(&p.running))
}

// Cap returns the configured worker limit.
func (p *Pool) Cap() int {
	return int(atomic.LoadInt32(&p.workers))
}

// Close drains queued tasks and waits for workers to exit. Safe to call
// more than once.
func (p *Pool) Close() {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return
	}
	close(p.tasks)
	p.wg.Wait()
}
