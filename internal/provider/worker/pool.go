// Package worker implements the aio.Provider backed by a bounded pool
// of goroutines that run blocking preadv/pwritev/fsync syscalls.
package worker

import (
	"log"
	"runtime/debug"
	"sync/atomic"
)

// pool is a bounded worker-goroutine pool with channel-based
// backpressure, grounded on cloudwego-gopkg's concurrency/gopool.GoPool:
// a fixed task channel, a fixed set of workers that run until the
// channel is closed, and a
// fall-back to an ad-hoc goroutine when the channel is full rather than
// blocking the submitter. It is retargeted here to run synchronous I/O
// closures instead of arbitrary background tasks.
type pool struct {
	tasks   chan func()
	workers int32
	maxIdle int32
}

func newPool(size, queueDepth int) *pool {
	if size <= 0 {
		size = 1
	}
	if queueDepth <= 0 {
		queueDepth = size
	}
	p := &pool{
		tasks:   make(chan func(), queueDepth),
		maxIdle: int32(size),
	}
	for i := 0; i < size; i++ {
		go p.runWorker()
	}
	return p
}

// submit enqueues f, falling back to an unbounded goroutine if the
// queue is momentarily full rather than blocking the caller's
// submission path.
func (p *pool) submit(f func()) {
	select {
	case p.tasks <- f:
	default:
		go p.runTask(f)
	}
}

func (p *pool) runWorker() {
	atomic.AddInt32(&p.workers, 1)
	defer atomic.AddInt32(&p.workers, -1)
	for f := range p.tasks {
		p.runTask(f)
	}
}

func (p *pool) runTask(f func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("aio/worker: panic running I/O task: %v\n%s", r, debug.Stack())
		}
	}()
	f()
}

func (p *pool) close() {
	close(p.tasks)
}
