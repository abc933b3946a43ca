// Package parallel runs compute dispatches on CPU worker goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool executes batches of tasks on a fixed set of goroutines.
//
// Each worker owns a queue. A worker whose queue is empty steals from the
// others, so a batch with uneven task costs (rows of a dispatch that hit
// more geometry) still finishes evenly.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewWorkerPool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	depth := max(workers*4, 8)

	p := &WorkerPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan func(), depth)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.run(i)
	}
	return p
}

func (p *WorkerPool) run(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case <-p.done:
			drain(own)
			return
		case task := <-own:
			task()
			continue
		default:
		}

		if task := p.steal(id); task != nil {
			task()
			continue
		}

		select {
		case <-p.done:
			drain(own)
			return
		case task := <-own:
			task()
		}
	}
}

func drain(q chan func()) {
	for {
		select {
		case task := <-q:
			task()
		default:
			return
		}
	}
}

// steal takes one task from another worker's queue, or returns nil.
func (p *WorkerPool) steal(id int) func() {
	for i := 1; i < p.workers; i++ {
		select {
		case task := <-p.queues[(id+i)%p.workers]:
			return task
		default:
		}
	}
	return nil
}

// ExecuteAll runs every task and waits for all of them.
// If the pool is closed, tasks run on the calling goroutine.
func (p *WorkerPool) ExecuteAll(tasks []func()) {
	if len(tasks) == 0 {
		return
	}
	if !p.running.Load() {
		for _, task := range tasks {
			task()
		}
		return
	}

	var batch sync.WaitGroup
	batch.Add(len(tasks))
	for i, task := range tasks {
		wrapped := func() {
			defer batch.Done()
			task()
		}
		select {
		case p.queues[i%p.workers] <- wrapped:
		case <-p.done:
			wrapped()
		}
	}
	batch.Wait()
}

// Dispatch calls fn once for every workgroup ID in a x*y*z grid and waits.
// Workgroups of one row (same y and z) run as a single task.
func (p *WorkerPool) Dispatch(x, y, z uint32, fn func(group [3]uint32)) {
	if x == 0 || y == 0 || z == 0 {
		return
	}
	tasks := make([]func(), 0, int(y)*int(z))
	for gz := range z {
		for gy := range y {
			tasks = append(tasks, func() {
				for gx := range x {
					fn([3]uint32{gx, gy, gz})
				}
			})
		}
	}
	p.ExecuteAll(tasks)
}

// Close stops the workers after the queued tasks finish.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool accepts work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}
