// Package parallel fans primitive work out over a fixed set of goroutines.
package parallel

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// PanicHandler receives the value recovered from a panicking work item
// together with the goroutine stack at the point of the panic.
type PanicHandler func(recovered any, stack []byte)

// WorkerPool is a pool of goroutines for parallel primitive sync.
//
// Each worker owns a queue; a worker whose queue is empty steals from the
// others, which keeps the pool busy when a few primitives are much slower
// to sync than the rest.
//
// A panic in one work item is recovered, passed to the pool's PanicHandler
// and does not stop the other items or the worker.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers    int
	workQueues []chan func()
	done       chan struct{}
	wg         sync.WaitGroup
	running    atomic.Bool

	onPanic PanicHandler
	panics  atomic.Uint64
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
// A nil onPanic discards recovered panics after counting them.
func NewWorkerPool(workers int, onPanic PanicHandler) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
		onPanic:    onPanic,
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.workQueues[id]
	for {
		select {
		case <-p.done:
			p.drainQueue(myQueue)
			return
		case work := <-myQueue:
			p.run(work)
		default:
			if stolen := p.steal(id); stolen != nil {
				p.run(stolen)
				continue
			}
			select {
			case <-p.done:
				p.drainQueue(myQueue)
				return
			case work := <-myQueue:
				p.run(work)
			}
		}
	}
}

// run executes one work item, recovering a panic.
func (p *WorkerPool) run(work func()) {
	if work == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			if p.onPanic != nil {
				p.onPanic(r, debug.Stack())
			}
		}
	}()
	work()
}

func (p *WorkerPool) drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			p.run(work)
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// ExecuteAll distributes work across the workers and waits for every item
// to finish. It returns immediately when the pool is closed.
func (p *WorkerPool) ExecuteAll(work []func()) {
	if len(work) == 0 || !p.running.Load() {
		return
	}

	var completion sync.WaitGroup
	completion.Add(len(work))
	for i, fn := range work {
		wrapped := func() {
			defer completion.Done()
			fn()
		}
		select {
		case p.workQueues[i%p.workers] <- wrapped:
		case <-p.done:
			completion.Done()
		}
	}
	completion.Wait()
}

// ForEach calls fn(i) for every i in [0, n) on the pool and waits for all
// calls to return. Indices are grouped into contiguous batches so that
// cheap items do not pay one queue hop each.
func (p *WorkerPool) ForEach(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	batch := batchSize(n, p.workers)
	work := make([]func(), 0, (n+batch-1)/batch)
	for lo := 0; lo < n; lo += batch {
		hi := min(lo+batch, n)
		work = append(work, func() {
			for i := lo; i < hi; i++ {
				p.run(func() { fn(i) })
			}
		})
	}
	p.ExecuteAll(work)
}

// batchSize aims for about four batches per worker.
func batchSize(n, workers int) int {
	b := n / (workers * 4)
	return max(b, 1)
}

// Close stops the workers after the queued work has run.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int { return p.workers }

// IsRunning reports whether the pool still accepts work.
func (p *WorkerPool) IsRunning() bool { return p.running.Load() }

// Panics returns how many work items have panicked.
func (p *WorkerPool) Panics() uint64 { return p.panics.Load() }

// String implements fmt.Stringer.
func (p *WorkerPool) String() string {
	return fmt.Sprintf("WorkerPool(workers=%d, running=%t)", p.workers, p.IsRunning())
}
