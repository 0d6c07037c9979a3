package octoserve

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

var ErrPoolClosed = errors.New("octoserve: worker pool is closed")

// PoolStats is a point-in-time view of the pool counters.
type PoolStats struct {
	Workers   int    `json:"workers"`
	Active    int64  `json:"active"`
	Queued    int    `json:"queued"`
	Completed uint64 `json:"completed"`
	Panicked  uint64 `json:"panicked"`
}

// Pool runs submitted tasks on a fixed set of long-lived goroutines. The queue
// is unbounded: Submit never blocks and never rejects while the pool is open.
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	workers int
	wg      sync.WaitGroup

	active    atomic.Int64
	completed atomic.Uint64
	panicked  atomic.Uint64

	// OnPanic is called after a task panic has been recovered and logged.
	OnPanic func(recovered interface{})
}

// NewPool starts size workers. A size below one starts a single worker.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{workers: size}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(size)
	for i := range size {
		go p.worker(i)
	}
	return p
}

// Submit queues task for the next idle worker.
func (p *Pool) Submit(task func()) error {
	if task == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.queue = append(p.queue, task)
	p.mu.Unlock()
	p.cond.Signal()
	return nil
}

// Close stops the workers once their current task returns. Queued tasks are
// dropped.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	dropped := len(p.queue)
	p.queue = nil
	p.mu.Unlock()
	p.cond.Broadcast()

	if dropped > 0 {
		logger.Warn().Int("dropped", dropped).Msg("[octoserve] worker pool closed with queued connections")
	}
}

// Wait blocks until every worker has exited after Close.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	queued := len(p.queue)
	p.mu.Unlock()
	return PoolStats{
		Workers:   p.workers,
		Active:    p.active.Load(),
		Queued:    queued,
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}

func (p *Pool) next() (func(), bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.closed {
		return nil, false
	}
	task := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	if len(p.queue) == 0 {
		p.queue = nil
	}
	return task, true
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	logger.Debug().Int("worker", id).Msg("[octoserve] worker started")

	for {
		task, ok := p.next()
		if !ok {
			logger.Debug().Int("worker", id).Msg("[octoserve] worker stopped")
			return
		}
		p.run(task)
	}
}

// run executes one task. A panic is contained to the task.
func (p *Pool) run(task func()) {
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.completed.Add(1)
		if rec := recover(); rec != nil {
			p.panicked.Add(1)
			LogPanic(logger, rec, debug.Stack())
			if p.OnPanic != nil {
				p.OnPanic(rec)
			}
		}
	}()
	task()
}
