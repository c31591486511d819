// Package workerpool runs background jobs on a fixed set of goroutines.
//
// The pool is deliberately small and bounded: every job is queued on a
// single channel, each worker pulls one job at a time, and Close drains the
// queue before joining the workers. Nothing is ever dropped.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/httpmemfs/internal/logger"
	"golang.org/x/sync/errgroup"
)

// ErrPoolClosed is returned when submitting to a pool that has been closed.
var ErrPoolClosed = errors.New("worker pool is closed")

// Job kinds, used as metric labels.
const (
	KindSync  = "sync"
	KindAsync = "async"
)

// Options configure a Pool.
type Options struct {
	// Size is the number of workers. Must be at least 1.
	Size int

	// QueueSize is the capacity of the job queue. Submitters block once it
	// is full. Zero means an unbuffered queue.
	QueueSize int

	// Name prefixes log lines from this pool.
	Name string

	// Metrics receives job and occupancy updates. Nil disables collection.
	Metrics Metrics
}

type job struct {
	kind  string
	sync  func()
	async func(ctx context.Context) error
}

type worker struct {
	id     int
	busy   atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
}

// Pool is a fixed-size pool of workers fed by one queue.
type Pool struct {
	name    string
	queue   chan job
	workers []*worker
	group   errgroup.Group
	metrics Metrics

	closed   atomic.Bool
	submitMu sync.RWMutex
}

// New starts opts.Size workers and returns the pool.
func New(opts Options) (*Pool, error) {
	if opts.Size < 1 {
		return nil, fmt.Errorf("worker pool size must be at least 1, got %d", opts.Size)
	}
	if opts.QueueSize < 0 {
		return nil, fmt.Errorf("worker pool queue size must not be negative, got %d", opts.QueueSize)
	}

	name := opts.Name
	if name == "" {
		name = "pool"
	}

	p := &Pool{
		name:    name,
		queue:   make(chan job, opts.QueueSize),
		workers: make([]*worker, opts.Size),
		metrics: opts.Metrics,
	}
	if p.metrics == nil {
		p.metrics = noopMetrics{}
	}

	for i := range p.workers {
		ctx, cancel := context.WithCancel(context.Background())
		w := &worker{id: i, ctx: ctx, cancel: cancel}
		p.workers[i] = w
		p.group.Go(func() error {
			p.run(w)
			return nil
		})
	}

	logger.Debug("[%s] started %d workers (queue=%d)", name, opts.Size, opts.QueueSize)
	return p, nil
}

// Execute queues a fire-and-forget job.
//
// Blocks while the queue is full. Returns ErrPoolClosed after Close, or the
// context error if ctx ends before the job could be queued.
func (p *Pool) Execute(ctx context.Context, fn func()) error {
	return p.submit(ctx, job{kind: KindSync, sync: fn})
}

// ExecuteAsync queues a job that reports an error. The error is logged by
// the worker; it is never returned to the submitter. The job receives the
// worker's private context, which is cancelled only after the pool has
// drained.
func (p *Pool) ExecuteAsync(ctx context.Context, fn func(ctx context.Context) error) error {
	return p.submit(ctx, job{kind: KindAsync, async: fn})
}

func (p *Pool) submit(ctx context.Context, j job) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.closed.Load() {
		return ErrPoolClosed
	}

	select {
	case p.queue <- j:
		p.metrics.SetQueueDepth(len(p.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WorkingCount returns how many workers are running a job right now.
// It never exceeds Size.
func (p *Pool) WorkingCount() int {
	n := 0
	for _, w := range p.workers {
		if w.busy.Load() {
			n++
		}
	}
	return n
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Pending returns the number of queued jobs not yet picked up.
func (p *Pool) Pending() int {
	return len(p.queue)
}

// Close stops accepting jobs, lets the workers finish everything already
// queued and waits for them to exit. Safe to call more than once.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		p.group.Wait()
		return
	}

	// Waits for in-flight submitters so nobody sends on a closed channel.
	p.submitMu.Lock()
	close(p.queue)
	p.submitMu.Unlock()

	_ = p.group.Wait()
	logger.Debug("[%s] all workers stopped", p.name)
}

// CloseContext is Close bounded by ctx. While waiting it logs the number of
// busy workers once per second so a stalled shutdown can be diagnosed.
func (p *Pool) CloseContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil
		case <-ticker.C:
			logger.Info("[%s] waiting for %d busy workers (%d queued)", p.name, p.WorkingCount(), p.Pending())
		case <-ctx.Done():
			return fmt.Errorf("%s shutdown: %d workers still busy: %w", p.name, p.WorkingCount(), ctx.Err())
		}
	}
}

func (p *Pool) run(w *worker) {
	defer w.cancel()

	for j := range p.queue {
		p.metrics.SetQueueDepth(len(p.queue))
		w.busy.Store(true)
		p.metrics.SetBusyWorkers(p.WorkingCount())

		start := time.Now()
		err := p.invoke(w, j)
		p.metrics.ObserveJob(j.kind, time.Since(start), err)

		w.busy.Store(false)
		p.metrics.SetBusyWorkers(p.WorkingCount())
	}
}

func (p *Pool) invoke(w *worker, j job) error {
	if j.kind == KindSync {
		j.sync()
		return nil
	}

	if err := j.async(w.ctx); err != nil {
		logger.Warn("[%s] worker %d: async job failed: %v", p.name, w.id, err)
		return err
	}
	return nil
}
