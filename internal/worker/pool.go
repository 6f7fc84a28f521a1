package worker

import (
	"context"
	"sync"
)

// Job is a unit of work run by the pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a job produced
type Result interface {
	GetError() error
}

type indexedJob struct {
	index int
	job   Job
}

type indexedResult struct {
	index  int
	result Result
}

// Pool runs jobs on a fixed number of goroutines and hands the results back
// in submission order
type Pool struct {
	workers   int
	jobQueue  chan indexedJob
	results   chan indexedResult
	submitted int
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPool creates a pool bound to ctx. Cancelling ctx stops the workers.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:  workers,
		jobQueue: make(chan indexedJob, workers*2),
		results:  make(chan indexedResult, workers*2),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			res := indexedResult{index: job.index, result: job.job.Execute(p.ctx)}
			select {
			case p.results <- res:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. It returns false if the pool was shut down first.
// Submit must not be called concurrently with Wait.
func (p *Pool) Submit(job Job) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- indexedJob{index: p.submitted, job: job}:
		p.submitted++
		return true
	}
}

// Wait closes the queue, waits for every job and returns results in submission
// order. Jobs that never ran because the pool was cancelled have a nil result.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)

	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	ordered := make([]Result, p.submitted)
	for res := range p.results {
		ordered[res.index] = res.result
	}
	p.cancel()
	return ordered
}

// Shutdown stops the pool without waiting for queued jobs
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
