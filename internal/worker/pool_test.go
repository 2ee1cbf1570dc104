package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countedResult struct {
	err error
}

func (r *countedResult) GetError() error { return r.err }

type countedJob struct {
	executed  *int32
	duration  time.Duration
	shouldErr bool
}

func (j *countedJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &countedResult{err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &countedResult{err: errors.New("job error")}
	}
	return &countedResult{}
}

func TestNewPool_MinimumOneWorker(t *testing.T) {
	if p := NewPool(0); p.workers != 1 {
		t.Errorf("zero workers should default to 1, got %d", p.workers)
	}
	if p := NewPool(-3); p.workers != 1 {
		t.Errorf("negative workers should default to 1, got %d", p.workers)
	}
}

func TestPool_ExecutesEveryJob(t *testing.T) {
	pool := NewPool(3)
	pool.Start()

	var executed int32
	const jobs = 10
	for i := 0; i < jobs; i++ {
		pool.Submit(&countedJob{executed: &executed})
	}

	results := pool.Wait()
	if len(results) != jobs {
		t.Errorf("expected %d results, got %d", jobs, len(results))
	}
	if got := atomic.LoadInt32(&executed); got != jobs {
		t.Errorf("expected %d executions, got %d", jobs, got)
	}
}

func TestPool_ManyJobsQueuedBeforeWait(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	const jobs = 100
	var executed int32
	done := make(chan []Result)
	go func() {
		for i := 0; i < jobs; i++ {
			pool.Submit(&countedJob{executed: &executed})
		}
		done <- pool.Wait()
	}()

	select {
	case results := <-done:
		if len(results) != jobs {
			t.Errorf("expected %d results, got %d", jobs, len(results))
		}
		if got := atomic.LoadInt32(&executed); got != jobs {
			t.Errorf("expected %d executions, got %d", jobs, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool stalled with jobs queued far beyond worker capacity")
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const workers = 4
	pool := NewPool(workers)
	pool.Start()

	var current, peak int32
	for i := 0; i < workers*4; i++ {
		pool.Submit(jobFunc(func(ctx context.Context) Result {
			n := atomic.AddInt32(&current, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return &countedResult{}
		}))
	}
	pool.Wait()

	if p := atomic.LoadInt32(&peak); p > workers {
		t.Errorf("peak concurrency %d exceeded %d workers", p, workers)
	}
}

type jobFunc func(ctx context.Context) Result

func (f jobFunc) Execute(ctx context.Context) Result { return f(ctx) }

func TestPool_ReportsJobErrors(t *testing.T) {
	pool := NewPool(2)
	pool.Start()
	pool.Submit(&countedJob{shouldErr: true})
	pool.Submit(&countedJob{})

	failed := 0
	for _, r := range pool.Wait() {
		if r.GetError() != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 failed job, got %d", failed)
	}
}

func TestPool_SubmitAfterShutdownDoesNotBlock(t *testing.T) {
	pool := NewPool(2)
	pool.Start()
	pool.Shutdown()

	done := make(chan struct{})
	go func() {
		pool.Submit(&countedJob{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked after shutdown")
	}
}

func TestPool_ShutdownCancelsInFlightWork(t *testing.T) {
	pool := NewPool(1)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(jobFunc(func(ctx context.Context) Result {
		close(started)
		<-ctx.Done()
		return &countedResult{err: ctx.Err()}
	}))
	<-started

	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not cancel in-flight work")
	}
}
