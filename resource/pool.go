package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by Run after Close.
var ErrPoolClosed = errors.New("resource: pool closed")

// TaskError reports the failure of one indexed task.
type TaskError struct {
	Index int
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d: %v", e.Index, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Pool is a fixed set of worker goroutines shared by every Run call.
//
// Pools are created explicitly and passed to the components that need them;
// there is no package-level pool. Close stops the workers.
type Pool struct {
	workers int
	logger  *slog.Logger

	workCh   chan func()
	wg       sync.WaitGroup
	closed   atomic.Bool
	submitMu sync.RWMutex
}

// NewPool starts a pool of workers goroutines. workers <= 0 means
// runtime.GOMAXPROCS(0). logger may be nil.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		workers: workers,
		logger:  logger,
		workCh:  make(chan func(), workers*2),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return p.workers }

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.workCh {
		task()
	}
}

// Run executes fn for every index in [0, n) and waits for all of them.
//
// A failing or panicking task is logged and recorded; it is not retried and
// does not cancel its siblings. The returned error joins every *TaskError in
// index order. If ctx is canceled, tasks not yet started are skipped and
// reported with ctx.Err().
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}

	p.submitMu.RLock()
	defer p.submitMu.RUnlock()
	if p.closed.Load() {
		return ErrPoolClosed
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		task := func() {
			defer wg.Done()
			errs[i] = p.runTask(ctx, i, fn)
		}
		select {
		case p.workCh <- task:
		case <-ctx.Done():
			for j := i; j < n; j++ {
				errs[j] = &TaskError{Index: j, Err: ctx.Err()}
				wg.Done()
			}
			wg.Wait()
			return joinTaskErrors(errs)
		}
	}
	wg.Wait()
	return joinTaskErrors(errs)
}

func (p *Pool) runTask(ctx context.Context, i int, fn func(context.Context, int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TaskError{Index: i, Err: &PanicError{Value: r}}
		}
		if err != nil && p.logger != nil {
			p.logger.Error("task failed", slog.Int("task", i), slog.String("error", err.Error()))
		}
	}()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return &TaskError{Index: i, Err: ctxErr}
	}
	if err := fn(ctx, i); err != nil {
		return &TaskError{Index: i, Err: err}
	}
	return nil
}

func joinTaskErrors(errs []error) error {
	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	return errors.Join(failed...)
}

// Close waits for queued tasks and stops the workers. It is idempotent.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.submitMu.Lock()
	close(p.workCh)
	p.submitMu.Unlock()
	p.wg.Wait()
}
