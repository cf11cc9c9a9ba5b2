package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/grovetools/wsync/errors"
	"golang.org/x/sync/semaphore"
)

// Background runs each submission on its own goroutine. A positive limit
// bounds how many tasks run at once; waiting tasks queue in submission order.
type Background struct {
	ctx      context.Context
	cancel   context.CancelFunc
	sem      *semaphore.Weighted
	reporter StatusReporter

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewBackground creates a scheduler. limit <= 0 means unlimited.
func NewBackground(limit int, reporter StatusReporter) *Background {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Background{ctx: ctx, cancel: cancel, reporter: reporter}
	if limit > 0 {
		b.sem = semaphore.NewWeighted(int64(limit))
	}
	return b
}

// Submit schedules task. After Shutdown the handle fails immediately.
func (b *Background) Submit(name string, task Task) *Handle {
	h := newHandle(name)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		h.finish(errors.New(errors.ErrCodeInternal, "scheduler is shut down"))
		return h
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		if b.sem != nil {
			if err := b.sem.Acquire(b.ctx, 1); err != nil {
				// Cancelled by Shutdown while queued; the task never ran.
				err = errors.Wrap(err, errors.ErrCodeInternal, "task cancelled before it started")
				b.report(Status{TaskID: h.ID, Name: h.Name, Severity: SeverityError, Err: err, StartedAt: time.Now()})
				h.finish(err)
				return
			}
			defer b.sem.Release(1)
		}
		status := run(b.ctx, h, task)
		b.report(status)
		h.finish(status.Err)
	}()
	return h
}

func (b *Background) report(status Status) {
	if b.reporter != nil {
		b.reporter.Report(status)
	}
}

// Shutdown stops accepting tasks and waits for running ones. If ctx ends
// first, running tasks are cancelled and ctx's error is returned.
func (b *Background) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		<-done
		return ctx.Err()
	}
}

// Inline runs tasks synchronously inside Submit.
type Inline struct {
	Reporter StatusReporter
}

// Submit runs task to completion and returns its finished handle.
func (s *Inline) Submit(name string, task Task) *Handle {
	h := newHandle(name)
	status := run(context.Background(), h, task)
	if s.Reporter != nil {
		s.Reporter.Report(status)
	}
	h.finish(status.Err)
	return h
}
