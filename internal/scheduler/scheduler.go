// Package scheduler runs one-shot deferred jobs. Jobs are fire-and-forget:
// once armed they always fire, except when the process shuts down.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/victorivanov/huddle/internal/metrics"
)

var ErrClosed = errors.New("scheduler: closed")

// Job is the deferred work. It receives a context that is cancelled when
// the scheduler shuts down.
type Job func(ctx context.Context)

// Scheduler arms Jobs against a Clock. Each job runs on its own timer
// goroutine, so one slow job never delays another.
type Scheduler struct {
	clock   Clock
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	nextID  uint64
	timers  map[uint64]Timer
	closed  bool
	running sync.WaitGroup
}

func New(clock Clock, m *metrics.Metrics) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:   clock,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[uint64]Timer),
	}
}

// Now returns the scheduler clock's current time.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// At arms job to run at fireAt. A fireAt in the past runs as soon as the
// clock allows. name labels the job in logs and metrics.
func (s *Scheduler) At(name string, fireAt time.Time, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.nextID++
	id := s.nextID
	delay := fireAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}

	s.running.Add(1)
	s.timers[id] = s.clock.AfterFunc(delay, func() {
		defer s.running.Done()
		s.mu.Lock()
		_, live := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()
		if !live {
			return
		}
		s.run(name, job)
	})
	s.metrics.JobScheduled(name)
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduled job panicked", "job", name, "panic", r)
		}
	}()
	s.metrics.JobFired(name)
	job(s.ctx)
}

// Pending returns the number of armed jobs that have not started.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Shutdown stops every unfired timer and waits for running jobs to return
// or ctx to expire. Stopped jobs are dropped; there is no persistence.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	dropped := 0
	for id, t := range s.timers {
		if t.Stop() {
			s.running.Done()
			dropped++
			s.metrics.JobDropped()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if dropped > 0 {
		slog.Warn("scheduler shutting down with pending jobs", "dropped", dropped)
	}

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}
