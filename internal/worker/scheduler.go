package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/fundraise-dialer/internal/pkg/logger"
)

// Job is a tick run on a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration
	Tick     TickFunc
}

// Scheduler runs jobs on their intervals for deployments without an
// external scheduler. The timers live here so the services stay pure
// Tick(now) functions. Ticks of one job never overlap inside a process;
// across processes the runner's lock keeps them apart.
type Scheduler struct {
	runner *Runner
	jobs   []Job

	// Stats
	ticks  int64
	errors int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewScheduler creates a scheduler for the given jobs.
func NewScheduler(runner *Runner, jobs ...Job) *Scheduler {
	return &Scheduler{runner: runner, jobs: jobs}
}

// Start begins one loop per job.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	for _, j := range s.jobs {
		if j.Interval <= 0 {
			s.mu.Unlock()
			return fmt.Errorf("job %s: interval must be positive", j.Name)
		}
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	for _, j := range s.jobs {
		logger.Info("scheduler starting job", "job", j.Name, "interval", j.Interval.String())
		s.wg.Add(1)
		go s.loop(j)
	}
	return nil
}

// Stop cancels the loops and waits for in-flight ticks to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	logger.Info("scheduler stopping")
	s.cancel()
	s.wg.Wait()
	logger.Info("scheduler stopped",
		"ticks", atomic.LoadInt64(&s.ticks), "errors", atomic.LoadInt64(&s.errors))
}

// Stats returns the number of ticks run and how many of them failed.
func (s *Scheduler) Stats() (ticks, errors int64) {
	return atomic.LoadInt64(&s.ticks), atomic.LoadInt64(&s.errors)
}

func (s *Scheduler) loop(j Job) {
	defer s.wg.Done()

	s.runOnce(j)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(j)
		}
	}
}

func (s *Scheduler) runOnce(j Job) {
	if s.ctx.Err() != nil {
		return
	}
	atomic.AddInt64(&s.ticks, 1)
	if _, err := s.runner.Run(s.ctx, j.Name, j.Tick); err != nil {
		atomic.AddInt64(&s.errors, 1)
	}
}
