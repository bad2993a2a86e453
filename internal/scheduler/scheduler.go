package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/pkg/logger"
)

// Job is one named unit of scheduled work. Run executes a single pass.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a bare function to the Job interface.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// Locker serializes a named job across instances. Acquire returns a
// release callback and true, or false when another holder owns the name.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(), bool)
}

type entry struct {
	job      Job
	interval time.Duration
	lastRun  time.Time
	running  bool
}

// Scheduler drives registered jobs from a single heartbeat: every tick it
// dispatches each job whose interval has elapsed, one invocation per job
// at a time. A slow pass makes its job skip ticks instead of stacking.
type Scheduler struct {
	heartbeat time.Duration
	lockTTL   time.Duration
	lock      Locker
	log       *zap.Logger

	mu      sync.Mutex
	entries []*entry
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a scheduler. lock may be nil in single-instance setups.
func New(heartbeat, lockTTL time.Duration, lock Locker) *Scheduler {
	return &Scheduler{
		heartbeat: heartbeat,
		lockTTL:   lockTTL,
		lock:      lock,
		log:       logger.Named("scheduler"),
	}
}

// Add registers a job with its invocation interval.
func (s *Scheduler) Add(job Job, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry{job: job, interval: interval})
}

// JobStatus is one job's snapshot for the ops surface.
type JobStatus struct {
	Name     string    `json:"name"`
	Interval string    `json:"interval"`
	LastRun  time.Time `json:"last_run"`
	Running  bool      `json:"running"`
}

// Jobs reports every registered job in registration order.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, JobStatus{
			Name:     e.job.Name(),
			Interval: e.interval.String(),
			LastRun:  e.lastRun,
			Running:  e.running,
		})
	}
	return out
}

// Start launches the heartbeat loop. Jobs with no prior run dispatch
// immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	jobs := len(s.entries)
	s.mu.Unlock()

	s.log.Info("🚀 Scheduler started",
		zap.Duration("heartbeat", s.heartbeat),
		zap.Int("jobs", jobs),
	)

	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.sweep(ctx, time.Now())

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("🛑 Scheduler stopping")
			return
		case now := <-ticker.C:
			s.sweep(ctx, now)
		}
	}
}

// sweep dispatches every due job. lastRun is stamped at dispatch, so an
// interval measures start to start.
func (s *Scheduler) sweep(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.running || now.Sub(e.lastRun) < e.interval {
			continue
		}
		e.running = true
		e.lastRun = now
		s.wg.Add(1)
		go s.dispatch(ctx, e)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, e *entry) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		e.running = false
		s.mu.Unlock()
	}()

	name := e.job.Name()
	if s.lock != nil {
		release, ok := s.lock.Acquire(ctx, name, s.lockTTL)
		if !ok {
			s.log.Debug("job held elsewhere, skipping", zap.String("job", name))
			return
		}
		defer release()
	}

	started := time.Now()
	if err := e.job.Run(ctx); err != nil {
		// Continue despite error: one failing job never stops the others.
		s.log.Error("job execution failed",
			zap.String("job", name),
			zap.Error(err),
		)
		return
	}
	s.log.Debug("job complete",
		zap.String("job", name),
		zap.Duration("took", time.Since(started)),
	)
}

// Stop cancels the heartbeat and waits for in-flight jobs.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("✅ Scheduler stopped gracefully")
	case <-time.After(timeout):
		s.log.Warn("⚠️ Scheduler stop timeout")
	}
}
