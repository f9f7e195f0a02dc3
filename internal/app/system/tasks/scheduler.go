// internal/app/system/tasks/scheduler.go
package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tradeya/tradeya/internal/app/system/metrics"
	"go.uber.org/zap"
)

var (
	// ErrUnknownJob is returned by RunNow for a job that was never added.
	ErrUnknownJob = errors.New("unknown job")
	// ErrJobBusy is returned by RunNow while the job is already running.
	ErrJobBusy = errors.New("job is already running")
)

// Job is a named unit of background work run every Interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs Jobs on a cron clock. A job never overlaps itself: a tick
// that fires while the job is running is skipped, and RunNow reports
// ErrJobBusy.
type Scheduler struct {
	cron    *cron.Cron
	log     *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	jobs    map[string]Job
	running map[string]*atomic.Bool
}

// NewScheduler creates a scheduler. Each run gets a context bounded by timeout.
func NewScheduler(logger *zap.Logger, timeout time.Duration) *Scheduler {
	clog := cronLogger{log: logger.Sugar()}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(clog),
			cron.SkipIfStillRunning(clog),
		)),
		log:     logger,
		timeout: timeout,
		jobs:    make(map[string]Job),
		running: make(map[string]*atomic.Bool),
	}
}

// Add registers j. Jobs must have a unique name and a positive interval.
func (s *Scheduler) Add(j Job) error {
	if j.Name == "" || j.Run == nil {
		return fmt.Errorf("tasks: job needs a name and a Run func")
	}
	if j.Interval <= 0 {
		return fmt.Errorf("tasks: job %q: interval must be positive", j.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[j.Name]; dup {
		return fmt.Errorf("tasks: job %q already added", j.Name)
	}
	if _, err := s.cron.AddFunc("@every "+j.Interval.String(), func() { s.run(j) }); err != nil {
		return fmt.Errorf("tasks: schedule %q: %w", j.Name, err)
	}
	s.jobs[j.Name] = j
	s.running[j.Name] = new(atomic.Bool)
	return nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.mu.Lock()
	n := len(s.jobs)
	s.mu.Unlock()
	s.log.Info("task scheduler started", zap.Int("jobs", n))
}

// Stop stops scheduling and waits for running jobs to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("task scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("task scheduler stop timed out; jobs still running")
		return ctx.Err()
	}
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name     string `json:"name"`
	Interval string `json:"interval"`
}

// Jobs lists the registered jobs by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, JobInfo{Name: j.Name, Interval: j.Interval.String()})
	}
	s.mu.Unlock()
	slices.SortFunc(out, func(a, b JobInfo) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// RunNow runs the named job synchronously and returns its error.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, j)
}

func (s *Scheduler) run(j Job) {
	if err := s.execute(context.Background(), j); errors.Is(err, ErrJobBusy) {
		s.log.Debug("job still running; tick skipped", zap.String("job", j.Name))
	}
}

func (s *Scheduler) execute(parent context.Context, j Job) error {
	s.mu.Lock()
	busy := s.running[j.Name]
	s.mu.Unlock()
	if !busy.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", ErrJobBusy, j.Name)
	}
	defer busy.Store(false)

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	err := j.Run(ctx)
	took := time.Since(start)
	metrics.RecordJobRun(j.Name, took, err == nil)

	if err != nil {
		s.log.Error("job failed",
			zap.String("job", j.Name),
			zap.Duration("took", took),
			zap.Error(err))
		return err
	}
	s.log.Debug("job finished", zap.String("job", j.Name), zap.Duration("took", took))
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
