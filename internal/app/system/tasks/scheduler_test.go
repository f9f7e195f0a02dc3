package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestScheduler_AddRejectsBadJobs(t *testing.T) {
	s := NewScheduler(zap.NewNop(), time.Second)
	run := func(context.Context) error { return nil }

	tests := []struct {
		name string
		job  Job
	}{
		{"no name", Job{Interval: time.Second, Run: run}},
		{"no run func", Job{Name: "x", Interval: time.Second}},
		{"zero interval", Job{Name: "x", Run: run}},
		{"negative interval", Job{Name: "x", Interval: -time.Second, Run: run}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Add(tt.job); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestScheduler_AddRejectsDuplicateName(t *testing.T) {
	s := NewScheduler(zap.NewNop(), time.Second)
	j := Job{Name: "dup", Interval: time.Minute, Run: func(context.Context) error { return nil }}
	if err := s.Add(j); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := s.Add(j); err == nil {
		t.Error("second Add should fail")
	}
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(zap.NewNop(), time.Second)
	var calls int32
	boom := errors.New("boom")

	_ = s.Add(Job{Name: "ok", Interval: time.Hour, Run: func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}})
	_ = s.Add(Job{Name: "fails", Interval: time.Hour, Run: func(context.Context) error { return boom }})

	if err := s.RunNow(context.Background(), "ok"); err != nil {
		t.Fatalf("RunNow(ok): %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if err := s.RunNow(context.Background(), "fails"); !errors.Is(err, boom) {
		t.Errorf("RunNow(fails) = %v, want boom", err)
	}
	if err := s.RunNow(context.Background(), "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("RunNow(missing) = %v, want ErrUnknownJob", err)
	}
}

func TestScheduler_RunNowAppliesTimeout(t *testing.T) {
	s := NewScheduler(zap.NewNop(), 20*time.Millisecond)
	_ = s.Add(Job{Name: "slow", Interval: time.Hour, Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	err := s.RunNow(context.Background(), "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	s := NewScheduler(zap.NewNop(), time.Second)
	ran := make(chan struct{}, 1)
	_ = s.Add(Job{Name: "tick", Interval: time.Second, Run: func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}})

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	}()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run within 3s")
	}
}

func TestScheduler_JobNeverOverlapsItself(t *testing.T) {
	s := NewScheduler(zap.NewNop(), 10*time.Second)
	started := make(chan struct{}, 8)
	release := make(chan struct{})
	var inFlight, peak, runs int32

	_ = s.Add(Job{Name: "slow", Interval: time.Second, Run: func(context.Context) error {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		atomic.AddInt32(&runs, 1)
		started <- struct{}{}
		<-release
		return nil
	}})

	first := make(chan error, 1)
	go func() { first <- s.RunNow(context.Background(), "slow") }()
	<-started

	// A manual run while the first is in flight is refused.
	if err := s.RunNow(context.Background(), "slow"); !errors.Is(err, ErrJobBusy) {
		t.Errorf("second RunNow = %v, want ErrJobBusy", err)
	}

	// So is the cron tick that fires meanwhile.
	s.Start()
	time.Sleep(1500 * time.Millisecond)
	close(release)

	if err := <-first; err != nil {
		t.Fatalf("first RunNow: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.Stop(ctx)

	if p := atomic.LoadInt32(&peak); p != 1 {
		t.Errorf("peak concurrent runs = %d, want 1", p)
	}

	// Once idle, the job runs again.
	if err := s.RunNow(context.Background(), "slow"); err != nil {
		t.Errorf("RunNow after idle = %v", err)
	}
	if got := atomic.LoadInt32(&runs); got < 2 {
		t.Errorf("runs = %d, want at least 2", got)
	}
}

type fakeSweeper struct {
	completeBefore time.Time
	remindBefore   time.Time
	n              int
	err            error
}

func (f *fakeSweeper) AutoCompleteStale(_ context.Context, before time.Time) (int, error) {
	f.completeBefore = before
	return f.n, f.err
}

func (f *fakeSweeper) RemindPending(_ context.Context, before time.Time) (int, error) {
	f.remindBefore = before
	return f.n, f.err
}

func TestTradeJobs_PassCutoff(t *testing.T) {
	sw := &fakeSweeper{n: 2}
	after := 14 * 24 * time.Hour

	job := TradeAutoCompleteJob(sw, after, zap.NewNop())
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("auto-complete Run: %v", err)
	}
	want := time.Now().UTC().Add(-after)
	if d := want.Sub(sw.completeBefore); d < 0 || d > time.Minute {
		t.Errorf("cutoff = %v, want about %v", sw.completeBefore, want)
	}

	rem := TradeReminderJob(sw, 7*24*time.Hour, zap.NewNop())
	if err := rem.Run(context.Background()); err != nil {
		t.Fatalf("reminder Run: %v", err)
	}
	if sw.remindBefore.IsZero() {
		t.Error("reminder cutoff not passed")
	}
}

func TestTradeJobs_PropagateError(t *testing.T) {
	boom := errors.New("db down")
	sw := &fakeSweeper{err: boom}
	if err := TradeAutoCompleteJob(sw, time.Hour, zap.NewNop()).Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
