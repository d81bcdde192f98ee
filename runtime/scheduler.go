package runtime

import (
	"chat-sync/contract"
	"chat-sync/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

// periodic runs one job at a time on a schedule computed by next.
// A job never overlaps with itself; a late run is not caught up.
type periodic struct {
	log  *slog.Logger
	name string
	next func(after time.Time) (time.Time, error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Schedule replaces any previously scheduled job.
func (p *periodic) Schedule(ctx context.Context, job contract.Job) error {
	if _, err := p.next(time.Now()); err != nil {
		return err
	}
	p.Cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done
	go p.loop(runCtx, job, done)
	return nil
}

// Cancel stops the schedule and waits for a running job to return.
func (p *periodic) Cancel() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (p *periodic) loop(ctx context.Context, job contract.Job, done chan struct{}) {
	defer close(done)
	for {
		at, err := p.next(time.Now())
		if err != nil {
			p.log.Error("Unable to compute next run, schedule stopped", "scheduler", p.name, "error", err)
			return
		}
		timer := time.NewTimer(time.Until(at))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		p.run(ctx, job)
	}
}

func (p *periodic) run(ctx context.Context, job contract.Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Scheduled job panicked", "scheduler", p.name, "error", fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r))
		}
	}()
	start := time.Now()
	if err := job(ctx); err != nil && ctx.Err() == nil {
		p.log.Warn("Scheduled job failed", "scheduler", p.name, "error", err)
		return
	}
	p.log.Debug("Scheduled job done", "scheduler", p.name, "duration", time.Since(start))
}

// CronScheduler fires on a cron expression, e.g. "*/5 * * * *" or "@hourly".
type CronScheduler struct {
	periodic
	expr string
}

func NewCronScheduler(log *slog.Logger, expr string) (*CronScheduler, error) {
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("%w: cron expression %q", errors.ErrInvalidSchedule, expr)
	}
	s := &CronScheduler{expr: expr}
	s.periodic = periodic{log: log, name: "cron " + expr, next: s.Next}
	return s, nil
}

// Next returns the first tick strictly after the given time.
func (s *CronScheduler) Next(after time.Time) (time.Time, error) {
	at, err := gronx.NextTickAfter(s.expr, after, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", errors.ErrInvalidSchedule, err)
	}
	return at, nil
}

// IntervalScheduler fires every period, starting one period after Schedule.
type IntervalScheduler struct {
	periodic
	period time.Duration
}

func NewIntervalScheduler(log *slog.Logger, period time.Duration) (*IntervalScheduler, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: period %s", errors.ErrInvalidSchedule, period)
	}
	s := &IntervalScheduler{period: period}
	s.periodic = periodic{log: log, name: "every " + period.String(), next: s.Next}
	return s, nil
}

func (s *IntervalScheduler) Next(after time.Time) (time.Time, error) {
	return after.Add(s.period), nil
}
