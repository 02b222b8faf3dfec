// ABOUTME: Cron-driven runner that dispatches due jobs to handlers
// ABOUTME: Retries failures with linear backoff before dropping them

package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harper/agora/internal/logger"
)

const (
	// DefaultSchedule is how often the runner looks for due jobs.
	DefaultSchedule = "@every 10s"
	// DefaultMaxAttempts is how many times a failing job runs before it is dropped.
	DefaultMaxAttempts = 3
	// DefaultBackoff is multiplied by the attempt count to delay a retry.
	DefaultBackoff = 30 * time.Second
)

// Handler performs one job.
type Handler func(ctx context.Context, job *Job) error

// Sweep runs on every tick after the due jobs and reports how many items it
// handled. It finds work that never made it into the queue.
type Sweep func(ctx context.Context, now time.Time) (int, error)

type namedSweep struct {
	name string
	fn   Sweep
}

// Runner executes due jobs from a Queue.
type Runner struct {
	queue       *Queue
	log         logger.Logger
	schedule    string
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler
	sweeps   []namedSweep
	cron     *cron.Cron
	cancel   context.CancelFunc

	runMu sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithSchedule sets the cron spec of the runner tick.
func WithSchedule(spec string) Option {
	return func(r *Runner) { r.schedule = spec }
}

// WithMaxAttempts sets how many times a job may fail.
func WithMaxAttempts(n int) Option {
	return func(r *Runner) { r.maxAttempts = n }
}

// WithBackoff sets the retry delay unit.
func WithBackoff(d time.Duration) Option {
	return func(r *Runner) { r.backoff = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner over queue.
func NewRunner(queue *Queue, log logger.Logger, opts ...Option) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	r := &Runner{
		queue:       queue,
		log:         log,
		schedule:    DefaultSchedule,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		now:         time.Now,
		handlers:    make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a handler to a job name.
func (r *Runner) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// AddSweep registers fn to run on every tick.
func (r *Runner) AddSweep(name string, fn Sweep) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweeps = append(r.sweeps, namedSweep{name: name, fn: fn})
}

func (r *Runner) handler(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// RunDue runs every job that is due now, then the sweeps, and returns how
// many jobs succeeded plus how many items the sweeps handled. A failing sweep
// is logged and retried on the next tick.
func (r *Runner) RunDue(ctx context.Context) (int, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	now := r.now().UTC()
	due, err := r.queue.Due(now)
	if err != nil {
		return 0, fmt.Errorf("list due jobs: %w", err)
	}

	done := 0
	for _, job := range due {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if r.run(ctx, job, now) {
			done++
		}
	}

	r.mu.RLock()
	sweeps := append([]namedSweep(nil), r.sweeps...)
	r.mu.RUnlock()
	for _, s := range sweeps {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		n, err := s.fn(ctx, now)
		if err != nil {
			r.log.Error("sweep failed", logger.String("sweep", s.name), logger.Error(err))
		}
		done += n
	}
	return done, nil
}

func (r *Runner) run(ctx context.Context, job *Job, now time.Time) bool {
	log := r.log.With(
		logger.String("job", job.Name),
		logger.String("key", job.Key),
		logger.Int("attempt", job.Attempts+1))

	h, ok := r.handler(job.Name)
	if !ok {
		log.Error("no handler registered, dropping job")
		if err := r.queue.replaceIfCurrent(job, true); err != nil {
			log.Error("failed to drop job", logger.Error(err))
		}
		return false
	}

	err := h(ctx, job)
	if err == nil {
		log.Debug("job finished")
		if err := r.queue.replaceIfCurrent(job, true); err != nil {
			log.Error("failed to remove finished job", logger.Error(err))
		}
		return true
	}

	job.Attempts++
	job.LastError = err.Error()
	if job.Attempts >= r.maxAttempts {
		log.Error("job failed, giving up", logger.Error(err))
		if err := r.queue.replaceIfCurrent(job, true); err != nil {
			log.Error("failed to drop job", logger.Error(err))
		}
		return false
	}

	job.RunAt = now.Add(time.Duration(job.Attempts) * r.backoff)
	log.Warn("job failed, retrying", logger.Error(err), logger.Time("run_at", job.RunAt))
	if err := r.queue.replaceIfCurrent(job, false); err != nil {
		log.Error("failed to reschedule job", logger.Error(err))
	}
	return false
}

// Start begins running due jobs on the cron schedule until ctx ends or Stop
// is called.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return fmt.Errorf("runner already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(r.schedule, func() {
		if _, err := r.RunDue(ctx); err != nil && ctx.Err() == nil {
			r.log.Error("job tick failed", logger.Error(err))
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("invalid job schedule %q: %w", r.schedule, err)
	}
	r.cron = c
	r.cancel = cancel
	c.Start()
	r.log.Info("job runner started", logger.String("schedule", r.schedule))

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running tick to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	c, cancel := r.cron, r.cancel
	r.cron, r.cancel = nil, nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
}
