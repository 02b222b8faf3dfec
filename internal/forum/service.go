// ABOUTME: Forum service owning every topic behaviour
// ABOUTME: Runs each operation in one transaction and publishes events after commit

package forum

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/harper/agora/internal/config"
	"github.com/harper/agora/internal/db"
	"github.com/harper/agora/internal/jobs"
	"github.com/harper/agora/internal/logger"
	"github.com/harper/agora/internal/models"
	"github.com/harper/agora/internal/notify"
)

// Scheduler queues and cancels background jobs.
type Scheduler interface {
	EnqueueAt(name, key string, at time.Time, payload any) (*jobs.Job, error)
	Cancel(name, key string) error
}

type noopScheduler struct{}

func (noopScheduler) EnqueueAt(name, key string, at time.Time, _ any) (*jobs.Job, error) {
	return &jobs.Job{Name: name, Key: key, RunAt: at}, nil
}

func (noopScheduler) Cancel(string, string) error { return nil }

// Service implements forum operations over a SQLite database.
type Service struct {
	db        *sql.DB
	site      config.SiteSettings
	jobs      Scheduler
	log       logger.Logger
	now       func() time.Time
	loc       *time.Location
	observers []notify.Observer
}

// Option configures a Service.
type Option func(*Service)

// WithScheduler sets the queue used for auto-close jobs.
func WithScheduler(s Scheduler) Option {
	return func(svc *Service) { svc.jobs = s }
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(svc *Service) { svc.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// WithLocation sets the zone wall-clock auto-close times are read in.
func WithLocation(loc *time.Location) Option {
	return func(svc *Service) { svc.loc = loc }
}

// WithObservers adds observers that receive events after each commit.
func WithObservers(obs ...notify.Observer) Option {
	return func(svc *Service) { svc.observers = append(svc.observers, obs...) }
}

// NewService creates a forum service.
func NewService(database *sql.DB, site config.SiteSettings, opts ...Option) *Service {
	svc := &Service{
		db:   database,
		site: site,
		jobs: noopScheduler{},
		log:  logger.NewNop(),
		now:  time.Now,
		loc:  time.Local,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Settings returns the site rules the service enforces.
func (s *Service) Settings() config.SiteSettings {
	return s.site
}

// op carries one transaction and the work deferred until it commits.
type op struct {
	tx     *sql.Tx
	now    time.Time
	events []notify.Event
	after  []func()
}

func (o *op) publish(e notify.Event) {
	if e.At.IsZero() {
		e.At = o.now
	}
	o.events = append(o.events, e)
}

func (o *op) onCommit(fn func()) {
	o.after = append(o.after, fn)
}

// withTx runs fn in a transaction, then runs deferred work and publishes
// events once the transaction has committed.
func (s *Service) withTx(ctx context.Context, fn func(o *op) error) error {
	o := &op{now: s.now().UTC()}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		o.tx = tx
		return fn(o)
	})
	if err != nil {
		return err
	}
	for _, fn := range o.after {
		fn()
	}
	for _, e := range o.events {
		for _, obs := range s.observers {
			if err := obs.Notify(ctx, e); err != nil {
				s.log.Error("observer failed",
					logger.String("event", string(e.Kind)),
					logger.Int64("topic_id", e.TopicID),
					logger.Error(err))
			}
		}
	}
	return nil
}

func getTopic(ctx context.Context, q db.DBTX, id int64) (*models.Topic, error) {
	t, err := db.GetTopic(ctx, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTopicNotFound
	}
	return t, err
}

func getUser(ctx context.Context, q db.DBTX, id int64) (*models.User, error) {
	u, err := db.GetUser(ctx, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func getUserByUsername(ctx context.Context, q db.DBTX, username string) (*models.User, error) {
	u, err := db.GetUserByUsername(ctx, q, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func requireStaff(actor *models.User) error {
	if !actor.IsStaff() {
		return ErrNotStaff
	}
	return nil
}

// requireOwnerOrStaff allows the topic creator or any staff member.
func requireOwnerOrStaff(actor *models.User, topic *models.Topic) error {
	if actor == nil {
		return ErrNotAllowed
	}
	if actor.IsStaff() || actor.ID == topic.UserID {
		return nil
	}
	return ErrNotAllowed
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func int64Ptr(v int64) *int64 {
	return &v
}
