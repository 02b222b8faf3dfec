// ABOUTME: Shared fixtures for forum service tests
// ABOUTME: Real SQLite database, in-memory job queue and a controllable clock

package forum

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harper/agora/internal/config"
	"github.com/harper/agora/internal/db"
	"github.com/harper/agora/internal/jobs"
	"github.com/harper/agora/internal/models"
	"github.com/harper/agora/internal/notify"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Notify(_ context.Context, e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]notify.Kind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (r *recorder) last(kind notify.Kind) (notify.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return notify.Event{}, false
}

type fixture struct {
	ctx    context.Context
	db     *sql.DB
	svc    *Service
	queue  *jobs.Queue
	clock  *testClock
	events *recorder
	mailer *notify.MemoryMailer

	admin *models.User
	alice *models.User
	bob   *models.User
	carol *models.User
}

var testStart = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, mutate ...func(*config.SiteSettings)) *fixture {
	t.Helper()
	database, err := db.InitDB(filepath.Join(t.TempDir(), "forum.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	queue, err := jobs.OpenQueue("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = queue.Close() })

	site := config.DefaultSiteSettings()
	for _, m := range mutate {
		m(&site)
	}

	f := &fixture{
		ctx:    context.Background(),
		db:     database,
		queue:  queue,
		clock:  &testClock{now: testStart},
		events: &recorder{},
		mailer: &notify.MemoryMailer{},
	}
	f.svc = NewService(database, site,
		WithScheduler(queue),
		WithClock(f.clock.Now),
		WithLocation(time.UTC),
		WithObservers(f.events, notify.NewNotifier(database, f.mailer, nil)))

	f.admin = f.user(t, NewUserParams{Username: "admin", Email: "admin@example.com", Admin: true})
	f.alice = f.user(t, NewUserParams{Username: "alice", Email: "alice@example.com"})
	f.bob = f.user(t, NewUserParams{Username: "bob", Email: "bob@example.com"})
	f.carol = f.user(t, NewUserParams{Username: "carol", Email: "carol@example.com"})
	return f
}

func (f *fixture) user(t *testing.T, p NewUserParams) *models.User {
	t.Helper()
	u, err := f.svc.CreateUser(f.ctx, p)
	require.NoError(t, err)
	return u
}

func (f *fixture) topic(t *testing.T, actor *models.User, title string) *models.Topic {
	t.Helper()
	topic, err := f.svc.CreateTopic(f.ctx, actor, NewTopicParams{
		Title: title,
		Raw:   "Opening post for " + title,
	})
	require.NoError(t, err)
	return topic
}

func (f *fixture) reply(t *testing.T, actor *models.User, topicID int64, raw string) *models.Post {
	t.Helper()
	f.clock.Advance(time.Minute)
	post, err := f.svc.CreatePost(f.ctx, actor, topicID, raw, nil)
	require.NoError(t, err)
	return post
}

func (f *fixture) reload(t *testing.T, topicID int64) *models.Topic {
	t.Helper()
	topic, err := db.GetTopic(f.ctx, f.db, topicID)
	require.NoError(t, err)
	return topic
}

func (f *fixture) posts(t *testing.T, topicID int64) []*models.Post {
	t.Helper()
	posts, err := db.ListPosts(f.ctx, f.db, topicID)
	require.NoError(t, err)
	return posts
}
