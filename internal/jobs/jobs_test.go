// ABOUTME: Tests for the job queue and runner
// ABOUTME: Uses an in-memory badger store and a fake clock

package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closePayload struct {
	TopicID int64 `json:"topic_id"`
}

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := OpenQueue("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestEnqueueReplacesSameKey(t *testing.T) {
	q := newTestQueue(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := q.EnqueueAt("close_topic", "7", base, closePayload{TopicID: 7})
	require.NoError(t, err)
	second, err := q.EnqueueAt("close_topic", "7", base.Add(time.Hour), closePayload{TopicID: 7})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	all, err := q.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, second.ID, all[0].ID)
	assert.True(t, all[0].RunAt.Equal(base.Add(time.Hour)))

	var p closePayload
	require.NoError(t, all[0].Decode(&p))
	assert.Equal(t, int64(7), p.TopicID)
}

func TestGetAndCancel(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.EnqueueAt("close_topic", "1", time.Now(), nil)
	require.NoError(t, err)

	job, err := q.Get("close_topic", "1")
	require.NoError(t, err)
	assert.Equal(t, "1", job.Key)

	require.NoError(t, q.Cancel("close_topic", "1"))
	_, err = q.Get("close_topic", "1")
	assert.ErrorIs(t, err, ErrJobNotFound)

	// Cancelling a missing job is not an error.
	assert.NoError(t, q.Cancel("close_topic", "1"))
}

func TestEnqueueRejectsBadName(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.EnqueueAt("", "1", time.Now(), nil)
	assert.Error(t, err)
	_, err = q.EnqueueAt("a:b", "1", time.Now(), nil)
	assert.Error(t, err)
}

func TestDueOrdersByRunAt(t *testing.T) {
	q := newTestQueue(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, _ = q.EnqueueAt("close_topic", "late", base.Add(2*time.Hour), nil)
	_, _ = q.EnqueueAt("close_topic", "b", base.Add(-time.Minute), nil)
	_, _ = q.EnqueueAt("close_topic", "a", base.Add(-time.Hour), nil)

	due, err := q.Due(base)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "a", due[0].Key)
	assert.Equal(t, "b", due[1].Key)
}

func TestRunDueRunsAndRemoves(t *testing.T) {
	q := newTestQueue(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRunner(q, nil, WithClock(func() time.Time { return now }))

	var seen []int64
	r.Register("close_topic", func(ctx context.Context, job *Job) error {
		var p closePayload
		if err := job.Decode(&p); err != nil {
			return err
		}
		seen = append(seen, p.TopicID)
		return nil
	})

	_, _ = q.EnqueueAt("close_topic", "1", now.Add(-time.Second), closePayload{TopicID: 1})
	_, _ = q.EnqueueAt("close_topic", "2", now.Add(time.Hour), closePayload{TopicID: 2})

	done, err := r.RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.Equal(t, []int64{1}, seen)

	remaining, _ := q.List()
	require.Len(t, remaining, 1)
	assert.Equal(t, "2", remaining[0].Key)
}

func TestRunDueRetriesThenDrops(t *testing.T) {
	q := newTestQueue(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRunner(q, nil,
		WithClock(func() time.Time { return now }),
		WithMaxAttempts(2),
		WithBackoff(time.Minute))

	calls := 0
	r.Register("flaky", func(ctx context.Context, job *Job) error {
		calls++
		return errors.New("database is locked")
	})
	_, _ = q.EnqueueAt("flaky", "x", now, nil)

	_, err := r.RunDue(context.Background())
	require.NoError(t, err)
	job, err := q.Get("flaky", "x")
	require.NoError(t, err)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, "database is locked", job.LastError)
	assert.True(t, job.RunAt.Equal(now.Add(time.Minute)))

	// Not due yet.
	_, _ = r.RunDue(context.Background())
	assert.Equal(t, 1, calls)

	now = now.Add(time.Minute)
	_, _ = r.RunDue(context.Background())
	assert.Equal(t, 2, calls)
	_, err = q.Get("flaky", "x")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRunDueKeepsJobReplacedByHandler(t *testing.T) {
	q := newTestQueue(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRunner(q, nil, WithClock(func() time.Time { return now }))

	r.Register("close_topic", func(ctx context.Context, job *Job) error {
		_, err := q.EnqueueAt("close_topic", job.Key, now.Add(24*time.Hour), nil)
		return err
	})
	_, _ = q.EnqueueAt("close_topic", "3", now, nil)

	_, err := r.RunDue(context.Background())
	require.NoError(t, err)

	job, err := q.Get("close_topic", "3")
	require.NoError(t, err)
	assert.True(t, job.RunAt.Equal(now.Add(24*time.Hour)))
}

func TestRunDueDropsUnknownJobs(t *testing.T) {
	q := newTestQueue(t)
	r := NewRunner(q, nil)
	_, _ = q.EnqueueAt("mystery", "1", time.Now().Add(-time.Minute), nil)

	done, err := r.RunDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, done)
	all, _ := q.List()
	assert.Empty(t, all)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	q := newTestQueue(t)
	r := NewRunner(q, nil, WithSchedule("not a schedule"))
	assert.Error(t, r.Start(context.Background()))
}

func TestStartAndStop(t *testing.T) {
	q := newTestQueue(t)
	r := NewRunner(q, nil, WithSchedule("@every 1h"))
	require.NoError(t, r.Start(context.Background()))
	assert.Error(t, r.Start(context.Background()))
	r.Stop()
	r.Stop()
}

func TestRunDueRunsSweepsAfterJobs(t *testing.T) {
	q := newTestQueue(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRunner(q, nil, WithClock(func() time.Time { return now }))

	var order []string
	r.Register("close_topic", func(ctx context.Context, job *Job) error {
		order = append(order, "job")
		return nil
	})
	r.AddSweep("overdue", func(ctx context.Context, at time.Time) (int, error) {
		assert.True(t, at.Equal(now))
		order = append(order, "sweep")
		return 2, nil
	})
	r.AddSweep("broken", func(ctx context.Context, at time.Time) (int, error) {
		order = append(order, "broken")
		return 0, errors.New("database locked")
	})

	_, _ = q.EnqueueAt("close_topic", "1", now.Add(-time.Minute), closePayload{TopicID: 1})

	done, err := r.RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, done)
	assert.Equal(t, []string{"job", "sweep", "broken"}, order)
}
