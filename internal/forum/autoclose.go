// ABOUTME: Scheduled auto-close of topics
// ABOUTME: Keeps one queued close_topic job per topic in step with the topic row

package forum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/harper/agora/internal/db"
	"github.com/harper/agora/internal/jobs"
	"github.com/harper/agora/internal/logger"
	"github.com/harper/agora/internal/models"
)

// CloseTopicJob is the job name that closes a topic when its time comes.
const CloseTopicJob = "close_topic"

// CloseTopicPayload is the payload of a close_topic job.
type CloseTopicPayload struct {
	TopicID int64 `json:"topic_id"`
	UserID  int64 `json:"user_id"`
}

// AutoCloseSpec says when a topic should close. Exactly one of Hours, At or
// Clear is meaningful; Clear wins.
type AutoCloseSpec struct {
	// Hours from now.
	Hours float64
	// At is a wall-clock time "HH:MM"; the next occurrence is used.
	At    string
	Clear bool
}

// ParseAutoClose reads "", "0" or "clear" as clear, "HH:MM" as a wall-clock
// time and anything else as a number of hours.
func ParseAutoClose(s string) (AutoCloseSpec, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "0" || strings.EqualFold(s, "clear"):
		return AutoCloseSpec{Clear: true}, nil
	case strings.Contains(s, ":"):
		if _, _, err := parseClock(s); err != nil {
			return AutoCloseSpec{}, err
		}
		return AutoCloseSpec{At: s}, nil
	}
	hours, err := strconv.ParseFloat(s, 64)
	if err != nil || hours < 0 || math.IsNaN(hours) || math.IsInf(hours, 0) {
		return AutoCloseSpec{}, fmt.Errorf("%w: %q", ErrInvalidAutoClose, s)
	}
	if hours == 0 {
		return AutoCloseSpec{Clear: true}, nil
	}
	return AutoCloseSpec{Hours: hours}, nil
}

func parseClock(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidAutoClose, s)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidAutoClose, s)
	}
	return h, m, nil
}

// closeTime resolves spec against now. A zero time means clear.
func (s *Service) closeTime(spec AutoCloseSpec, now time.Time) (time.Time, error) {
	switch {
	case spec.Clear:
		return time.Time{}, nil
	case spec.At != "":
		h, m, err := parseClock(spec.At)
		if err != nil {
			return time.Time{}, err
		}
		local := now.In(s.loc)
		at := time.Date(local.Year(), local.Month(), local.Day(), h, m, 0, 0, s.loc)
		if !at.After(local) {
			at = at.AddDate(0, 0, 1)
		}
		return at.UTC(), nil
	case spec.Hours > 0:
		return now.Add(hoursDuration(spec.Hours)), nil
	}
	return time.Time{}, ErrInvalidAutoClose
}

func hoursDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

type autoCloseState struct {
	at     *time.Time
	userID *int64
}

func autoCloseOf(t *models.Topic) autoCloseState {
	var st autoCloseState
	if t.AutoCloseAt != nil {
		st.at = timePtr(*t.AutoCloseAt)
	}
	if t.AutoCloseUserID != nil {
		st.userID = int64Ptr(*t.AutoCloseUserID)
	}
	return st
}

func (a autoCloseState) equal(b autoCloseState) bool {
	sameAt := (a.at == nil && b.at == nil) || (a.at != nil && b.at != nil && a.at.Equal(*b.at))
	sameUser := (a.userID == nil && b.userID == nil) || (a.userID != nil && b.userID != nil && *a.userID == *b.userID)
	return sameAt && sameUser
}

func setAutoClose(t *models.Topic, at time.Time, userID int64, now time.Time) {
	t.AutoCloseAt = timePtr(at.UTC())
	t.AutoCloseUserID = int64Ptr(userID)
	t.AutoCloseStartedAt = timePtr(now.UTC())
}

func clearAutoClose(t *models.Topic) {
	t.AutoCloseAt = nil
	t.AutoCloseUserID = nil
	t.AutoCloseStartedAt = nil
}

// saveTopic writes the topic and reschedules its auto-close job when the
// close time or responsible user changed.
func (s *Service) saveTopic(ctx context.Context, o *op, topic *models.Topic, prev autoCloseState) error {
	topic.UpdatedAt = o.now
	if err := db.UpdateTopic(ctx, o.tx, topic); err != nil {
		return err
	}
	s.syncAutoClose(o, prev, topic)
	return nil
}

// syncAutoClose queues the job changes implied by moving from prev to the
// topic's current auto-close state. They run after commit.
func (s *Service) syncAutoClose(o *op, prev autoCloseState, topic *models.Topic) {
	cur := autoCloseOf(topic)
	if prev.equal(cur) {
		return
	}
	key := strconv.FormatInt(topic.ID, 10)
	schedule := cur.at != nil && !topic.Closed && !topic.IsDeleted()
	payload := CloseTopicPayload{TopicID: topic.ID, UserID: db.SystemUserID}
	if cur.userID != nil {
		payload.UserID = *cur.userID
	}
	o.onCommit(func() {
		if err := s.jobs.Cancel(CloseTopicJob, key); err != nil {
			s.log.Error("failed to cancel auto-close", logger.Int64("topic_id", topic.ID), logger.Error(err))
		}
		if !schedule {
			return
		}
		if _, err := s.jobs.EnqueueAt(CloseTopicJob, key, *cur.at, payload); err != nil {
			s.log.Error("failed to schedule auto-close", logger.Int64("topic_id", topic.ID), logger.Error(err))
		}
	})
}

// SetAutoClose schedules or clears the automatic close of a topic. The
// responsible user is the actor when staff, otherwise the system user.
func (s *Service) SetAutoClose(ctx context.Context, actor *models.User, topicID int64, spec AutoCloseSpec) (*models.Topic, error) {
	var topic *models.Topic
	err := s.withTx(ctx, func(o *op) error {
		var err error
		topic, err = getTopic(ctx, o.tx, topicID)
		if err != nil {
			return err
		}
		if err := requireOwnerOrStaff(actor, topic); err != nil {
			return err
		}

		at, err := s.closeTime(spec, o.now)
		if err != nil {
			return err
		}
		prev := autoCloseOf(topic)
		if at.IsZero() {
			clearAutoClose(topic)
		} else {
			userID := db.SystemUserID
			if actor.IsStaff() {
				userID = actor.ID
			}
			setAutoClose(topic, at, userID, o.now)
		}
		return s.saveTopic(ctx, o, topic, prev)
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

// OverdueSweep is the runner sweep that closes overdue topics.
const OverdueSweep = "close_overdue_topics"

// RegisterJobs binds the forum's job handlers and sweeps to a runner.
func (s *Service) RegisterJobs(r *jobs.Runner) {
	r.Register(CloseTopicJob, s.HandleCloseTopic)
	r.AddSweep(OverdueSweep, s.CloseOverdueTopics)
}

// HandleCloseTopic closes a topic whose auto-close time has come. Jobs for
// deleted, already closed or rescheduled topics do nothing.
func (s *Service) HandleCloseTopic(ctx context.Context, job *jobs.Job) error {
	var p CloseTopicPayload
	if err := job.Decode(&p); err != nil {
		return err
	}
	_, err := s.closeIfDue(ctx, p.TopicID, p.UserID)
	return err
}

// CloseOverdueTopics closes open topics whose auto-close time has passed
// without a job closing them, such as when queueing the job failed.
func (s *Service) CloseOverdueTopics(ctx context.Context, now time.Time) (int, error) {
	due, err := db.TopicsDueToClose(ctx, s.db, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue topics: %w", err)
	}
	closed := 0
	for _, t := range due {
		userID := db.SystemUserID
		if t.AutoCloseUserID != nil {
			userID = *t.AutoCloseUserID
		}
		ok, err := s.closeIfDue(ctx, t.ID, userID)
		if err != nil {
			s.log.Error("failed to close overdue topic", logger.Int64("topic_id", t.ID), logger.Error(err))
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

// closeIfDue auto-closes the topic as userID, or as the system user when
// userID is not staff. It reports whether the topic was closed.
func (s *Service) closeIfDue(ctx context.Context, topicID, userID int64) (bool, error) {
	topic, err := getTopic(ctx, s.db, topicID)
	if errors.Is(err, ErrTopicNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	now := s.now().UTC()
	if topic.IsDeleted() || topic.Closed || topic.AutoCloseAt == nil || topic.AutoCloseAt.After(now) {
		s.log.Debug("auto-close skipped", logger.Int64("topic_id", topic.ID))
		return false, nil
	}

	actor, err := db.GetUser(ctx, s.db, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	if !actor.IsStaff() {
		if actor, err = getUser(ctx, s.db, db.SystemUserID); err != nil {
			return false, err
		}
	}

	if _, err := s.UpdateStatus(ctx, actor, topic.ID, StatusAutoClosed, true); err != nil {
		return false, fmt.Errorf("auto-close topic %d: %w", topic.ID, err)
	}
	s.log.Info("topic auto-closed", logger.Int64("topic_id", topic.ID), logger.String("by", actor.Username))
	return true, nil
}

// autoClosedMessage describes how long the topic was open before closing.
func autoClosedMessage(topic *models.Topic, now time.Time) string {
	start := topic.CreatedAt
	if topic.AutoCloseStartedAt != nil {
		start = *topic.AutoCloseStartedAt
	}
	elapsed := now.Sub(start)
	if elapsed >= 24*time.Hour {
		days := int(math.Round(elapsed.Hours() / 24))
		return fmt.Sprintf("This topic was automatically closed after %s. New replies are no longer allowed.", plural(days, "day"))
	}
	hours := int(math.Round(elapsed.Hours()))
	if hours < 1 {
		hours = 1
	}
	return fmt.Sprintf("This topic was automatically closed after %s. New replies are no longer allowed.", plural(hours, "hour"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
