// ABOUTME: Per-user topic state database operations
// ABOUTME: Read position, posted flag, stars and pin dismissal

package db

import (
	"context"
	"fmt"

	"github.com/harper/agora/internal/models"
)

const topicUserColumns = `user_id, topic_id, posted, starred, starred_at, last_read_post_number,
	seen_post_count, cleared_pinned_at, updated_at`

// GetTopicUser retrieves a user's state in a topic.
func GetTopicUser(ctx context.Context, q DBTX, userID, topicID int64) (*models.TopicUser, error) {
	row := q.QueryRowContext(ctx, `SELECT `+topicUserColumns+` FROM topic_users WHERE user_id = ? AND topic_id = ?`,
		userID, topicID)
	return scanTopicUser(row)
}

// UpsertTopicUser inserts or replaces a user's state in a topic.
func UpsertTopicUser(ctx context.Context, q DBTX, tu *models.TopicUser) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO topic_users (user_id, topic_id, posted, starred, starred_at, last_read_post_number,
			seen_post_count, cleared_pinned_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, topic_id) DO UPDATE SET
			posted = excluded.posted,
			starred = excluded.starred,
			starred_at = excluded.starred_at,
			last_read_post_number = excluded.last_read_post_number,
			seen_post_count = excluded.seen_post_count,
			cleared_pinned_at = excluded.cleared_pinned_at,
			updated_at = excluded.updated_at`,
		tu.UserID, tu.TopicID, tu.Posted, tu.Starred, utcPtr(tu.StarredAt), tu.LastReadPostNumber,
		tu.SeenPostCount, utcPtr(tu.ClearedPinnedAt), tu.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert topic user %d/%d: %w", tu.UserID, tu.TopicID, err)
	}
	return nil
}

// ListTopicUsers returns every user's state in a topic.
func ListTopicUsers(ctx context.Context, q DBTX, topicID int64) ([]*models.TopicUser, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+topicUserColumns+` FROM topic_users WHERE topic_id = ? ORDER BY user_id`,
		topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*models.TopicUser
	for rows.Next() {
		tu, err := scanTopicUser(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, tu)
	}
	return states, rows.Err()
}

// ClampLastRead caps read positions in a topic at highest.
func ClampLastRead(ctx context.Context, q DBTX, topicID int64, highest int) error {
	_, err := q.ExecContext(ctx, `
		UPDATE topic_users
		SET last_read_post_number = MIN(last_read_post_number, ?),
			seen_post_count = MIN(seen_post_count, ?)
		WHERE topic_id = ?`, highest, highest, topicID)
	return err
}

// CountStars counts users who starred the topic.
func CountStars(ctx context.Context, q DBTX, topicID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM topic_users WHERE topic_id = ? AND starred`, topicID).Scan(&n)
	return n, err
}

func scanTopicUser(s scanner) (*models.TopicUser, error) {
	var tu models.TopicUser
	err := s.Scan(&tu.UserID, &tu.TopicID, &tu.Posted, &tu.Starred, &tu.StarredAt, &tu.LastReadPostNumber,
		&tu.SeenPostCount, &tu.ClearedPinnedAt, &tu.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &tu, nil
}
