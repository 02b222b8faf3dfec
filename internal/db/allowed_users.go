// ABOUTME: Private message participant database operations
// ABOUTME: Tracks which users may read a private topic

package db

import (
	"context"
	"time"

	"github.com/harper/agora/internal/models"
)

// AddAllowedUser lets a user read a private topic. Adding twice is a no-op.
func AddAllowedUser(ctx context.Context, q DBTX, topicID, userID int64, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO topic_allowed_users (topic_id, user_id, created_at) VALUES (?, ?, ?)`,
		topicID, userID, now.UTC())
	return err
}

// RemoveAllowedUser revokes access, reporting whether the user had it.
func RemoveAllowedUser(ctx context.Context, q DBTX, topicID, userID int64) (bool, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM topic_allowed_users WHERE topic_id = ? AND user_id = ?`,
		topicID, userID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IsAllowedUser reports whether the user may read the private topic.
func IsAllowedUser(ctx context.Context, q DBTX, topicID, userID int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM topic_allowed_users WHERE topic_id = ? AND user_id = ?`,
		topicID, userID).Scan(&n)
	return n > 0, err
}

// ListAllowedUsers returns the participants of a private topic in join order.
func ListAllowedUsers(ctx context.Context, q DBTX, topicID int64) ([]*models.User, error) {
	return queryUsers(ctx, q, `
		SELECT u.id, u.username, u.email, u.admin, u.moderator, u.created_at
		FROM topic_allowed_users a JOIN users u ON u.id = a.user_id
		WHERE a.topic_id = ?
		ORDER BY a.created_at, u.id`, topicID)
}
