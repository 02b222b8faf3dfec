// ABOUTME: Aggregate queries behind topic statistics
// ABOUTME: Post counts, last poster and recent distinct posters

package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/harper/agora/internal/models"
)

// PostStats summarizes the live posts of a topic.
type PostStats struct {
	PostsCount          int
	HighestPostNumber   int
	ModeratorPostsCount int
	ReplyCount          int
	LikeCount           int
	LastPostUserID      int64
	LastPostedAt        *time.Time
}

// TopicPostStats aggregates the posts of a topic. The last poster is taken
// from regular posts only.
func TopicPostStats(ctx context.Context, q DBTX, topicID int64) (*PostStats, error) {
	var s PostStats
	err := q.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(MAX(post_number), 0),
			COALESCE(SUM(CASE WHEN post_type = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN reply_to_post_number IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(like_count), 0)
		FROM posts WHERE topic_id = ? AND deleted_at IS NULL`,
		models.PostTypeModeratorAction, topicID).
		Scan(&s.PostsCount, &s.HighestPostNumber, &s.ModeratorPostsCount, &s.ReplyCount, &s.LikeCount)
	if err != nil {
		return nil, err
	}

	// ORDER BY keeps the DATETIME column type so the driver returns a time.
	var at time.Time
	err = q.QueryRowContext(ctx, `
		SELECT user_id, created_at FROM posts
		WHERE topic_id = ? AND deleted_at IS NULL AND post_type = ?
		ORDER BY post_number DESC LIMIT 1`,
		topicID, models.PostTypeRegular).Scan(&s.LastPostUserID, &at)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	default:
		s.LastPostedAt = &at
	}
	return &s, nil
}

// RecentPosters returns up to limit distinct authors of regular posts, most
// recent first, skipping the excluded user IDs.
func RecentPosters(ctx context.Context, q DBTX, topicID int64, exclude []int64, limit int) ([]int64, error) {
	query := `
		SELECT user_id FROM posts
		WHERE topic_id = ? AND deleted_at IS NULL AND post_type = ?`
	args := []any{topicID, models.PostTypeRegular}
	if len(exclude) > 0 {
		query += ` AND user_id NOT IN (` + placeholders(len(exclude)) + `)`
		args = append(args, int64Args(exclude)...)
	}
	query += ` GROUP BY user_id ORDER BY MAX(post_number) DESC LIMIT ?`
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
