// ABOUTME: Topic database operations
// ABOUTME: Insert, lookup, full-row update and filtered listing of topics

package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harper/agora/internal/models"
)

const topicColumns = `t.id, t.title, t.fancy_title, t.slug, t.category_id, t.user_id, t.last_post_user_id,
	t.archetype, t.visible, t.pinned, t.pinned_at, t.closed, t.archived,
	t.posts_count, t.highest_post_number, t.moderator_posts_count, t.reply_count,
	t.like_count, t.star_count, t.featured_user_ids, t.version, t.last_posted_at,
	t.bumped_at, t.auto_close_at, t.auto_close_user_id, t.auto_close_started_at,
	t.meta_data, t.deleted_at, t.deleted_by_id, t.created_at, t.updated_at`

// TopicFilter narrows ListTopics. The zero value lists live, visible,
// unarchived regular topics.
type TopicFilter struct {
	CategoryID       *int64
	IncludeArchived  bool
	IncludeInvisible bool
	// AllowedUserID adds the private messages the user takes part in.
	AllowedUserID *int64
	// ViewerID stops pins the viewer dismissed from sorting first.
	ViewerID *int64
	Limit    int
}

// InsertTopic inserts a new topic and sets its ID.
func InsertTopic(ctx context.Context, q DBTX, t *models.Topic) error {
	featured, meta, err := encodeTopicJSON(t)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO topics (title, fancy_title, slug, category_id, user_id, last_post_user_id,
			archetype, visible, pinned, pinned_at, closed, archived,
			posts_count, highest_post_number, moderator_posts_count, reply_count,
			like_count, star_count, featured_user_ids, version, last_posted_at,
			bumped_at, auto_close_at, auto_close_user_id, auto_close_started_at,
			meta_data, deleted_at, deleted_by_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.FancyTitle, t.Slug, t.CategoryID, t.UserID, t.LastPostUserID,
		t.Archetype, t.Visible, t.Pinned, utcPtr(t.PinnedAt), t.Closed, t.Archived,
		t.PostsCount, t.HighestPostNumber, t.ModeratorPostsCount, t.ReplyCount,
		t.LikeCount, t.StarCount, featured, t.Version, utcPtr(t.LastPostedAt),
		t.BumpedAt.UTC(), utcPtr(t.AutoCloseAt), t.AutoCloseUserID, utcPtr(t.AutoCloseStartedAt),
		meta, utcPtr(t.DeletedAt), t.DeletedByID, t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert topic %q: %w", t.Title, err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

// GetTopic retrieves a topic by ID, including deleted ones.
func GetTopic(ctx context.Context, q DBTX, id int64) (*models.Topic, error) {
	row := q.QueryRowContext(ctx, `SELECT `+topicColumns+` FROM topics t WHERE t.id = ?`, id)
	return scanTopic(row)
}

// GetTopicBySlug retrieves the newest live topic with the given slug.
func GetTopicBySlug(ctx context.Context, q DBTX, slug string) (*models.Topic, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+topicColumns+` FROM topics t
		WHERE t.slug = ? AND t.deleted_at IS NULL
		ORDER BY t.id DESC LIMIT 1`, slug)
	return scanTopic(row)
}

// UpdateTopic writes every mutable column of the topic.
func UpdateTopic(ctx context.Context, q DBTX, t *models.Topic) error {
	featured, meta, err := encodeTopicJSON(t)
	if err != nil {
		return err
	}
	result, err := q.ExecContext(ctx, `
		UPDATE topics SET title = ?, fancy_title = ?, slug = ?, category_id = ?, user_id = ?,
			last_post_user_id = ?, archetype = ?, visible = ?, pinned = ?, pinned_at = ?,
			closed = ?, archived = ?, posts_count = ?, highest_post_number = ?,
			moderator_posts_count = ?, reply_count = ?, like_count = ?, star_count = ?,
			featured_user_ids = ?, version = ?, last_posted_at = ?, bumped_at = ?,
			auto_close_at = ?, auto_close_user_id = ?, auto_close_started_at = ?,
			meta_data = ?, deleted_at = ?, deleted_by_id = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.FancyTitle, t.Slug, t.CategoryID, t.UserID,
		t.LastPostUserID, t.Archetype, t.Visible, t.Pinned, utcPtr(t.PinnedAt),
		t.Closed, t.Archived, t.PostsCount, t.HighestPostNumber,
		t.ModeratorPostsCount, t.ReplyCount, t.LikeCount, t.StarCount,
		featured, t.Version, utcPtr(t.LastPostedAt), t.BumpedAt.UTC(),
		utcPtr(t.AutoCloseAt), t.AutoCloseUserID, utcPtr(t.AutoCloseStartedAt),
		meta, utcPtr(t.DeletedAt), t.DeletedByID, t.UpdatedAt.UTC(),
		t.ID)
	if err != nil {
		return fmt.Errorf("update topic %d: %w", t.ID, err)
	}
	return requireRow(result, fmt.Sprintf("topic %d", t.ID))
}

// ListTopics returns topics matching the filter, pinned first then most
// recently bumped.
func ListTopics(ctx context.Context, q DBTX, f TopicFilter) ([]*models.Topic, error) {
	var where []string
	var args []any

	if f.CategoryID != nil {
		where = append(where, "t.category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if !f.IncludeArchived {
		where = append(where, "NOT t.archived")
	}
	if !f.IncludeInvisible {
		where = append(where, "t.visible")
	}
	where = append(where, "t.deleted_at IS NULL")
	if f.AllowedUserID != nil {
		where = append(where, `(t.archetype = ? OR EXISTS (
			SELECT 1 FROM topic_allowed_users a WHERE a.topic_id = t.id AND a.user_id = ?))`)
		args = append(args, models.ArchetypeRegular, *f.AllowedUserID)
	} else {
		where = append(where, "t.archetype = ?")
		args = append(args, models.ArchetypeRegular)
	}

	query := `SELECT ` + topicColumns + ` FROM topics t`
	pinned := "t.pinned"
	if f.ViewerID != nil {
		// A dismissal only counts for the pin it was made against.
		query += ` LEFT JOIN topic_users tu ON tu.topic_id = t.id AND tu.user_id = ?`
		args = append([]any{*f.ViewerID}, args...)
		pinned = "(t.pinned AND (tu.cleared_pinned_at IS NULL OR tu.cleared_pinned_at < t.pinned_at))"
	}
	query += " WHERE " + strings.Join(where, " AND ")
	query += " ORDER BY " + pinned + " DESC, t.bumped_at DESC, t.id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return queryTopics(ctx, q, query, args...)
}

// TopicsDueToClose returns open topics whose auto-close time has passed.
func TopicsDueToClose(ctx context.Context, q DBTX, now time.Time) ([]*models.Topic, error) {
	return queryTopics(ctx, q, `
		SELECT `+topicColumns+` FROM topics t
		WHERE t.auto_close_at IS NOT NULL AND t.auto_close_at <= ?
			AND NOT t.closed AND t.deleted_at IS NULL
		ORDER BY t.auto_close_at`, now.UTC())
}

// TitleExists reports whether a live regular topic other than exceptID
// already uses the title, ignoring case.
func TitleExists(ctx context.Context, q DBTX, title string, exceptID int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM topics
		WHERE lower(title) = lower(?) AND id != ? AND archetype = ? AND deleted_at IS NULL`,
		title, exceptID, models.ArchetypeRegular).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func queryTopics(ctx context.Context, q DBTX, query string, args ...any) ([]*models.Topic, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []*models.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func scanTopic(s scanner) (*models.Topic, error) {
	var t models.Topic
	var featured, meta string
	err := s.Scan(&t.ID, &t.Title, &t.FancyTitle, &t.Slug, &t.CategoryID, &t.UserID, &t.LastPostUserID,
		&t.Archetype, &t.Visible, &t.Pinned, &t.PinnedAt, &t.Closed, &t.Archived,
		&t.PostsCount, &t.HighestPostNumber, &t.ModeratorPostsCount, &t.ReplyCount,
		&t.LikeCount, &t.StarCount, &featured, &t.Version, &t.LastPostedAt,
		&t.BumpedAt, &t.AutoCloseAt, &t.AutoCloseUserID, &t.AutoCloseStartedAt,
		&meta, &t.DeletedAt, &t.DeletedByID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(featured), &t.FeaturedUserIDs); err != nil {
		return nil, fmt.Errorf("decode featured users of topic %d: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(meta), &t.MetaData); err != nil {
		return nil, fmt.Errorf("decode meta data of topic %d: %w", t.ID, err)
	}
	if t.MetaData == nil {
		t.MetaData = map[string]string{}
	}
	return &t, nil
}

func encodeTopicJSON(t *models.Topic) (string, string, error) {
	ids := t.FeaturedUserIDs
	if ids == nil {
		ids = []int64{}
	}
	featured, err := encodeJSON(ids)
	if err != nil {
		return "", "", err
	}
	meta := t.MetaData
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := encodeJSON(meta)
	if err != nil {
		return "", "", err
	}
	return featured, metaJSON, nil
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
