// ABOUTME: Post database operations
// ABOUTME: Insert, lookup, ordered listing and topic placement of posts

package db

import (
	"context"
	"fmt"

	"github.com/harper/agora/internal/models"
)

const postColumns = `id, topic_id, user_id, post_number, sort_order, raw, cooked, post_type,
	reply_to_post_number, like_count, created_at, updated_at, deleted_at`

// InsertPost inserts a new post and sets its ID.
func InsertPost(ctx context.Context, q DBTX, p *models.Post) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO posts (topic_id, user_id, post_number, sort_order, raw, cooked, post_type,
			reply_to_post_number, like_count, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.TopicID, p.UserID, p.PostNumber, p.SortOrder, p.Raw, p.Cooked, p.PostType,
		p.ReplyToPostNumber, p.LikeCount, p.CreatedAt.UTC(), p.UpdatedAt.UTC(), utcPtr(p.DeletedAt))
	if err != nil {
		return fmt.Errorf("insert post %d in topic %d: %w", p.PostNumber, p.TopicID, err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

// GetPost retrieves a post by ID.
func GetPost(ctx context.Context, q DBTX, id int64) (*models.Post, error) {
	row := q.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	return scanPost(row)
}

// GetPostByNumber retrieves a post by its number within a topic.
func GetPostByNumber(ctx context.Context, q DBTX, topicID int64, postNumber int) (*models.Post, error) {
	row := q.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE topic_id = ? AND post_number = ?`,
		topicID, postNumber)
	return scanPost(row)
}

// ListPosts returns the live posts of a topic in reading order.
func ListPosts(ctx context.Context, q DBTX, topicID int64) ([]*models.Post, error) {
	return queryPosts(ctx, q, `
		SELECT `+postColumns+` FROM posts
		WHERE topic_id = ? AND deleted_at IS NULL
		ORDER BY sort_order, post_number`, topicID)
}

// PostsByIDs returns the given posts ordered by post number.
func PostsByIDs(ctx context.Context, q DBTX, ids []int64) ([]*models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + postColumns + ` FROM posts WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY post_number, id`
	return queryPosts(ctx, q, query, int64Args(ids)...)
}

// UpdatePostPlacement moves a post to a topic position.
func UpdatePostPlacement(ctx context.Context, q DBTX, p *models.Post) error {
	result, err := q.ExecContext(ctx, `
		UPDATE posts SET topic_id = ?, post_number = ?, sort_order = ?, reply_to_post_number = ?, updated_at = ?
		WHERE id = ?`,
		p.TopicID, p.PostNumber, p.SortOrder, p.ReplyToPostNumber, p.UpdatedAt.UTC(), p.ID)
	if err != nil {
		return fmt.Errorf("place post %d: %w", p.ID, err)
	}
	return requireRow(result, fmt.Sprintf("post %d", p.ID))
}

// NextPostNumber returns the number a new post in the topic receives.
func NextPostNumber(ctx context.Context, q DBTX, topicID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(post_number), 0) + 1 FROM posts WHERE topic_id = ?`,
		topicID).Scan(&n)
	return n, err
}

func queryPosts(ctx context.Context, q DBTX, query string, args ...any) ([]*models.Post, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func scanPost(s scanner) (*models.Post, error) {
	var p models.Post
	err := s.Scan(&p.ID, &p.TopicID, &p.UserID, &p.PostNumber, &p.SortOrder, &p.Raw, &p.Cooked,
		&p.PostType, &p.ReplyToPostNumber, &p.LikeCount, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
