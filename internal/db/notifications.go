// ABOUTME: Notification database operations
// ABOUTME: Create, list and mark-read for user notifications

package db

import (
	"context"
	"fmt"

	"github.com/harper/agora/internal/models"
)

// CreateNotification inserts a notification and sets its ID.
func CreateNotification(ctx context.Context, q DBTX, n *models.Notification) error {
	data := n.Data
	if data == "" {
		data = "{}"
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO notifications (user_id, type, topic_id, post_number, data, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Type, n.TopicID, n.PostNumber, data, n.Read, n.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert %s notification for user %d: %w", n.Type, n.UserID, err)
	}
	n.ID, err = res.LastInsertId()
	n.Data = data
	return err
}

// ListNotifications returns a user's notifications, newest first.
func ListNotifications(ctx context.Context, q DBTX, userID int64, unreadOnly bool) ([]*models.Notification, error) {
	query := `SELECT id, user_id, type, topic_id, post_number, data, read, created_at
		FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND NOT read`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.TopicID, &n.PostNumber, &n.Data, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// MarkNotificationsRead marks all of a user's notifications as read.
func MarkNotificationsRead(ctx context.Context, q DBTX, userID int64) (int64, error) {
	result, err := q.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = ? AND NOT read`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
