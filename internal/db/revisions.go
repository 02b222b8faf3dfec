// ABOUTME: Topic revision database operations
// ABOUTME: Records which fields a versioned edit changed

package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harper/agora/internal/models"
)

// CreateRevision inserts a revision and sets its ID.
func CreateRevision(ctx context.Context, q DBTX, r *models.TopicRevision) error {
	changes, err := encodeJSON(r.Changes)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO topic_revisions (topic_id, user_id, version, changes, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.TopicID, r.UserID, r.Version, changes, r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert revision %d of topic %d: %w", r.Version, r.TopicID, err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

// ListRevisions returns a topic's revisions, oldest first.
func ListRevisions(ctx context.Context, q DBTX, topicID int64) ([]*models.TopicRevision, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, topic_id, user_id, version, changes, created_at
		FROM topic_revisions WHERE topic_id = ? ORDER BY version, id`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revisions []*models.TopicRevision
	for rows.Next() {
		var r models.TopicRevision
		var changes string
		if err := rows.Scan(&r.ID, &r.TopicID, &r.UserID, &r.Version, &changes, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(changes), &r.Changes); err != nil {
			return nil, fmt.Errorf("decode revision %d: %w", r.ID, err)
		}
		revisions = append(revisions, &r)
	}
	return revisions, rows.Err()
}
