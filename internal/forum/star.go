// ABOUTME: Starring topics
// ABOUTME: Star count is recounted from per-user state so repeats are harmless

package forum

import (
	"context"

	"github.com/harper/agora/internal/db"
	"github.com/harper/agora/internal/models"
)

// ToggleStar sets whether user has starred the topic.
func (s *Service) ToggleStar(ctx context.Context, user *models.User, topicID int64, starred bool) (*models.Topic, error) {
	if user == nil {
		return nil, ErrNotAllowed
	}
	var topic *models.Topic
	err := s.withTx(ctx, func(o *op) error {
		var err error
		topic, err = s.visibleTopic(ctx, o.tx, user, topicID)
		if err != nil {
			return err
		}
		tu, err := loadTopicUser(ctx, o.tx, user.ID, topic.ID, o.now)
		if err != nil {
			return err
		}
		if tu.Starred != starred {
			tu.Starred = starred
			if starred {
				tu.StarredAt = timePtr(o.now)
			} else {
				tu.StarredAt = nil
			}
			tu.UpdatedAt = o.now
			if err := db.UpsertTopicUser(ctx, o.tx, tu); err != nil {
				return err
			}
		}

		count, err := db.CountStars(ctx, o.tx, topic.ID)
		if err != nil {
			return err
		}
		if count == topic.StarCount {
			return nil
		}
		topic.StarCount = count
		return db.UpdateTopic(ctx, o.tx, topic)
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}
